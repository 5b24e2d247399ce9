package registry

import (
	"math"
	"strings"
	"time"
)

// Evidence entries may carry a source tag prefix ("ftc: ...", "user: ...").
// Tagged sources contribute extra weight to the risk score.
var sourceWeights = map[string]int{
	"ftc":       5,
	"ic3":       5,
	"bbb":       4,
	"trustpilot": 3,
	"reddit":    2,
	"user":      1,
}

const maxSourceWeight = 15

// RiskScore computes the deterministic registry risk score:
//
//	clamp(30 + 10·log2(report_count) + verified·20 + recency + sources, 0, 100)
//
// recency is 15 within 30 days of lastReported, decaying linearly to 0 at
// 365 days.
func RiskScore(reportCount int, verified bool, lastReported time.Time, evidence []string, now time.Time) int {
	if reportCount < 1 {
		reportCount = 1
	}
	score := 30.0 + 10.0*math.Log2(float64(reportCount))
	if verified {
		score += 20
	}
	score += recencyBonus(lastReported, now)
	score += float64(evidenceSourceWeight(evidence))

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}

func recencyBonus(lastReported, now time.Time) float64 {
	age := now.Sub(lastReported)
	switch {
	case age <= 30*24*time.Hour:
		return 15
	case age >= 365*24*time.Hour:
		return 0
	default:
		// Linear decay from 15 at 30d to 0 at 365d.
		days := age.Hours() / 24
		return 15 * (365 - days) / (365 - 30)
	}
}

func evidenceSourceWeight(evidence []string) int {
	total := 0
	for _, e := range evidence {
		tag, _, ok := strings.Cut(e, ":")
		if !ok {
			continue
		}
		total += sourceWeights[strings.ToLower(strings.TrimSpace(tag))]
	}
	if total > maxSourceWeight {
		return maxSourceWeight
	}
	return total
}
