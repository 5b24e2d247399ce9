package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRiskScoreBounds(t *testing.T) {
	now := time.Now()

	// Single fresh report: 30 + 0 + 15 recency.
	score := RiskScore(1, false, now, nil, now)
	assert.Equal(t, 45, score)

	// Heavy verified recent report with tagged sources caps at 100.
	evidence := []string{"ftc: complaint", "ic3: report", "bbb: alert", "user: note"}
	score = RiskScore(1000, true, now, evidence, now)
	assert.Equal(t, 100, score)
}

func TestRiskScoreRecencyDecay(t *testing.T) {
	now := time.Now()

	fresh := RiskScore(4, false, now.Add(-10*24*time.Hour), nil, now)
	mid := RiskScore(4, false, now.Add(-200*24*time.Hour), nil, now)
	stale := RiskScore(4, false, now.Add(-400*24*time.Hour), nil, now)

	assert.Greater(t, fresh, mid)
	assert.Greater(t, mid, stale)
	// 30 + 10·log2(4) = 50 with no recency left.
	assert.Equal(t, 50, stale)
}

func TestRiskScoreMonotonicInReports(t *testing.T) {
	now := time.Now()
	prev := 0
	for _, n := range []int{1, 2, 4, 8, 16, 47} {
		s := RiskScore(n, false, now, nil, now)
		assert.GreaterOrEqual(t, s, prev, "count %d", n)
		prev = s
	}
}

func TestRiskScoreDeterministic(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	last := now.Add(-45 * 24 * time.Hour)
	a := RiskScore(7, true, last, []string{"ftc: x"}, now)
	b := RiskScore(7, true, last, []string{"ftc: x"}, now)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0)
	assert.LessOrEqual(t, a, 100)
}

func TestEvidenceSourceWeightCap(t *testing.T) {
	big := make([]string, 20)
	for i := range big {
		big[i] = "ftc: complaint"
	}
	assert.Equal(t, maxSourceWeight, evidenceSourceWeight(big))
	assert.Equal(t, 0, evidenceSourceWeight([]string{"untagged evidence"}))
}
