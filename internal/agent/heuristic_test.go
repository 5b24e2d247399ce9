package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scamshield/backend/internal/domainrep"
	"github.com/scamshield/backend/internal/phoneval"
	"github.com/scamshield/backend/internal/registry"
	"github.com/scamshield/backend/internal/websearch"
)

func registryEvidence(found, verified bool) Evidence {
	return Evidence{
		ToolName:   ToolScamRegistry,
		EntityType: registry.EntityPhone,
		Success:    true,
		Payload:    &registry.LookupResult{Found: found, Verified: verified, ReportCount: 5},
	}
}

func phoneEvidence(suspicious bool) Evidence {
	return Evidence{
		ToolName: ToolPhoneValidator,
		Success:  true,
		Payload:  phoneval.Result{Suspicious: suspicious, SuspiciousReason: "number is all zeros"},
	}
}

func domainEvidence(level domainrep.RiskLevel, ageDays int) Evidence {
	return Evidence{
		ToolName: ToolDomainRep,
		Success:  true,
		Payload:  &domainrep.Result{RiskLevel: level, AgeDays: &ageDays},
	}
}

func searchEvidence(resultCount int, trusted bool) Evidence {
	resp := &websearch.Response{}
	for i := 0; i < resultCount; i++ {
		domain := "blog.example"
		if trusted && i == 0 {
			domain = "reddit.com"
		}
		resp.Results = append(resp.Results, websearch.Result{Domain: domain})
	}
	return Evidence{ToolName: ToolWebSearch, Success: true, Payload: resp}
}

func TestHeuristicSuspiciousPhoneOnly(t *testing.T) {
	level, confidence, explanation := heuristicVerdict([]Evidence{
		registryEvidence(false, false),
		searchEvidence(0, false),
		phoneEvidence(true),
	})
	assert.Equal(t, RiskLow, level)
	assert.Equal(t, 25.0, confidence)
	assert.Contains(t, explanation, "suspicious pattern")
}

func TestHeuristicVerifiedRegistryHit(t *testing.T) {
	level, confidence, _ := heuristicVerdict([]Evidence{registryEvidence(true, true)})
	assert.Equal(t, RiskMedium, level)
	assert.Equal(t, 50.0, confidence)
}

func TestHeuristicUnverifiedHitDoesNotStackWithVerified(t *testing.T) {
	level, confidence, _ := heuristicVerdict([]Evidence{
		registryEvidence(true, true),
		registryEvidence(true, false),
	})
	assert.Equal(t, 50.0, confidence, "verified wins, unverified must not add")
	assert.Equal(t, RiskMedium, level)
}

func TestHeuristicStackedSignalsCap(t *testing.T) {
	level, confidence, _ := heuristicVerdict([]Evidence{
		registryEvidence(true, true),          // 50
		domainEvidence(domainrep.RiskHigh, 5), // 30 + 10 young
		phoneEvidence(true),                   // 25
		searchEvidence(4, true),               // 20
	})
	assert.Equal(t, RiskHigh, level)
	assert.Equal(t, 100.0, confidence, "capped at 100")
}

func TestHeuristicHighThreshold(t *testing.T) {
	// 40 + 30 = 70, exactly the high boundary.
	level, confidence, _ := heuristicVerdict([]Evidence{
		registryEvidence(true, false),
		domainEvidence(domainrep.RiskHigh, 400),
	})
	assert.Equal(t, RiskHigh, level)
	assert.Equal(t, 70.0, confidence)
}

func TestHeuristicSearchNeedsVolumeAndTrust(t *testing.T) {
	_, few, _ := heuristicVerdict([]Evidence{searchEvidence(2, true)})
	assert.Equal(t, 0.0, few, "two results are not enough")

	_, untrusted, _ := heuristicVerdict([]Evidence{searchEvidence(5, false)})
	assert.Equal(t, 0.0, untrusted, "needs at least one trusted source")

	_, both, _ := heuristicVerdict([]Evidence{searchEvidence(3, true)})
	assert.Equal(t, 20.0, both)
}

func TestHeuristicIgnoresFailedEvidence(t *testing.T) {
	failed := registryEvidence(true, true)
	failed.Success = false
	level, confidence, explanation := heuristicVerdict([]Evidence{failed})
	assert.Equal(t, RiskLow, level)
	assert.Equal(t, 0.0, confidence)
	assert.Contains(t, explanation, "no scam signals")
}

func TestHeuristicDeterminism(t *testing.T) {
	evidence := []Evidence{
		registryEvidence(true, false),
		phoneEvidence(true),
		searchEvidence(3, true),
	}
	l1, c1, e1 := heuristicVerdict(evidence)
	l2, c2, e2 := heuristicVerdict(evidence)
	assert.Equal(t, l1, l2)
	assert.Equal(t, c1, c2)
	assert.Equal(t, e1, e2)
}
