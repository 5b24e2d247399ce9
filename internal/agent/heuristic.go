package agent

import (
	"strings"

	"github.com/scamshield/backend/internal/domainrep"
	"github.com/scamshield/backend/internal/phoneval"
	"github.com/scamshield/backend/internal/registry"
	"github.com/scamshield/backend/internal/websearch"
)

// Heuristic signal weights. Each signal contributes at most once per task.
const (
	pointsRegistryVerified   = 50
	pointsRegistryUnverified = 40
	pointsDomainHigh         = 30
	pointsPhoneSuspicious    = 25
	pointsTrustedSearchHits  = 20
	pointsYoungDomain        = 10
)

const youngDomainDays = 30

// heuristicVerdict scores successful evidence with fixed weights. It is fully
// deterministic: same evidence, same verdict.
func heuristicVerdict(evidence []Evidence) (riskLevel string, confidence float64, explanation string) {
	var (
		registryVerified   bool
		registryUnverified bool
		domainHigh         bool
		phoneSuspicious    bool
		trustedSearchHits  bool
		youngDomain        bool
	)

	for _, ev := range evidence {
		if !ev.Success {
			continue
		}
		switch payload := ev.Payload.(type) {
		case *registry.LookupResult:
			if payload != nil && payload.Found {
				if payload.Verified {
					registryVerified = true
				} else {
					registryUnverified = true
				}
			}
		case *domainrep.Result:
			if payload == nil {
				continue
			}
			if payload.RiskLevel == domainrep.RiskHigh {
				domainHigh = true
			}
			if payload.AgeDays != nil && *payload.AgeDays < youngDomainDays {
				youngDomain = true
			}
		case phoneval.Result:
			if payload.Suspicious {
				phoneSuspicious = true
			}
		case *websearch.Response:
			if payload == nil {
				continue
			}
			if len(payload.Results) >= 3 {
				for _, r := range payload.Results {
					if websearch.TrustedSource(r.Domain) {
						trustedSearchHits = true
						break
					}
				}
			}
		}
	}

	score := 0
	var reasons []string
	if registryVerified {
		score += pointsRegistryVerified
		reasons = append(reasons, "entity appears in the scam registry with verified reports")
	} else if registryUnverified {
		score += pointsRegistryUnverified
		reasons = append(reasons, "entity appears in the scam registry")
	}
	if domainHigh {
		score += pointsDomainHigh
		reasons = append(reasons, "domain reputation is high risk")
	}
	if phoneSuspicious {
		score += pointsPhoneSuspicious
		reasons = append(reasons, "phone number matches a suspicious pattern")
	}
	if trustedSearchHits {
		score += pointsTrustedSearchHits
		reasons = append(reasons, "multiple web results including trusted consumer-protection sources")
	}
	if youngDomain {
		score += pointsYoungDomain
		reasons = append(reasons, "domain registered less than 30 days ago")
	}

	if score > 100 {
		score = 100
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no scam signals found in collected evidence")
	}
	return riskLevelFor(score), float64(score), strings.Join(reasons, "; ") + "."
}
