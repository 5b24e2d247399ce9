package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scamshield/backend/internal/companyver"
	"github.com/scamshield/backend/internal/domainrep"
	"github.com/scamshield/backend/internal/entities"
	"github.com/scamshield/backend/internal/llm"
	"github.com/scamshield/backend/internal/phoneval"
	"github.com/scamshield/backend/internal/registry"
	"github.com/scamshield/backend/internal/websearch"
)

const reasonerSystemPrompt = `You are a scam-analysis expert weighing evidence about entities extracted from a suspicious message.
Evidence reliability, highest to lowest:
1. Scam registry hits with verified reports
2. Antivirus aggregators and domain reputation signals
3. Web search user complaints from consumer-protection sources
4. Offline pattern indicators (phone number shapes, company naming)
Weigh higher-reliability evidence more. Output strict JSON only:
{"risk_level": "low"|"medium"|"high", "confidence": 0-100, "explanation": "at least 10 characters citing the evidence"}`

const (
	reasonerTimeout = 5 * time.Second
	ocrPromptLimit  = 500
	maxShownPerKind = 3
)

// Verdict is the reasoner's output.
type Verdict struct {
	RiskLevel    string
	Confidence   float64
	Explanation  string
	Method       string
	EvidenceUsed []string
}

// Reasoner produces the final verdict: LLM first, deterministic heuristic on
// any LLM failure.
type Reasoner struct {
	client *llm.Client
}

// NewReasoner wraps a client; nil means heuristic-only operation.
func NewReasoner(client *llm.Client) *Reasoner {
	return &Reasoner{client: client}
}

// Reason scores the collected evidence. It never fails: every error path ends
// in the heuristic.
func (r *Reasoner) Reason(ctx context.Context, ocrText string, ents *entities.ExtractedEntities, evidence []Evidence) Verdict {
	if r.client != nil {
		if v, ok := r.tryLLM(ctx, ocrText, ents, evidence); ok {
			return v
		}
	}
	level, confidence, explanation := heuristicVerdict(evidence)
	return Verdict{
		RiskLevel:   level,
		Confidence:  confidence,
		Explanation: explanation,
		Method:      MethodHeuristic,
	}
}

func (r *Reasoner) tryLLM(ctx context.Context, ocrText string, ents *entities.ExtractedEntities, evidence []Evidence) (Verdict, bool) {
	prompt := buildReasonerPrompt(ocrText, ents, evidence)

	cctx, cancel := context.WithTimeout(ctx, reasonerTimeout)
	defer cancel()

	// One retry with the same prompt on an invalid response.
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := r.client.Complete(cctx, reasonerSystemPrompt, prompt, 0.2)
		if err != nil {
			slog.Warn("[Reasoner] LLM call failed", "attempt", attempt, "error", err)
			return Verdict{}, false
		}
		v, err := parseVerdict(raw)
		if err != nil {
			slog.Warn("[Reasoner] Invalid LLM verdict", "attempt", attempt, "error", err)
			continue
		}
		v.Method = MethodLLM
		v.EvidenceUsed = referencedTools(v.Explanation, evidence)
		return v, true
	}
	return Verdict{}, false
}

func parseVerdict(raw string) (Verdict, error) {
	data, err := llm.ExtractJSON(raw)
	if err != nil {
		return Verdict{}, err
	}
	var out struct {
		RiskLevel   string  `json:"risk_level"`
		Confidence  float64 `json:"confidence"`
		Explanation string  `json:"explanation"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Verdict{}, err
	}
	if out.RiskLevel != RiskLow && out.RiskLevel != RiskMedium && out.RiskLevel != RiskHigh {
		return Verdict{}, fmt.Errorf("invalid risk_level %q", out.RiskLevel)
	}
	if len(strings.TrimSpace(out.Explanation)) < 10 {
		return Verdict{}, fmt.Errorf("explanation too short")
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 100 {
		out.Confidence = 100
	}
	return Verdict{RiskLevel: out.RiskLevel, Confidence: out.Confidence, Explanation: out.Explanation}, nil
}

// referencedTools lists the tools the explanation actually cites, falling back
// to every successful tool when none are named.
func referencedTools(explanation string, evidence []Evidence) []string {
	lower := strings.ToLower(explanation)
	aliases := map[string][]string{
		ToolScamRegistry:   {"scam_db", "registry", "scam database"},
		ToolWebSearch:      {"exa_search", "web search", "search result"},
		ToolDomainRep:      {"domain_reputation", "domain reputation", "domain age", "ssl"},
		ToolPhoneValidator: {"phone_validator", "phone number", "phone pattern"},
		ToolCompanyVer:     {"company_verification", "company name"},
		ToolCompanyReg:     {"company_registry", "company registry", "acra", "companies house"},
	}

	present := map[string]bool{}
	var order []string
	for _, ev := range evidence {
		if !present[ev.ToolName] {
			present[ev.ToolName] = true
			order = append(order, ev.ToolName)
		}
	}

	var used []string
	for _, tool := range order {
		for _, alias := range aliases[tool] {
			if strings.Contains(lower, alias) {
				used = append(used, tool)
				break
			}
		}
	}
	if len(used) > 0 {
		return used
	}

	seen := map[string]bool{}
	for _, ev := range evidence {
		if ev.Success && !seen[ev.ToolName] {
			seen[ev.ToolName] = true
			used = append(used, ev.ToolName)
		}
	}
	return used
}

func buildReasonerPrompt(ocrText string, ents *entities.ExtractedEntities, evidence []Evidence) string {
	var b strings.Builder

	text := ocrText
	if len(text) > ocrPromptLimit {
		text = text[:ocrPromptLimit]
	}
	b.WriteString("Message text:\n")
	b.WriteString(text)
	b.WriteString("\n\nEntities found:\n")
	b.WriteString(summarizeEntities(ents))
	b.WriteString("\nEvidence:\n")
	if len(evidence) == 0 {
		b.WriteString("(none collected)\n")
	}
	for _, ev := range evidence {
		b.WriteString("- ")
		b.WriteString(formatEvidenceLine(ev))
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with the JSON verdict only.")
	return b.String()
}

func summarizeEntities(ents *entities.ExtractedEntities) string {
	if ents == nil {
		return "(none)\n"
	}
	var b strings.Builder
	writeKind := func(kind string, values []string) {
		if len(values) == 0 {
			return
		}
		shown := values
		if len(shown) > maxShownPerKind {
			shown = shown[:maxShownPerKind]
		}
		fmt.Fprintf(&b, "%s (%d): %s", kind, len(values), strings.Join(shown, ", "))
		if extra := len(values) - len(shown); extra > 0 {
			fmt.Fprintf(&b, " …and %d more", extra)
		}
		b.WriteString("\n")
	}

	var phones, urls, emails, payments, companies []string
	for _, p := range ents.Phones {
		v := p.E164
		if v == "" {
			v = p.Raw
		}
		phones = append(phones, v)
	}
	for _, u := range ents.URLs {
		urls = append(urls, u.Domain)
	}
	for _, e := range ents.Emails {
		emails = append(emails, e.Raw)
	}
	for _, p := range ents.Payments {
		payments = append(payments, string(p.Kind)+":"+p.Value)
	}
	for _, c := range ents.Companies {
		companies = append(companies, c.Normalized)
	}

	writeKind("phones", phones)
	writeKind("urls", urls)
	writeKind("emails", emails)
	writeKind("payments", payments)
	writeKind("companies", companies)
	if b.Len() == 0 {
		return "(none)\n"
	}
	return b.String()
}

// formatEvidenceLine renders one evidence item as a compact fact line.
func formatEvidenceLine(ev Evidence) string {
	if !ev.Success {
		return fmt.Sprintf("%s(%s): failed: %s", ev.ToolName, ev.EntityValue, ev.ErrorMessage)
	}
	switch p := ev.Payload.(type) {
	case *registry.LookupResult:
		if p == nil || !p.Found {
			return fmt.Sprintf("scam_db(%s): not found", ev.EntityValue)
		}
		return fmt.Sprintf("scam_db(%s): verified=%t, reports=%d, risk=%d",
			ev.EntityValue, p.Verified, p.ReportCount, p.RiskScore)
	case *websearch.Response:
		if p == nil || len(p.Results) == 0 {
			return fmt.Sprintf("exa_search(%s): no results", ev.EntityValue)
		}
		return fmt.Sprintf("exa_search(%s): %d results, top: %s",
			ev.EntityValue, len(p.Results), p.Results[0].Domain)
	case *domainrep.Result:
		if p == nil {
			return fmt.Sprintf("domain_reputation(%s): no data", ev.EntityValue)
		}
		line := fmt.Sprintf("domain_reputation(%s): risk=%s", ev.EntityValue, p.RiskLevel)
		if p.AgeDays != nil {
			line += fmt.Sprintf(", age_days=%d", *p.AgeDays)
		}
		if p.SSLValid != nil && !*p.SSLValid {
			line += ", ssl=invalid"
		}
		return line
	case phoneval.Result:
		if p.Suspicious {
			return fmt.Sprintf("phone_validator(%s): suspicious, reason=%q", ev.EntityValue, p.SuspiciousReason)
		}
		return fmt.Sprintf("phone_validator(%s): valid %s number", ev.EntityValue, p.Type)
	case *companyver.Result:
		if p == nil {
			return fmt.Sprintf("company_verification(%s): no data", ev.EntityValue)
		}
		if p.Suspicious {
			return fmt.Sprintf("company_verification(%s): suspicious, patterns=%s, registry_found=%t",
				ev.EntityValue, strings.Join(p.SuspiciousPatterns, "+"), p.RegistryFound)
		}
		return fmt.Sprintf("company_verification(%s): no red flags", ev.EntityValue)
	case *companyver.RegistryOutcome:
		if p == nil {
			return fmt.Sprintf("company_registry(%s): no data", ev.EntityValue)
		}
		return fmt.Sprintf("company_registry(%s): registry=%s, found=%t",
			ev.EntityValue, p.Registry, p.Found)
	default:
		return fmt.Sprintf("%s(%s): completed", ev.ToolName, ev.EntityValue)
	}
}
