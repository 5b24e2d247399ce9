package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scamshield/backend/internal/companyver"
	"github.com/scamshield/backend/internal/domainrep"
	"github.com/scamshield/backend/internal/entities"
	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/metrics"
	"github.com/scamshield/backend/internal/phoneval"
	"github.com/scamshield/backend/internal/progress"
	"github.com/scamshield/backend/internal/registry"
	"github.com/scamshield/backend/internal/results"
	"github.com/scamshield/backend/internal/websearch"
)

const (
	taskBudget  = 60 * time.Second
	toolTimeout = 10 * time.Second
)

// Tools bundles the evidence tools the orchestrator fans out to. Any entry
// may be nil; the matching sub-calls are then skipped.
type Tools struct {
	Registry   *registry.Tool
	WebSearch  *websearch.Tool
	DomainRep  *domainrep.Tool
	PhoneVal   *phoneval.Validator
	CompanyVer *companyver.Tool
}

// Orchestrator runs one analysis task end to end: extraction, per-entity tool
// fan-out, reasoning, persistence, progress publishing.
type Orchestrator struct {
	extractor *entities.Extractor
	tools     Tools
	reasoner  *Reasoner
	store     results.Store
	bus       infra.PubSub
	metrics   *metrics.Set
}

// NewOrchestrator wires the pipeline. bus and metrics may be nil.
func NewOrchestrator(extractor *entities.Extractor, tools Tools, reasoner *Reasoner, store results.Store, bus infra.PubSub, m *metrics.Set) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		tools:     tools,
		reasoner:  reasoner,
		store:     store,
		bus:       bus,
		metrics:   m,
	}
}

// Run executes one task under the hard wall-clock budget. Infrastructure
// errors (persistence down) are returned so the queue can retry; analysis
// outcomes, including failed verdicts, are not errors.
func (o *Orchestrator) Run(ctx context.Context, task Task) (*Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, taskBudget)
	defer cancel()

	pub := progress.NewPublisher(o.bus, task.TaskID)
	slog.Info("[Agent] Task started", "task_id", task.TaskID)

	if err := o.store.MarkStatus(ctx, task.TaskID, results.StatusRunning); err != nil {
		pub.Failed(ctx, "persistence unavailable")
		return nil, fmt.Errorf("mark running: %w", err)
	}

	pub.Step(ctx, progress.StepEntityExtraction, 10, "Extracting entities…")
	ents := o.extractor.Extract(task.OCRText)
	pub.Step(ctx, progress.StepEntityExtraction, 20, fmt.Sprintf(
		"Found %d entities: %d phones, %d urls, %d emails, %d companies",
		ents.Count(), len(ents.Phones), len(ents.URLs), len(ents.Emails), len(ents.Companies)))

	var evidence []Evidence
	if ents.HasEntities() {
		pub.Step(ctx, progress.StepToolExecution, 30, "Running evidence tools…")
		evidence = o.collectEvidence(ctx, pub, ents)
	}

	if err := ctx.Err(); err != nil {
		return o.finishTimedOut(task, pub, ents, evidence, start)
	}

	pub.Step(ctx, progress.StepReasoning, 90, "Analyzing evidence…")
	verdict := o.reasoner.Reason(ctx, task.OCRText, ents, evidence)

	res := o.buildResult(task, ents, evidence, verdict, start)
	if err := o.persist(ctx, res, ents, results.StatusSucceeded); err != nil {
		pub.Failed(ctx, "failed to persist result")
		return nil, err
	}

	pub.Step(ctx, progress.StepCompleted, 100, "Analysis complete!")
	if o.metrics != nil {
		o.metrics.AgentTaskDuration.Observe(time.Since(start).Seconds())
	}
	slog.Info("[Agent] Task completed", "task_id", task.TaskID,
		"risk_level", res.RiskLevel, "method", res.ReasoningMethod,
		"evidence", len(res.Evidence), "duration_ms", res.ProcessingTimeMS)
	return res, nil
}

// finishTimedOut persists the minimal budget-breach verdict. Best effort: the
// write gets a fresh context because the task context is already dead.
func (o *Orchestrator) finishTimedOut(task Task, pub *progress.Publisher, ents *entities.ExtractedEntities, evidence []Evidence, start time.Time) (*Result, error) {
	wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub.Failed(wctx, "task exceeded time budget")
	res := o.buildResult(task, ents, evidence, Verdict{
		RiskLevel:   RiskLow,
		Confidence:  0,
		Explanation: "timeout",
		Method:      MethodHeuristic,
	}, start)
	if err := o.persist(wctx, res, ents, results.StatusFailed); err != nil {
		slog.Warn("[Agent] Could not persist timeout result", "task_id", task.TaskID, "error", err)
	}
	slog.Warn("[Agent] Task exceeded budget", "task_id", task.TaskID)
	return res, nil
}

// collectEvidence walks entities sequentially; the tools of one entity run in
// parallel. Percent scales 30→80 across entities.
func (o *Orchestrator) collectEvidence(ctx context.Context, pub *progress.Publisher, ents *entities.ExtractedEntities) []Evidence {
	var evidence []Evidence
	total := ents.Count()
	done := 0

	appendGroup := func(step progress.Step, tool string, evs []Evidence) {
		evidence = append(evidence, evs...)
		done++
		percent := 30 + done*50/total
		pub.Tool(ctx, step, tool, percent)
	}

	for _, p := range ents.Phones {
		if ctx.Err() != nil {
			return evidence
		}
		value := p.E164
		if value == "" {
			value = p.Raw
		}
		appendGroup(progress.StepPhoneValidator, ToolPhoneValidator,
			o.phoneEvidence(ctx, value, p.Raw))
	}
	for _, u := range ents.URLs {
		if ctx.Err() != nil {
			return evidence
		}
		appendGroup(progress.StepDomainReputation, ToolDomainRep,
			o.urlEvidence(ctx, u))
	}
	for _, e := range ents.Emails {
		if ctx.Err() != nil {
			return evidence
		}
		appendGroup(progress.StepScamDB, ToolScamRegistry,
			o.emailEvidence(ctx, e.Raw))
	}
	for _, pay := range ents.Payments {
		if ctx.Err() != nil {
			return evidence
		}
		appendGroup(progress.StepScamDB, ToolScamRegistry,
			o.paymentEvidence(ctx, pay))
	}
	for _, c := range ents.Companies {
		if ctx.Err() != nil {
			return evidence
		}
		appendGroup(progress.StepCompanyVerification, ToolCompanyVer,
			o.companyEvidence(ctx, c))
	}
	return evidence
}

// runTool wraps one tool call: per-call timeout, panic capture, duration
// measurement. Failures become evidence, never task errors.
func (o *Orchestrator) runTool(ctx context.Context, tool, entityType, entityValue string, fn func(context.Context) (any, error)) Evidence {
	start := time.Now()
	ev := Evidence{ToolName: tool, EntityType: entityType, EntityValue: entityValue}

	cctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	payload, err := func() (payload any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool panic: %v", r)
			}
		}()
		return fn(cctx)
	}()

	ev.ExecutionTimeMS = time.Since(start).Milliseconds()
	if o.metrics != nil {
		o.metrics.ToolDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
		if o.metrics != nil {
			o.metrics.ToolFailures.WithLabelValues(tool).Inc()
		}
		slog.Warn("[Agent] Tool failed", "tool", tool, "entity", entityValue, "error", err)
		return ev
	}
	ev.Success = true
	ev.Payload = payload
	return ev
}

// fanOut runs the given tool closures concurrently and returns their evidence
// in declaration order regardless of completion order.
func fanOut(ctx context.Context, calls []func(context.Context) Evidence) []Evidence {
	out := make([]Evidence, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			out[i] = call(gctx)
			return nil
		})
	}
	g.Wait()
	return out
}

func (o *Orchestrator) phoneEvidence(ctx context.Context, value, raw string) []Evidence {
	var calls []func(context.Context) Evidence
	if o.tools.Registry != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolScamRegistry, registry.EntityPhone, value, func(cc context.Context) (any, error) {
				return o.tools.Registry.CheckPhone(cc, value)
			})
		})
	}
	if o.tools.WebSearch != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolWebSearch, registry.EntityPhone, value, func(cc context.Context) (any, error) {
				return o.tools.WebSearch.Search(cc, value, "phone"), nil
			})
		})
	}
	if o.tools.PhoneVal != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolPhoneValidator, registry.EntityPhone, value, func(context.Context) (any, error) {
				return o.tools.PhoneVal.Validate(raw, ""), nil
			})
		})
	}
	return fanOut(ctx, calls)
}

func (o *Orchestrator) urlEvidence(ctx context.Context, u entities.URL) []Evidence {
	var calls []func(context.Context) Evidence
	if o.tools.Registry != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolScamRegistry, registry.EntityURL, u.Raw, func(cc context.Context) (any, error) {
				return o.tools.Registry.CheckURL(cc, u.Raw)
			})
		})
	}
	if o.tools.DomainRep != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolDomainRep, registry.EntityURL, u.Raw, func(cc context.Context) (any, error) {
				return o.tools.DomainRep.CheckDomain(cc, u.Raw), nil
			})
		})
	}
	if o.tools.WebSearch != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolWebSearch, registry.EntityURL, u.Domain, func(cc context.Context) (any, error) {
				return o.tools.WebSearch.Search(cc, u.Domain, "url"), nil
			})
		})
	}
	return fanOut(ctx, calls)
}

func (o *Orchestrator) emailEvidence(ctx context.Context, email string) []Evidence {
	var calls []func(context.Context) Evidence
	if o.tools.Registry != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolScamRegistry, registry.EntityEmail, email, func(cc context.Context) (any, error) {
				return o.tools.Registry.CheckEmail(cc, email)
			})
		})
	}
	if o.tools.WebSearch != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolWebSearch, registry.EntityEmail, email, func(cc context.Context) (any, error) {
				return o.tools.WebSearch.Search(cc, email, "email"), nil
			})
		})
	}
	return fanOut(ctx, calls)
}

func (o *Orchestrator) paymentEvidence(ctx context.Context, pay entities.Payment) []Evidence {
	searchType := string(pay.Kind)
	if pay.Kind != entities.PaymentBitcoin {
		searchType = "payment"
	}
	var calls []func(context.Context) Evidence
	if o.tools.Registry != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolScamRegistry, searchType, pay.Value, func(cc context.Context) (any, error) {
				return o.tools.Registry.CheckPayment(cc, pay.Value, pay.Kind)
			})
		})
	}
	if o.tools.WebSearch != nil {
		calls = append(calls, func(c context.Context) Evidence {
			return o.runTool(c, ToolWebSearch, searchType, pay.Value, func(cc context.Context) (any, error) {
				return o.tools.WebSearch.Search(cc, pay.Value, searchType), nil
			})
		})
	}
	return fanOut(ctx, calls)
}

func (o *Orchestrator) companyEvidence(ctx context.Context, c entities.Company) []Evidence {
	var calls []func(context.Context) Evidence
	if o.tools.CompanyVer != nil {
		calls = append(calls, func(cx context.Context) Evidence {
			return o.runTool(cx, ToolCompanyVer, "company", c.Normalized, func(cc context.Context) (any, error) {
				return o.tools.CompanyVer.CheckCompany(cc, c.Normalized, c.CountryHint), nil
			})
		})
	}
	if o.tools.WebSearch != nil {
		calls = append(calls, func(cx context.Context) Evidence {
			return o.runTool(cx, ToolWebSearch, "company", c.Normalized, func(cc context.Context) (any, error) {
				return o.tools.WebSearch.Search(cc, c.Normalized, "company"), nil
			})
		})
	}
	evidence := fanOut(ctx, calls)
	if o.tools.CompanyVer != nil {
		evidence = append(evidence, companyRegistryEvidence(evidence, c))
	}
	return evidence
}

// companyRegistryEvidence surfaces the registry sub-result of the company
// check as its own item, so a lookup that could not run is visible as a
// failed evidence entry rather than folded into a clean verification.
func companyRegistryEvidence(evidence []Evidence, c entities.Company) Evidence {
	ev := Evidence{ToolName: ToolCompanyReg, EntityType: "company", EntityValue: c.Normalized}
	for _, e := range evidence {
		if e.ToolName != ToolCompanyVer {
			continue
		}
		res, ok := e.Payload.(*companyver.Result)
		if !ok || res == nil {
			break
		}
		if res.RegistryChecked {
			ev.Success = true
			ev.Payload = &companyver.RegistryOutcome{
				Registry: companyver.RegistryFor(c.CountryHint),
				Found:    res.RegistryFound,
				Status:   res.RegistryStatus,
			}
			return ev
		}
		if res.RegistryError != "" {
			ev.ErrorMessage = res.RegistryError
			return ev
		}
		break
	}
	ev.ErrorMessage = "no registry lookup for jurisdiction"
	return ev
}

func (o *Orchestrator) buildResult(task Task, ents *entities.ExtractedEntities, evidence []Evidence, verdict Verdict, start time.Time) *Result {
	toolsUsed := map[string]bool{}
	var tools []string
	for _, ev := range evidence {
		if !toolsUsed[ev.ToolName] {
			toolsUsed[ev.ToolName] = true
			tools = append(tools, ev.ToolName)
		}
	}
	count := 0
	if ents != nil {
		count = ents.Count()
	}
	return &Result{
		TaskID:           task.TaskID,
		SessionID:        task.SessionID,
		EntitiesFound:    count,
		Evidence:         evidence,
		RiskLevel:        verdict.RiskLevel,
		Confidence:       verdict.Confidence,
		ReasoningText:    verdict.Explanation,
		ReasoningMethod:  verdict.Method,
		EvidenceUsed:     verdict.EvidenceUsed,
		ToolsUsed:        tools,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
}

func (o *Orchestrator) persist(ctx context.Context, res *Result, ents *entities.ExtractedEntities, status string) error {
	var entitiesJSON []byte
	if ents != nil {
		entitiesJSON, _ = json.Marshal(ents)
	}
	evidenceJSON, err := json.Marshal(res.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}

	rec := &results.Record{
		TaskID:           res.TaskID,
		SessionID:        res.SessionID,
		Status:           status,
		EntitiesFound:    res.EntitiesFound,
		Entities:         entitiesJSON,
		Evidence:         evidenceJSON,
		RiskLevel:        res.RiskLevel,
		Confidence:       res.Confidence,
		ReasoningText:    res.ReasoningText,
		ReasoningMethod:  res.ReasoningMethod,
		ToolsUsed:        res.ToolsUsed,
		ProcessingTimeMS: res.ProcessingTimeMS,
		CreatedAt:        res.CreatedAt,
	}
	if err := o.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}
	return nil
}

// IsInfrastructural reports whether an orchestration error should trigger a
// queue retry rather than a terminal failure.
func IsInfrastructural(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
