// Package service assembles the application from configuration: backing
// stores, evidence tools, the orchestrator, the queue, and the routing gate.
// Both the API server and the standalone worker build from the same App.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/scamshield/backend/internal/agent"
	"github.com/scamshield/backend/internal/companyver"
	"github.com/scamshield/backend/internal/config"
	"github.com/scamshield/backend/internal/domainrep"
	"github.com/scamshield/backend/internal/entities"
	"github.com/scamshield/backend/internal/gate"
	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/llm"
	"github.com/scamshield/backend/internal/metrics"
	"github.com/scamshield/backend/internal/phoneval"
	"github.com/scamshield/backend/internal/queue"
	"github.com/scamshield/backend/internal/registry"
	"github.com/scamshield/backend/internal/results"
	"github.com/scamshield/backend/internal/websearch"
)

// App holds every wired component. Close releases backing connections.
type App struct {
	Cfg *config.Config

	KV     infra.KV
	Bus    infra.PubSub
	Broker *queue.Broker

	Registry registry.Store
	Results  results.Store

	Metrics      *metrics.Set
	Extractor    *entities.Extractor
	Orchestrator *agent.Orchestrator
	Pool         *queue.Pool
	Gate         *gate.Gate

	closers []func() error
}

// New wires the full application. Redis and Postgres are optional: without
// them the in-memory implementations serve, which keeps single-process
// development working with zero external services.
func New(cfg *config.Config) (*App, error) {
	app := &App{Cfg: cfg, Metrics: metrics.New()}

	if err := app.wireInfra(); err != nil {
		return nil, err
	}
	if err := app.wireStores(); err != nil {
		app.Close()
		return nil, err
	}
	app.wirePipeline()
	return app, nil
}

func (a *App) wireInfra() error {
	if a.Cfg.RedisAddr == "" {
		slog.Info("[App] REDIS_ADDR unset, using in-memory queue/cache/pubsub")
		kv := infra.NewMemoryKV()
		a.KV = kv
		a.Bus = infra.NewMemoryPubSub()
		a.Broker = queue.NewBroker(infra.NewMemoryQueue())
		return nil
	}

	rdb, err := infra.NewGoRedisAdapter(a.Cfg.RedisAddr, a.Cfg.RedisPassword, a.Cfg.RedisDB)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, rdb.Close)
	a.KV = rdb
	a.Bus = rdb
	a.Broker = queue.NewBroker(rdb)
	slog.Info("[App] Redis connected", "addr", a.Cfg.RedisAddr)
	return nil
}

func (a *App) wireStores() error {
	if a.Cfg.DatabaseURL == "" {
		slog.Info("[App] DATABASE_URL unset, using in-memory stores")
		a.Registry = registry.NewMemoryStore()
		a.Results = results.NewMemoryStore()
		return nil
	}

	reg, err := registry.NewPostgresStore(a.Cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, reg.Close)
	a.Registry = reg

	res, err := results.NewPostgresStore(a.Cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, res.Close)
	a.Results = res
	slog.Info("[App] Postgres connected")
	return nil
}

func (a *App) wirePipeline() {
	cfg := a.Cfg

	a.Extractor = entities.NewExtractor(entities.Options{
		DefaultRegion:              cfg.DefaultRegion,
		FilterCommonDomains:        true,
		FilterCommonEmailProviders: true,
	})

	tools := agent.Tools{
		Registry: registry.NewTool(a.Registry, cfg.DefaultRegion),
		PhoneVal: phoneval.NewValidator(cfg.DefaultRegion),
		DomainRep: domainrep.NewTool(a.KV, domainrep.Config{
			VirusTotalKey:   cfg.VirusTotalKey,
			SafeBrowsingKey: cfg.SafeBrowsingKey,
		}),
		CompanyVer: companyver.NewTool(companyver.Config{
			CompaniesHouseKey: cfg.CompaniesHouseKey,
			ACRAEnabled:       cfg.ACRAEnabled,
		}),
	}
	if cfg.ExaAPIKey != "" {
		tools.WebSearch = websearch.NewTool(a.KV, websearch.Config{
			APIKey:         cfg.ExaAPIKey,
			MaxResults:     cfg.ExaMaxResults,
			CacheTTL:       cfg.ExaCacheTTL,
			PricePerSearch: cfg.ExaPricePerSearch,
			DailyBudget:    cfg.ExaDailyBudget,

			BudgetRejections: a.Metrics.BudgetRejections,
		})
	} else {
		slog.Info("[App] EXA_API_KEY unset, web search disabled")
	}

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
	})
	if client == nil {
		slog.Info("[App] No LLM key, using heuristic verdicts and keyword fast path")
	}

	a.Orchestrator = agent.NewOrchestrator(
		a.Extractor, tools, agent.NewReasoner(client), a.Results, a.Bus, a.Metrics)
	a.Pool = queue.NewPool(a.Broker, a.Orchestrator, a.KV, a.Metrics, cfg.WorkerConcurrency)
	a.Gate = gate.New(cfg.AgentEnabled, a.Extractor,
		llm.NewClassifier(client), a.Broker, a.KV, a.Results, a.Metrics)
}

// StartRetention launches the background sweeps: archiving stale registry
// reports and purging old scan results. It returns when ctx is done.
func (a *App) StartRetention(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			cutoff := time.Now().Add(-a.Cfg.RegistryArchiveAfter)
			if n, err := a.Registry.ArchiveStale(sweepCtx, cutoff); err != nil {
				slog.Warn("[App] Registry archive sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("[App] Archived stale scam reports", "count", n)
			}
			if n, err := a.Results.PurgeOlderThan(sweepCtx, a.Cfg.ResultRetention); err != nil {
				slog.Warn("[App] Result purge failed", "error", err)
			} else if n > 0 {
				slog.Info("[App] Purged old scan results", "count", n)
			}
			cancel()
		}
	}
}

// Close releases backing connections in reverse wiring order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("[App] Close failed", "error", err)
		}
	}
}
