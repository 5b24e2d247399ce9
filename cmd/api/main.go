package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scamshield/backend/internal/config"
	"github.com/scamshield/backend/internal/handlers"
	"github.com/scamshield/backend/internal/middleware"
	"github.com/scamshield/backend/internal/progress"
	"github.com/scamshield/backend/internal/service"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	app, err := service.New(cfg)
	if err != nil {
		slog.Error("[API] Wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	activeTasks := func() int { return 0 }
	if cfg.WorkerEmbedded && cfg.AgentEnabled {
		app.Pool.Start(ctx)
		activeTasks = app.Pool.ActiveTasks
		go app.StartRetention(ctx)
		slog.Info("[API] Embedded worker started", "concurrency", cfg.WorkerConcurrency)
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{})

	router := mux.NewRouter()
	router.Use(middleware.Logging, middleware.CORS(cfg.AllowedOrigins))
	router.Handle("/api/v1/analyze",
		limiter.Middleware(handlers.Analyze(app.Gate))).Methods("POST", "OPTIONS")
	router.HandleFunc("/agent-task/{task_id}/status", handlers.TaskStatus(app.Results)).Methods("GET")
	router.HandleFunc("/health/agent", handlers.AgentHealth(cfg.AgentEnabled, app.KV, activeTasks)).Methods("GET")
	router.HandleFunc("/ws/agent-progress/{task_id}", progress.Handler(app.Bus))
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("[API] Listening", "port", cfg.Port, "agent_enabled", cfg.AgentEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[API] Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[API] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[API] Shutdown incomplete", "error", err)
	}
	if cfg.WorkerEmbedded && cfg.AgentEnabled {
		app.Pool.Wait()
	}
}
