// The worker binary consumes analysis tasks from the queue without serving
// HTTP traffic, for deployments that scale analysis separately from ingress.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/scamshield/backend/internal/config"
	"github.com/scamshield/backend/internal/service"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	if cfg.RedisAddr == "" {
		slog.Error("[Worker] REDIS_ADDR is required; a standalone worker cannot share an in-memory queue")
		os.Exit(1)
	}

	app, err := service.New(cfg)
	if err != nil {
		slog.Error("[Worker] Wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Pool.Start(ctx)
	go app.StartRetention(ctx)
	slog.Info("[Worker] Started", "concurrency", cfg.WorkerConcurrency)

	<-ctx.Done()
	slog.Info("[Worker] Shutting down, draining in-flight tasks")
	app.Pool.Wait()
}
