package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/studio-billing/internal/app"
	"github.com/Spok95/studio-billing/internal/config"
	httpx "github.com/Spok95/studio-billing/internal/infra/http"
	"github.com/Spok95/studio-billing/internal/infra/logger"
	"github.com/Spok95/studio-billing/internal/infra/payments"
	"github.com/Spok95/studio-billing/internal/jobs"
)

func main() {
	configPath := flag.String("config", "config/example.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env, "billing")

	if err := app.RunMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		return
	}
	defer a.Close()

	loc, _ := cfg.Location()
	scheduler := jobs.NewScheduler(jobs.NewJobs(a.Billing, a.Locker, log, loc), log, cfg.Billing)
	scheduler.Start()

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled,
		httpx.NewAPI(a.Billing, log).Routes,
		payments.NewHandler(log, a.Billing).Routes,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	// ждём текущую задачу планировщика
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("scheduler did not stop in time")
	}
	log.Info("graceful shutdown complete")
}
