package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/studio-collab-backend/config"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/bootstrap"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/maintenance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := bootstrap.NewLogger("info", "production")
		fallback.Fatal().Err(err).Msg("load config")
	}

	log := bootstrap.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	// Idle local stores and limiter buckets live in this process, so the API
	// cleans up after itself; stream trimming is left to the worker.
	tasks := app.MaintenanceTasks()
	tasks.Streams = nil
	sched := maintenance.NewScheduler(cfg.Worker.MaintenanceCron, tasks, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("maintenance schedule")
	}
	defer sched.Stop()

	// Open streams never go idle; they end when their base context does.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", cfg.App.Version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTO)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
