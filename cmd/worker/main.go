package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/studio-collab-backend/config"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/bootstrap"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/maintenance"
	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/storage/postgres"
)

const usage = "usage: worker <migrate|trim|maintain>"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fallback := bootstrap.NewLogger("info", "production")
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := bootstrap.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "migrate":
		err = runMigrate(ctx, cfg, log)
	case "trim":
		err = runTrim(ctx, cfg, log)
	case "maintain":
		err = runMaintain(ctx, cfg, log)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("worker failed")
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	db, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: cfg.Database.ConnString()})
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("no database configured")
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db.SQL); err != nil {
		return err
	}
	log.Info().Msg("migrations applied")
	return nil
}

func runTrim(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	tasks := app.StreamTasks()
	if tasks.Streams == nil {
		return fmt.Errorf("no redis configured")
	}
	r := maintenance.NewScheduler("", tasks, log).RunOnce(ctx)
	return r.StreamTrimError
}

func runMaintain(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	tasks := app.StreamTasks()
	if tasks.Streams == nil {
		return fmt.Errorf("no redis configured")
	}
	sched := maintenance.NewScheduler(cfg.Worker.MaintenanceCron, tasks, log)
	if err := sched.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	sched.Stop()
	return nil
}
