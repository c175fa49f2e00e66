package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CondeArmand/gamemate-backend/internal/api"
	"github.com/CondeArmand/gamemate-backend/internal/app"
	"github.com/CondeArmand/gamemate-backend/internal/catalog"
	"github.com/CondeArmand/gamemate-backend/internal/config"
	"github.com/CondeArmand/gamemate-backend/internal/jobs"
	"github.com/CondeArmand/gamemate-backend/internal/logging"
	"github.com/CondeArmand/gamemate-backend/internal/scheduler"
	"github.com/CondeArmand/gamemate-backend/internal/users"
	"github.com/CondeArmand/gamemate-backend/internal/version"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	os.Exit(finish(logger, run(cfg, logger)))
}

// finish logs a fatal run error and flushes the logger before the process
// exits, returning the exit code.
func finish(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("gamemate stopped", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("gamemate starting", zap.String("version", version.Get().Version))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.DB.Migrate(); err != nil {
		return err
	}

	hub := api.NewWSHub()
	engine := a.Engine(hub)
	jobs.RegisterHandlers(a.Queue, a.Syncer(hub), engine, logger)

	sched, err := scheduler.New(a.Users, a.Queue, cfg.Scheduler.ResyncSpec, logger)
	if err != nil {
		return err
	}

	srv := api.NewServer(cfg.HTTP.Port, a.DB, api.Routes{
		Users: users.NewHandler(a.Users, a.Ownership, a.Queue, logger).Router(),
		Games: catalog.NewHandler(a.Catalog, a.Ownership, engine, a.IGDBClient(), logger).Router(),
	}, hub, logger)

	if err := a.Queue.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		sched.Stop()
		a.Queue.Stop()
		return err
	})
	return g.Wait()
}
