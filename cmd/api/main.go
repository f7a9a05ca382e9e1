package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ofsync/internal/interfaces/scheduler"
	"ofsync/internal/shared/config"
	"ofsync/internal/shared/logger"
	"ofsync/internal/shared/telemetry"
)

const (
	shutdownTimeout = 30 * time.Second
	// syncJobMargin is added to the run timeout so the engine, not the pool,
	// ends an overrunning sync and records it.
	syncJobMargin = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		logger.Get().Fatal("application error", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.Log.Env, cfg.Log.Level)
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, log)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				log.Error("telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	deps.Pool.Start()

	if deps.Listener != nil {
		deps.Listener.Start(ctx)
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewScheduler(scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			JobProvider:   scheduler.SyncJobProvider(deps.LinkRepo, deps.SyncEngine),
		}, deps.Pool)
		if err != nil {
			return err
		}
		sched.Start()
		log.Info("scheduler started", zap.Strings("times", cfg.Scheduler.ScheduleTimes))
	} else {
		log.Info("scheduler is disabled")
	}

	handler := SetupRoutes(deps, cfg, log)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg), log)

	<-ctx.Done()

	GracefulShutdown(srv, redirectSrv, sched, deps, shutdownTimeout, log)
	return nil
}
