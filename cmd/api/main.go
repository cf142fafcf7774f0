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

	"taskmanager/configs"
	v1 "taskmanager/internal/api/v1"
	"taskmanager/internal/config"
	"taskmanager/internal/repository"
	"taskmanager/pkg/logger"
)

func main() {
	// Load config
	cfg := configs.LoadConfig()

	// Initialize loggers
	if err := logger.InitLoggers(cfg.LogDir); err != nil {
		fmt.Fprintln(os.Stderr, "init loggers:", err)
		os.Exit(1)
	}
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	if err := run(cfg); err != nil {
		logger.ErrorLogger.Error("Application failed", zap.Error(err))
		logger.SyncLoggers()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg configs.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Create tables if they do not exist
	if err := repository.CreateTableIfNotExists(ctx, deps.DB); err != nil {
		return err
	}

	app := v1.NewApp(deps.Routes())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		logger.SystemLogger.Info("Application ready", zap.Int("port", cfg.Port))
		return app.Listen(fmt.Sprintf(":%d", cfg.Port))
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.SystemLogger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})
	return g.Wait()
}
