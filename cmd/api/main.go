package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/outreach-engine/internal/app"
	"github.com/kursadbilgin/outreach-engine/internal/config"
	"github.com/kursadbilgin/outreach-engine/internal/handler"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"github.com/kursadbilgin/outreach-engine/internal/profiles"
	"github.com/kursadbilgin/outreach-engine/internal/service"
	"github.com/kursadbilgin/outreach-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal("failed to load .env", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("outreach api stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("failed to close backends", zap.Error(err))
		}
	}()

	schedules, err := service.NewScheduleService(components.Schedules, logger)
	if err != nil {
		return err
	}
	seed, err := config.SchedulesFromFile(cfg.SchedulesFile, cfg.Run, time.Now())
	if err != nil {
		return fmt.Errorf("failed to load schedules file: %w", err)
	}
	if err := schedules.Seed(ctx, seed); err != nil {
		return err
	}

	scheduler, err := service.NewScheduler(
		components.Schedules,
		components.Runs.ScheduledRun(profiles.LoadFile),
		cfg.PollInterval(),
		cfg.Debounce(),
		components.Location,
		logger,
	)
	if err != nil {
		return err
	}

	server, err := newServer(components, schedules, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("outreach api started", zap.String("addr", addr))
		if err := server.Listen(addr); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := components.Runs.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("run shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newServer(components *app.Components, schedules *service.ScheduleService, logger *zap.Logger) (*fiber.App, error) {
	server := fiber.New(fiber.Config{
		AppName:               "outreach-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	server.Use(components.Metrics.HTTPMiddleware())

	checks := make(map[string]handler.ReadinessCheck)
	for name, check := range components.ReadinessChecks() {
		checks[name] = check
	}
	handler.RegisterHealthRoutes(server, checks)
	server.Get("/metrics", adaptor.HTTPHandler(components.Metrics.Handler()))

	if err := handler.RegisterRunRoutes(server, components.Runs); err != nil {
		return nil, err
	}
	if err := handler.RegisterResultsRoutes(server, components.Ledger, components.Location); err != nil {
		return nil, err
	}
	if err := handler.RegisterScheduleRoutes(server, schedules); err != nil {
		return nil, err
	}

	return server, nil
}
