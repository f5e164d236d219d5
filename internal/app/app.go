// Package app assembles the outreach components from configuration. It is
// shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/config"
	"github.com/kursadbilgin/outreach-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/outreach-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/outreach-engine/internal/infra/redis"
	"github.com/kursadbilgin/outreach-engine/internal/ledger"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"github.com/kursadbilgin/outreach-engine/internal/pacing"
	"github.com/kursadbilgin/outreach-engine/internal/provider"
	"github.com/kursadbilgin/outreach-engine/internal/queue"
	"github.com/kursadbilgin/outreach-engine/internal/ratelimit"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"github.com/kursadbilgin/outreach-engine/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sendRateWindow = time.Hour

// Components holds everything a process needs to run and inspect outreach
// runs. Optional backends are nil when not configured.
type Components struct {
	Config    *config.Config
	Location  *time.Location
	Ledger    ledger.Ledger
	Schedules repository.ScheduleStore
	Metrics   *observability.Metrics
	Board     *service.StatusBoard
	Runs      *service.RunManager

	DB     *gorm.DB
	Redis  *redis.Client
	Rabbit *queue.RabbitMQ

	logger  *zap.Logger
	closers []func() error
}

// Build connects the configured backends and wires the run manager. On
// error every backend opened so far is closed.
func Build(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}

	c := &Components{
		Config:   cfg,
		Location: loc,
		Metrics:  observability.NewMetrics(),
		Board:    service.NewStatusBoard(0),
		logger:   logger,
	}

	if err := c.build(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build() error {
	cfg := c.Config

	if err := c.openLedger(); err != nil {
		return err
	}

	if cfg.RedisURL != "" {
		rdb, err := infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		c.Redis = rdb
		c.closers = append(c.closers, rdb.Close)
	}

	if cfg.RabbitMQURL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		c.Rabbit = rabbit
		c.closers = append(c.closers, rabbit.Close)

		published, err := ledger.NewPublishing(c.Ledger, queue.NewRabbitMQPublisher(rabbit), c.logger)
		if err != nil {
			return err
		}
		c.Ledger = published
	}

	limiter, err := c.rateLimiter()
	if err != nil {
		return err
	}

	driver, err := provider.NewHTTPDriver(cfg.AutomationURL)
	if err != nil {
		return fmt.Errorf("automation driver initialization failed: %w", err)
	}

	controller, err := service.NewController(
		driver,
		c.Ledger,
		pacing.NewPolicy(cfg.InterMessageDelay()),
		limiter,
		nil,
		c.logger,
	)
	if err != nil {
		return err
	}
	controller.SetMetrics(c.Metrics)

	var locker service.RunLocker
	if c.Redis != nil {
		lock, err := infraredis.NewRunLock(c.Redis, cfg.RunLockTTL())
		if err != nil {
			return err
		}
		locker = lock
	}

	runs, err := service.NewRunManager(controller, locker, c.Board, c.logger)
	if err != nil {
		return err
	}
	c.Runs = runs

	if c.DB != nil {
		c.Schedules = repository.NewGormScheduleRepo(c.DB)
	} else {
		c.Schedules = repository.NewMemoryScheduleStore()
	}

	return nil
}

func (c *Components) openLedger() error {
	cfg := c.Config

	if !cfg.UsesPostgres() {
		csvLedger, err := ledger.NewCSVLedger(cfg.LedgerPath, c.Location)
		if err != nil {
			return err
		}
		c.Ledger = csvLedger
		c.logger.Info("using csv ledger", zap.String("path", csvLedger.Path()))
		return nil
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	c.DB = db
	c.closers = append(c.closers, sqlDB.Close)

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	c.Ledger = repository.NewGormAttemptRepo(db)
	c.logger.Info("using postgres ledger")
	return nil
}

// rateLimiter prefers the shared redis window and falls back to an
// in-process bucket. A non-positive SEND_RATE_PER_HOUR disables the guard.
func (c *Components) rateLimiter() (ratelimit.RateLimiter, error) {
	perHour := c.Config.SendRatePerHour
	if perHour <= 0 {
		return nil, nil
	}

	if c.Redis != nil {
		limiter, err := infraredis.NewRedisRateLimiter(c.Redis, perHour, sendRateWindow)
		if err != nil {
			return nil, err
		}
		return limiter, nil
	}

	limiter, err := ratelimit.NewLocalLimiter(perHour, sendRateWindow)
	if err != nil {
		return nil, err
	}
	return limiter, nil
}

// ReadinessChecks returns a ping per configured backend.
func (c *Components) ReadinessChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{}

	if c.DB != nil {
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		}
	}
	if c.Rabbit != nil {
		checks["rabbitmq"] = c.Rabbit.Ping
	}

	return checks
}

// Close releases backends in reverse order of opening.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
