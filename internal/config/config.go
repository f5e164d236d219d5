package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

const (
	LedgerDriverCSV      = "csv"
	LedgerDriverPostgres = "postgres"
)

type Config struct {
	LedgerDriver  string `env:"LEDGER_DRIVER,default=csv"`
	LedgerPath    string `env:"LEDGER_PATH,default=instagram_message_results.csv"`
	DatabaseDSN   string `env:"DATABASE_DSN"`
	RedisURL      string `env:"REDIS_URL"`
	RabbitMQURL   string `env:"RABBITMQ_URL"`
	AutomationURL string `env:"AUTOMATION_URL,required=true"`
	APIPort       int    `env:"API_PORT,default=8080"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`
	Location      string `env:"LOCATION,default=Local"`

	// Durations are whole seconds.
	SchedulerPollIntervalSec int    `env:"SCHEDULER_POLL_INTERVAL,default=30"`
	SchedulerDebounceSec     int    `env:"SCHEDULER_DEBOUNCE,default=60"`
	SchedulesFile            string `env:"SCHEDULES_FILE"`
	RunLockTTLSec            int    `env:"RUN_LOCK_TTL,default=120"`

	// SendRatePerHour caps sends per account; 0 disables the guard.
	SendRatePerHour         int `env:"SEND_RATE_PER_HOUR,default=40"`
	InterMessageDelayMinSec int `env:"INTER_MESSAGE_DELAY_MIN,default=10"`
	InterMessageDelayMaxSec int `env:"INTER_MESSAGE_DELAY_MAX,default=30"`

	Run RunDefaults
}

// RunDefaults seed the CLI run and the schedules file.
type RunDefaults struct {
	Username         string `env:"OUTREACH_USERNAME"`
	Password         string `env:"OUTREACH_PASSWORD"`
	Message          string `env:"OUTREACH_MESSAGE"`
	MaxMessages      int    `env:"OUTREACH_MAX_MESSAGES,default=48"`
	BatchIntervalSec int    `env:"OUTREACH_BATCH_INTERVAL,default=600"`
	CooldownMinMin   int    `env:"OUTREACH_COOLDOWN_MIN,default=5"`
	CooldownMaxMin   int    `env:"OUTREACH_COOLDOWN_MAX,default=5"`
}

// LoadDotEnv loads the given .env files into the environment. Missing files
// are ignored; OS variables win over file values.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.LedgerDriver)) {
	case LedgerDriverCSV:
		if strings.TrimSpace(c.LedgerPath) == "" {
			return fmt.Errorf("LEDGER_PATH is required for the csv ledger")
		}
	case LedgerDriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres ledger")
		}
	default:
		return fmt.Errorf("unsupported LEDGER_DRIVER %q", c.LedgerDriver)
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be in 1..65535 (got %d)", c.APIPort)
	}
	if c.SchedulerPollIntervalSec < 1 {
		return fmt.Errorf("SCHEDULER_POLL_INTERVAL must be >= 1 (got %d)", c.SchedulerPollIntervalSec)
	}
	if c.SchedulerDebounceSec < 0 {
		return fmt.Errorf("SCHEDULER_DEBOUNCE must be >= 0 (got %d)", c.SchedulerDebounceSec)
	}
	if c.SendRatePerHour < 0 {
		return fmt.Errorf("SEND_RATE_PER_HOUR must be >= 0 (got %d)", c.SendRatePerHour)
	}
	if c.InterMessageDelayMinSec < 0 || c.InterMessageDelayMaxSec < c.InterMessageDelayMinSec {
		return fmt.Errorf("inter-message delay window %d..%d is invalid", c.InterMessageDelayMinSec, c.InterMessageDelayMaxSec)
	}
	if _, err := c.TimeLocation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) UsesPostgres() bool {
	return strings.EqualFold(strings.TrimSpace(c.LedgerDriver), LedgerDriverPostgres)
}

func (c *Config) TimeLocation() (*time.Location, error) {
	name := strings.TrimSpace(c.Location)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION %q: %w", c.Location, err)
	}
	return loc, nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.SchedulerPollIntervalSec) * time.Second
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.SchedulerDebounceSec) * time.Second
}

func (c *Config) RunLockTTL() time.Duration {
	return time.Duration(c.RunLockTTLSec) * time.Second
}

func (c *Config) InterMessageDelay() (time.Duration, time.Duration) {
	return time.Duration(c.InterMessageDelayMinSec) * time.Second,
		time.Duration(c.InterMessageDelayMaxSec) * time.Second
}

// RunConfig builds a run configuration from the OUTREACH_* defaults. The
// result is not validated.
func (d RunDefaults) RunConfig() domain.RunConfig {
	return domain.RunConfig{
		Credentials: domain.Credentials{
			Username: d.Username,
			Password: d.Password,
		},
		Message:       d.Message,
		MaxMessages:   d.MaxMessages,
		BatchInterval: time.Duration(d.BatchIntervalSec) * time.Second,
		CooldownMin:   time.Duration(d.CooldownMinMin) * time.Minute,
		CooldownMax:   time.Duration(d.CooldownMaxMin) * time.Minute,
	}
}
