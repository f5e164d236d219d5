package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/app"
	"github.com/kursadbilgin/outreach-engine/internal/config"
	"github.com/kursadbilgin/outreach-engine/internal/ledger"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"github.com/kursadbilgin/outreach-engine/internal/profiles"
	"github.com/kursadbilgin/outreach-engine/internal/queue"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "outreachctl",
	Short: "Run and inspect outreach batches from the terminal",
	Long: `outreachctl drives the same run controller as the API server.
Configuration comes from the environment (and .env), the same keys the server reads.
Flags on "run" override the OUTREACH_* run defaults.`,
	SilenceUsage: true,
}

var (
	envFile  string
	logLevel string
)

func main() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(resultsCmd())
	rootCmd.AddCommand(sentCmd())
	rootCmd.AddCommand(eventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withComponents loads configuration, builds the backends and hands them to
// fn. SIGINT/SIGTERM cancel ctx.
func withComponents(fn func(ctx context.Context, c *app.Components, logger *zap.Logger) error) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := observability.NewConsoleLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

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

	return fn(ctx, components, logger)
}

func runCmd() *cobra.Command {
	var (
		profilePath   string
		username      string
		password      string
		message       string
		maxMessages   int
		batchInterval time.Duration
		cooldownMin   time.Duration
		cooldownMax   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one outreach batch in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := profiles.LoadFile(profilePath)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return fmt.Errorf("no profile URLs found in %s", profilePath)
			}

			return withComponents(func(ctx context.Context, c *app.Components, logger *zap.Logger) error {
				runCfg := c.Config.Run.RunConfig()
				flags := cmd.Flags()
				if flags.Changed("username") {
					runCfg.Credentials.Username = username
				}
				if flags.Changed("password") {
					runCfg.Credentials.Password = password
				}
				if flags.Changed("message") {
					runCfg.Message = message
				}
				if flags.Changed("max-messages") {
					runCfg.MaxMessages = maxMessages
				}
				if flags.Changed("batch-interval") {
					runCfg.BatchInterval = batchInterval
				}
				if flags.Changed("cooldown-min") {
					runCfg.CooldownMin = cooldownMin
				}
				if flags.Changed("cooldown-max") {
					runCfg.CooldownMax = cooldownMax
				}

				state, err := c.Runs.RunSync(ctx, runCfg, targets)
				logger.Info("run finished",
					zap.String("runId", state.RunID),
					zap.String("phase", state.Phase.String()),
					zap.Int("messagesSent", state.MessagesSent),
					zap.Int("failed", state.Failed),
					zap.Int("skipped", state.Skipped),
					zap.Int("cooldowns", state.Cooldowns),
				)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&profilePath, "profiles", "p", "", "profile list (.xlsx or .csv with a URL column)")
	cmd.Flags().StringVar(&username, "username", "", "account username (default OUTREACH_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "account password (default OUTREACH_PASSWORD)")
	cmd.Flags().StringVar(&message, "message", "", "message text (default OUTREACH_MESSAGE)")
	cmd.Flags().IntVar(&maxMessages, "max-messages", 0, "successful sends per run")
	cmd.Flags().DurationVar(&batchInterval, "batch-interval", 0, "batch interval (e.g. 10m)")
	cmd.Flags().DurationVar(&cooldownMin, "cooldown-min", 0, "shortest cooldown (e.g. 5m)")
	cmd.Flags().DurationVar(&cooldownMax, "cooldown-max", 0, "longest cooldown (e.g. 5m)")
	_ = cmd.MarkFlagRequired("profiles")

	return cmd
}

func resultsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Print the attempt ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(func(ctx context.Context, c *app.Components, logger *zap.Logger) error {
				records, err := c.Ledger.ReadAll(ctx)
				if err != nil {
					if !errors.Is(err, ledger.ErrMalformedRecord) {
						return err
					}
					logger.Warn("some ledger rows were skipped", zap.Error(err))
				}

				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, resultRows(records, c.Location))
				}
				renderResults(out, records, c.Location)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")

	return cmd
}

func sentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sent",
		Short: "List profiles that already received the message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(func(ctx context.Context, c *app.Components, logger *zap.Logger) error {
				sent := ledger.LoadSent(ctx, c.Ledger, logger)
				renderSent(cmd.OutOrStdout(), sent)
				return nil
			})
		},
	}
}

func eventsCmd() *cobra.Command {
	var prefetch int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow attempt events published to RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(func(ctx context.Context, c *app.Components, logger *zap.Logger) error {
				if c.Rabbit == nil {
					return fmt.Errorf("RABBITMQ_URL is not set")
				}

				consumer := queue.NewRabbitMQConsumer(c.Rabbit, prefetch, logger)
				out := cmd.OutOrStdout()
				err := consumer.Consume(ctx, queue.AttemptsQueue, func(ctx context.Context, event queue.AttemptEvent) error {
					return printJSON(out, event)
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&prefetch, "prefetch", 10, "unacknowledged deliveries to buffer")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
