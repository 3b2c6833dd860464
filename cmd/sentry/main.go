package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "sentry",
		Usage:   "chat moderation decision engine",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "policy and violation storage; sqlite:// or postgres://",
			Value:   "sqlite://data/sentry/sentry.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "optional redis backing for counters and caches; in-memory when empty",
			EnvVars: []string{"SENTRY_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "policy-file",
			Usage:   "load the active policy pack from a JSON file instead of the database",
			EnvVars: []string{"SENTRY_POLICY_FILE"},
		},
		&cli.StringFlag{
			Name:    "inference-host",
			Usage:   "base URL of the inference provider API",
			Value:   "http://localhost:11434",
			EnvVars: []string{"SENTRY_INFERENCE_HOST"},
		},
		&cli.StringFlag{
			Name:    "inference-api-key",
			EnvVars: []string{"SENTRY_INFERENCE_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "inference-model",
			Usage:   "model name for content analysis; empty disables the availability probe",
			Value:   "llama3.1:8b",
			EnvVars: []string{"SENTRY_INFERENCE_MODEL"},
		},
		&cli.IntFlag{
			Name:    "inference-rate-limit",
			Usage:   "max requests per second to the inference provider",
			Value:   4,
			EnvVars: []string{"SENTRY_INFERENCE_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the moderation API",
			Value:   ":3899",
			EnvVars: []string{"SENTRY_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics",
			Value:   ":3898",
			EnvVars: []string{"SENTRY_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := NewServer(Config{
			Logger:             logger,
			DatabaseURL:        cctx.String("database-url"),
			MaxDBConnections:   cctx.Int("max-db-connections"),
			RedisURL:           cctx.String("redis-url"),
			PolicyFileJSON:     cctx.String("policy-file"),
			InferenceHost:      cctx.String("inference-host"),
			InferenceAPIKey:    cctx.String("inference-api-key"),
			InferenceModel:     cctx.String("inference-model"),
			InferenceRateLimit: cctx.Int("inference-rate-limit"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx, cctx.String("bind")); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}
