package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
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
		Name:    "railguard",
		Usage:   "content moderation daemon for subreddit feeds",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"RAILGUARD_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the scraper and moderation engine",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "directory for scraped content, images, and cache logs",
			Value:   "data/railguard",
			EnvVars: []string{"RAILGUARD_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "rules-file",
			Usage:   "path to moderation rules JSON",
			Value:   "rules.json",
			EnvVars: []string{"RAILGUARD_RULES_FILE"},
		},
		&cli.StringSliceFlag{
			Name:    "subreddit",
			Usage:   "subreddit to monitor (repeatable)",
			EnvVars: []string{"RAILGUARD_SUBREDDITS"},
		},
		&cli.IntFlag{
			Name:    "scrape-interval",
			Usage:   "seconds between scrape passes",
			Value:   300,
			EnvVars: []string{"RAILGUARD_SCRAPE_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "reddit-client-id",
			EnvVars: []string{"REDDIT_CLIENT_ID"},
		},
		&cli.StringFlag{
			Name:    "reddit-client-secret",
			EnvVars: []string{"REDDIT_CLIENT_SECRET"},
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Usage:   "User-Agent for upstream API requests",
			Value:   "railguard/" + versioninfo.Short(),
			EnvVars: []string{"RAILGUARD_USER_AGENT"},
		},
		&cli.StringFlag{
			Name:    "hive-api-token",
			Usage:   "Hive AI API token; enables text and image policy moderation",
			EnvVars: []string{"HIVE_API_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "hf-api-token",
			Usage:   "Hugging Face API token; enables AI-generated text detection",
			EnvVars: []string{"HF_API_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for result cache and counters; in-process stores when empty",
			EnvVars: []string{"RAILGUARD_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "sqlite:// or postgres:// URL for the audit store; JSONL files under data-dir when empty",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"RAILGUARD_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cctx.String("log-level")),
		}))
		slog.SetDefault(logger)

		srv, err := NewServer(Config{
			DataDir:            cctx.String("data-dir"),
			RulesFile:          cctx.String("rules-file"),
			Subreddits:         cctx.StringSlice("subreddit"),
			ScrapeInterval:     cctx.Int("scrape-interval"),
			RedditClientID:     cctx.String("reddit-client-id"),
			RedditClientSecret: cctx.String("reddit-client-secret"),
			UserAgent:          cctx.String("user-agent"),
			HiveAPIToken:       cctx.String("hive-api-token"),
			HFAPIToken:         cctx.String("hf-api-token"),
			RedisURL:           cctx.String("redis-url"),
			DatabaseURL:        cctx.String("database-url"),
			Logger:             logger,
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

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
