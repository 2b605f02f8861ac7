package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/railguard/railguard/automod/cachestore"
	"github.com/railguard/railguard/automod/countstore"
	"github.com/railguard/railguard/automod/engine"
	"github.com/railguard/railguard/automod/rules"
	"github.com/railguard/railguard/detectors"
	"github.com/railguard/railguard/models"
	"github.com/railguard/railguard/scraper"
	"github.com/railguard/railguard/storage"
	"github.com/railguard/railguard/transport"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	logger  *slog.Logger
	engine  *engine.Engine
	scraper *scraper.Scraper
	cfg     Config
}

type Config struct {
	DataDir            string
	RulesFile          string
	Subreddits         []string
	ScrapeInterval     int
	RedditClientID     string
	RedditClientSecret string
	UserAgent          string
	HiveAPIToken       string
	HFAPIToken         string
	RedisURL           string
	DatabaseURL        string
	Logger             *slog.Logger
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	client := transport.NewClient(logger)

	var counters countstore.CountStore
	var cache cachestore.ResultCache
	if config.RedisURL != "" {
		// fail fast on an unreachable redis rather than at first use
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewFileCacheStore(filepath.Join(config.DataDir, "cache", "results.jsonl"), logger)
	}

	var store storage.Storage
	if config.DatabaseURL != "" {
		db, err := storage.NewGormStorage(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("initializing database storage: %v", err)
		}
		store = db
	} else {
		js, err := storage.NewJsonlStorage(config.DataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing jsonl storage: %v", err)
		}
		store = js
	}

	ruleEngine := rules.NewEngine(logger)
	if err := ruleEngine.LoadRulesJSON(config.RulesFile); err != nil {
		// a bad rules file means every item defaults to allow; run anyway
		logger.Warn("starting with empty rule set", "path", config.RulesFile, "err", err)
	}

	textAI := detectors.TextAIDetector(detectors.DisabledTextAIDetector{})
	if config.HFAPIToken != "" {
		logger.Info("configuring Hugging Face AI text detection")
		textAI = detectors.NewHFTextDetector(client, config.HFAPIToken, logger)
	}

	textPolicy := detectors.TextPolicyModerator(detectors.DisabledTextPolicyModerator{})
	imagePolicy := detectors.ImagePolicyModerator(detectors.DisabledImagePolicyModerator{})
	if config.HiveAPIToken != "" {
		logger.Info("configuring Hive AI policy moderation")
		textPolicy = detectors.NewHiveTextModerator(client, config.HiveAPIToken, logger)
		imagePolicy = detectors.NewHiveImageModerator(client, config.HiveAPIToken, logger)
	}

	eng := &engine.Engine{
		Logger:      logger,
		TextAI:      textAI,
		TextPolicy:  textPolicy,
		ImagePolicy: imagePolicy,
		Rules:       ruleEngine,
		Cache:       cache,
		Counters:    counters,
		Store:       store,
	}

	scr := scraper.New(client, scraper.Config{
		ClientID:     config.RedditClientID,
		ClientSecret: config.RedditClientSecret,
		UserAgent:    config.UserAgent,
		DataDir:      config.DataDir,
		Subreddits:   config.Subreddits,
		Logger:       logger,
	})

	return &Server{
		logger:  logger,
		engine:  eng,
		scraper: scr,
		cfg:     config,
	}, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Run starts the scraper and processes items until ctx is canceled. Items
// flow through an unbuffered channel, so at most one item is moderated at a
// time and a slow pass backpressures the scraper's polling goroutine.
func (s *Server) Run(ctx context.Context) error {
	items := make(chan models.ContentItem)
	s.scraper.SetOnItemScraped(func(item models.ContentItem) {
		select {
		case items <- item:
		case <-ctx.Done():
		}
	})

	s.scraper.Start(s.cfg.ScrapeInterval)
	defer s.scraper.Stop()

	s.logger.Info("moderation service running",
		"subreddits", s.cfg.Subreddits, "interval_seconds", s.cfg.ScrapeInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested")
			return nil
		case item := <-items:
			s.engine.ProcessItem(ctx, &item)
		}
	}
}
