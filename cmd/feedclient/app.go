package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/time/rate"

	"github.com/mercedmeals/feedclient/api"
	"github.com/mercedmeals/feedclient/api/validator"
	"github.com/mercedmeals/feedclient/composer"
	"github.com/mercedmeals/feedclient/config"
	"github.com/mercedmeals/feedclient/feed"
	"github.com/mercedmeals/feedclient/home"
	"github.com/mercedmeals/feedclient/memory"
	"github.com/mercedmeals/feedclient/postgres"
	"github.com/mercedmeals/feedclient/redis"
	"github.com/mercedmeals/feedclient/session"
)

type app struct {
	logger *slog.Logger
	closer io.Closer
	auth   *session.Authenticator
	page   *home.Page
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func openStore(ctx context.Context, cfg *config.Config) (session.Store, io.Closer, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), nil, nil
	case config.StoreRedis:
		r, err := redis.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return r, r, nil
	case config.StorePostgres:
		pg, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pg.CreateSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("create schema: %w", err)
		}
		return pg, pg, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := newLogger(cfg, os.Stderr)

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := &api.Client{
		BaseURL:    cfg.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout},
		Logger:     logger,
	}
	if cfg.RateLimit > 0 {
		client.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	val := validator.New()
	gate := &session.Gate{Store: store, Logger: logger}
	repo := &feed.Repository{
		API:           client,
		Logger:        logger,
		EnrichAuthors: cfg.EnrichAuthors,
		Concurrency:   cfg.AuthorConcurrency,
	}
	c := &composer.Composer{API: client, Identity: gate, Val: val, Logger: logger}

	return &app{
		logger: logger,
		closer: closer,
		auth:   &session.Authenticator{API: client, Store: store, Val: val, Logger: logger},
		page:   home.New(gate, repo, c, logger),
	}, nil
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
