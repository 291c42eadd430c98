package main

import (
	"appointment-notifier/config"
	"appointment-notifier/poll"
	"appointment-notifier/registry"
	"appointment-notifier/scraper"
	"appointment-notifier/server"
	"appointment-notifier/storage"
	"appointment-notifier/telegram"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
)

// app wires the watcher and webhook around one shared store.
type app struct {
	monitor *poll.Monitor
	server  *server.Server
	logger  *slog.Logger
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	backend, err := a.newBackend(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	store := storage.New(backend, logger)

	var provider telegram.Provider
	if cfg.TelegramToken == "" {
		logger.Info("Mock telegram mode enabled (no TELEGRAM_BOT_TOKEN)")
		provider = telegram.NewMockProvider(logger)
	} else {
		provider = telegram.NewBot(cfg.TelegramToken, cfg.TelegramAPIBase, logger)
	}

	policy := scraper.DefaultRetryPolicy()
	if !cfg.RetryParseErrors {
		policy.Retryable = scraper.RetryTransportOnly
	}
	fetcher := scraper.New(&http.Client{Timeout: 30 * time.Second}, logger, scraper.WithRetryPolicy(policy))

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}
	order := poll.NotifyThenPersist
	if cfg.PersistBeforeNotify {
		order = poll.PersistThenNotify
	}

	a.monitor = poll.New(&poll.Config{
		Fetcher:    fetcher,
		Store:      store,
		Sender:     provider,
		Logger:     logger,
		Location:   loc,
		PageURL:    cfg.AppointmentURL,
		WindowDays: cfg.WindowDays,
		Order:      order,
	})
	a.server = server.New(&server.Config{
		Poller:        a.monitor,
		Registry:      registry.New(store, logger),
		Messenger:     provider,
		Logger:        logger,
		WebhookSecret: cfg.WebhookSecret,
		PollLimit:     cfg.PollLimit,
	})
	return a, nil
}

func (a *app) newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch {
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		a.logger.Info("Using Redis state backend", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return storage.NewRedis(client, cfg.RedisPrefix, a.logger), nil

	case cfg.StorageBucket != "":
		var opts []option.ClientOption
		if cfg.GoogleCredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleCredentialsJSON)))
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("initialize Storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("Using Cloud Storage state backend", "bucket", cfg.StorageBucket)
		return storage.NewGCS(client, cfg.StorageBucket, a.logger), nil

	case cfg.LocalStorage != "":
		a.logger.Info("Running in local development mode", "storage_path", cfg.LocalStorage)
		return storage.NewLocal(cfg.LocalStorage, a.logger)

	default:
		return nil, errors.New("no state backend configured")
	}
}

// Close releases backend clients.
func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("Failed to close client", "error", err)
		}
	}
	a.closers = nil
}
