package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"devhelper/internal/config"
	"devhelper/internal/delivery/amqp"
	"devhelper/internal/delivery/logsink"
	"devhelper/internal/delivery/telegram"
	"devhelper/internal/domain"
	"devhelper/internal/httpapi"
	"devhelper/internal/render"
	"devhelper/internal/scheduler"
	"devhelper/internal/service"
	"devhelper/internal/source/feed"
	"devhelper/internal/storage/mongo"
	"devhelper/internal/storage/sqlstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("scheduler exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sessionStore, subscriptionStore, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	gateway, closeGateway, err := openGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer closeGateway()

	loc, err := time.LoadLocation(cfg.Render.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	renderer := render.New(cfg.Render.CommandPrefix, loc)

	fetcher := feed.New(feed.Config{
		DevToURL:       cfg.Feeds.DevToURL,
		HackerNewsURL:  cfg.Feeds.HackerNewsURL,
		RedditURL:      cfg.Feeds.RedditURL,
		Subreddits:     cfg.Feeds.Subreddits,
		UserAgent:      cfg.Feeds.UserAgent,
		Timeout:        cfg.Feeds.Timeout,
		MaxAttempts:    cfg.Feeds.Retry.MaxAttempts,
		InitialBackoff: cfg.Feeds.Retry.InitialBackoff,
		MaxBackoff:     cfg.Feeds.Retry.MaxBackoff,
	}, logger)

	sessions := service.NewSessionService(sessionStore, gateway, renderer, logger)
	subscriptions := service.NewSubscriptionService(subscriptionStore, logger)

	sessionPoller := scheduler.NewPoller[*domain.Session](
		service.NewSessionNotifier(sessionStore, gateway, renderer, logger),
		pollerConfig(cfg.Sessions),
		logger,
	)
	digestPoller := scheduler.NewPoller[*domain.Subscription](
		service.NewDigestDispatcher(subscriptionStore, gateway, fetcher, renderer, cfg.Digests.ItemsPerSource, logger),
		pollerConfig(cfg.Digests.PollerConfig),
		logger,
	)

	if err := sessionPoller.Start(ctx); err != nil {
		return fmt.Errorf("start session poller: %w", err)
	}
	defer sessionPoller.Stop()
	if err := digestPoller.Start(ctx); err != nil {
		return fmt.Errorf("start digest poller: %w", err)
	}
	defer digestPoller.Stop()

	logger.Info("starting scheduler",
		"storage", cfg.Storage,
		"delivery", cfg.Delivery.Driver,
		"session_interval", cfg.Sessions.Interval,
		"digest_interval", cfg.Digests.Interval,
		"http_addr", cfg.HTTP.Addr,
	)

	api := httpapi.New(sessions, subscriptions, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.ListenAndServe(gctx, cfg.HTTP.Addr, cfg.HTTP.ShutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		// Finish in-flight ticks before the stores and gateway close.
		sessionPoller.Stop()
		digestPoller.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func pollerConfig(c config.PollerConfig) scheduler.Config {
	return scheduler.Config{
		Interval:    c.Interval,
		Workers:     c.Workers,
		TickTimeout: c.TickTimeout,
		RunOnStart:  c.RunOnStart,
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.SessionStore, service.SubscriptionStore, func(), error) {
	switch cfg.Storage {
	case config.StorageMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to mongo: %w", err)
		}
		logger.Info("connected to mongo", "database", cfg.Mongo.Database)

		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				logger.Warn("failed to disconnect from mongo", "error", err)
			}
		}
		return mongo.NewSessionStore(db), mongo.NewSubscriptionStore(db), closeFn, nil

	default:
		db, err := sqlstore.Open(ctx, sqlstore.Config{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			BusyTimeout:     cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		logger.Info("connected to database", "driver", cfg.Database.Driver)

		closeFn := func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", "error", err)
			}
		}
		return sqlstore.NewSessionStore(db), sqlstore.NewSubscriptionStore(db), closeFn, nil
	}
}

func openGateway(cfg *config.Config, logger *slog.Logger) (service.Gateway, func(), error) {
	switch cfg.Delivery.Driver {
	case config.DeliveryTelegram:
		gw, err := telegram.New(telegram.Config{
			Token:      cfg.Delivery.Telegram.Token,
			APIURL:     cfg.Delivery.Telegram.APIURL,
			RatePerSec: cfg.Delivery.Telegram.RatePerSec,
			Timeout:    cfg.Delivery.Telegram.Timeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return gw, func() {}, nil

	case config.DeliveryAMQP:
		gw, err := amqp.New(amqp.Config{
			URL:        cfg.Delivery.RabbitMQ.URL,
			Exchange:   cfg.Delivery.RabbitMQ.Exchange,
			RoutingKey: cfg.Delivery.RabbitMQ.RoutingKey,
			QueueName:  cfg.Delivery.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return gw, func() {
			if err := gw.Close(); err != nil {
				logger.Warn("failed to close rabbitmq connection", "error", err)
			}
		}, nil

	default:
		return logsink.New(logger), func() {}, nil
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
