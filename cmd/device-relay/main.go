package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"device-relay/internal/config"
	"device-relay/internal/database"
	"device-relay/internal/handlers"
	"device-relay/internal/history"
	"device-relay/internal/logging"
	"device-relay/internal/metrics"
	"device-relay/internal/router"
	"device-relay/internal/sender"
	"device-relay/internal/sender/email"
	"device-relay/internal/sender/email/provider"
	"device-relay/internal/sender/kafka"
	"device-relay/internal/sender/mqtt"
	"device-relay/internal/sender/slack"
	"device-relay/internal/sender/strategy"
	"device-relay/internal/sender/telegram"
	"device-relay/internal/sender/webhook"
	"device-relay/internal/shared"
)

const serviceName = "device-relay"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, syncLogs := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	slog.SetDefault(logger)
	defer syncLogs()

	slog.Info("Starting device-relay service",
		"http_port", cfg.HTTPPort,
		"redis_addr", cfg.RedisAddr,
		"history_key", cfg.HistoryKey,
		"history_capacity", cfg.HistoryCapacity,
		"dispatch_timeout", cfg.DispatchTimeout,
		"postgres_dsn", shared.MaskDSN(cfg.PostgresDSN),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize Redis connection
	slog.Info("Connecting to Redis", "addr", cfg.RedisAddr)
	redisClient, err := shared.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		slog.Info("Tip: Start Redis with 'docker compose up -d redis' or ensure Redis is running")
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("Successfully connected to Redis")

	store := history.NewRedisStore(redisClient, cfg.HistoryKey, cfg.HistoryCapacity)

	// Metrics: Redis-reported snapshot plus Prometheus exposition
	collector := metrics.NewCollector(serviceName, redisClient)
	collector.SetReportInterval(cfg.MetricsReportInterval)
	collector.Start(ctx)
	defer collector.Stop()
	prom := metrics.NewPrometheus()
	recorder := metrics.Multi{collector, prom}

	senderOpts := []sender.Option{
		sender.WithTimeout(cfg.DispatchTimeout),
		sender.WithMetrics(recorder),
	}
	handlerOpts := []handlers.Option{
		handlers.WithMetrics(recorder),
		handlers.WithStats(collector),
		handlers.WithStatsReader(metrics.NewReader(redisClient)),
		handlers.WithProcessTimeout(cfg.DispatchTimeout + 5*time.Second),
	}

	// Optional endpoints registry
	if cfg.PostgresDSN != "" {
		slog.Info("Connecting to PostgreSQL endpoints registry")
		db, err := database.NewDB(cfg.PostgresDSN)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			slog.Info("Tip: Start Postgres with 'docker compose up -d postgres' or unset POSTGRES_DSN")
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("Failed to ensure endpoints schema", "error", err)
			os.Exit(1)
		}
		senderOpts = append(senderOpts, sender.WithEndpointSource(db))
		handlerOpts = append(handlerOpts, handlers.WithEndpointRegistry(db))
		slog.Info("Successfully connected to PostgreSQL endpoints registry")
	}

	registry, closers := buildChannels(ctx, cfg)
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Error("Failed to close channel", "error", err)
			}
		}
	}()

	dispatcher := sender.NewSender(registry, cfg.Destinations(), senderOpts...)
	slog.Info("Initialized channel dispatcher", "channels", dispatcher.Channels())

	h := handlers.NewHandlers(cfg.WebhookSecret, store, dispatcher, handlerOpts...)
	server := router.NewServer(cfg.HTTPPort, router.NewRouter(h, prom.Handler()).Handler())

	// Start HTTP server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down HTTP server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down server", "error", err)
		}
		slog.Info("HTTP server stopped")
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Device-relay stopped")
}

// buildChannels registers every channel whose transport is configured and
// returns the cleanup functions of those holding connections.
func buildChannels(ctx context.Context, cfg *config.Config) (*strategy.Registry, []func() error) {
	registry := strategy.NewRegistry()
	var closers []func() error

	// Email providers: primary from EMAIL_PROVIDER, the others as fallbacks
	mailers := provider.NewRegistry()
	mailers.Register(provider.NewSMTPProvider(provider.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
	}))
	mailers.Register(provider.NewResendProvider(cfg.ResendAPIKey))
	mailers.Register(provider.NewSESProvider(ctx, cfg.AWSRegion))
	if err := mailers.SetPrimary(cfg.EmailProvider); err != nil {
		slog.Warn("Unknown email provider", "provider", cfg.EmailProvider, "error", err)
	}
	var fallbacks []string
	for _, name := range []string{"smtp", "resend", "ses"} {
		if name != cfg.EmailProvider {
			fallbacks = append(fallbacks, name)
		}
	}
	if err := mailers.SetFallback(fallbacks...); err != nil {
		slog.Warn("Failed to set email fallbacks", "error", err)
	}

	if cfg.MailFrom != "" && mailers.IsConfigured() {
		mailCfg := email.Config{
			From:       cfg.MailFrom,
			MaxRetries: cfg.EmailMaxRetries,
			Limiter:    email.NewLimiter(cfg.EmailRatePerSec),
		}
		registry.Register(email.NewSender(mailers, mailCfg))
		registry.Register(email.NewSMSSender(mailers, mailCfg))
	} else {
		slog.Info("Email and SMS channels disabled", "mail_from_set", cfg.MailFrom != "")
	}

	registry.Register(slack.NewSender())
	registry.Register(webhook.NewSender())

	if cfg.TelegramBotToken != "" {
		tg, err := telegram.NewSender(telegram.Config{Token: cfg.TelegramBotToken, Timeout: cfg.DispatchTimeout})
		if err != nil {
			slog.Error("Failed to initialize Telegram channel", "error", err)
		} else {
			registry.Register(tg)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		k, err := kafka.NewSender(cfg.KafkaBrokers)
		if err != nil {
			slog.Error("Failed to initialize Kafka channel", "error", err)
		} else {
			registry.Register(k)
			closers = append(closers, k.Close)
		}
	}

	if cfg.MQTTBroker != "" {
		hostname, _ := os.Hostname()
		m, err := mqtt.NewSender(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: serviceName + "-" + hostname,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		if err != nil {
			slog.Error("Failed to initialize MQTT channel", "error", err, "broker", shared.MaskURL(cfg.MQTTBroker))
		} else {
			registry.Register(m)
			closers = append(closers, m.Close)
		}
	}

	return registry, closers
}
