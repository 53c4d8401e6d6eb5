// Package config provides configuration parsing and validation for the relay.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"device-relay/internal/shared"
)

// Channel kinds as registered in the sender registry.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelSlack    = "slack"
	ChannelWebhook  = "webhook"
	ChannelTelegram = "telegram"
	ChannelKafka    = "kafka"
	ChannelMQTT     = "mqtt"
)

// Config holds all configuration parameters for the relay.
type Config struct {
	HTTPPort      string
	WebhookSecret string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	HistoryKey      string
	HistoryCapacity int

	DispatchTimeout time.Duration
	PostgresDSN     string

	// Email and SMS-over-email
	MailFrom        string
	MailTo          []string
	SMSTo           []string
	EmailProvider   string
	EmailRatePerSec float64
	EmailMaxRetries int
	SMTPHost        string
	SMTPPort        string
	SMTPUser        string
	SMTPPassword    string
	ResendAPIKey    string
	AWSRegion       string

	SlackWebhookURLs []string
	WebhookURLs      []string
	TelegramBotToken string
	TelegramChatIDs  []string
	KafkaBrokers     []string
	KafkaTopics      []string
	MQTTBroker       string
	MQTTUsername     string
	MQTTPassword     string
	MQTTTopics       []string

	LogLevel              string
	LogFormat             string
	MetricsReportInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		HTTPPort:      shared.GetEnvOrDefault("HTTP_PORT", "8080"),
		WebhookSecret: shared.GetEnvOrDefault("WEBHOOK_SECRET", ""),
		RedisAddr:     shared.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: shared.GetEnvOrDefault("REDIS_PASSWORD", ""),
		HistoryKey:    shared.GetEnvOrDefault("HISTORY_KEY", "events"),
		PostgresDSN:   shared.GetEnvOrDefault("POSTGRES_DSN", ""),

		MailFrom:      shared.GetEnvOrDefault("MAIL_FROM", ""),
		MailTo:        shared.SplitList(shared.GetEnvOrDefault("MAIL_TO", "")),
		SMSTo:         shared.SplitList(shared.GetEnvOrDefault("SMS_TO", "")),
		EmailProvider: shared.GetEnvOrDefault("EMAIL_PROVIDER", "smtp"),
		SMTPHost:      shared.GetEnvOrDefault("SMTP_HOST", "localhost"),
		SMTPPort:      shared.GetEnvOrDefault("SMTP_PORT", "1025"),
		SMTPUser:      shared.GetEnvOrDefault("SMTP_USER", ""),
		SMTPPassword:  shared.GetEnvOrDefault("SMTP_PASS", ""),
		ResendAPIKey:  shared.GetEnvOrDefault("RESEND_API_KEY", ""),
		AWSRegion:     shared.GetEnvOrDefault("AWS_REGION", "us-east-1"),

		SlackWebhookURLs: shared.SplitList(shared.GetEnvOrDefault("SLACK_WEBHOOK_URLS", "")),
		WebhookURLs:      shared.SplitList(shared.GetEnvOrDefault("WEBHOOK_URLS", "")),
		TelegramBotToken: shared.GetEnvOrDefault("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatIDs:  shared.SplitList(shared.GetEnvOrDefault("TELEGRAM_CHAT_IDS", "")),
		KafkaBrokers:     shared.SplitList(shared.GetEnvOrDefault("KAFKA_BROKERS", "")),
		KafkaTopics:      shared.SplitList(shared.GetEnvOrDefault("KAFKA_TOPICS", "")),
		MQTTBroker:       shared.GetEnvOrDefault("MQTT_BROKER", ""),
		MQTTUsername:     shared.GetEnvOrDefault("MQTT_USERNAME", ""),
		MQTTPassword:     shared.GetEnvOrDefault("MQTT_PASSWORD", ""),
		MQTTTopics:       shared.SplitList(shared.GetEnvOrDefault("MQTT_TOPICS", "")),

		LogLevel:  shared.GetEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: shared.GetEnvOrDefault("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.HistoryCapacity, err = envInt("HISTORY_CAPACITY", 50); err != nil {
		return nil, err
	}
	if cfg.EmailMaxRetries, err = envInt("EMAIL_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.EmailRatePerSec, err = envFloat("EMAIL_RATE_PER_SEC", 5); err != nil {
		return nil, err
	}
	if cfg.DispatchTimeout, err = envDuration("DISPATCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.MetricsReportInterval, err = envDuration("METRICS_REPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RegisterFlags exposes the most commonly overridden settings as flags,
// using the already loaded values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.HTTPPort, "http-port", c.HTTPPort, "HTTP server port")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address for the event history")
	fs.StringVar(&c.HistoryKey, "history-key", c.HistoryKey, "Redis list key holding recent events")
	fs.IntVar(&c.HistoryCapacity, "history-capacity", c.HistoryCapacity, "Number of recent events retained")
	fs.DurationVar(&c.DispatchTimeout, "dispatch-timeout", c.DispatchTimeout, "Timeout for one channel delivery")
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "PostgreSQL connection string for the endpoints registry (optional)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format (json, console)")
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("webhook-secret cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.HistoryKey == "" {
		return fmt.Errorf("history-key cannot be empty")
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("history-capacity must be positive, got %d", c.HistoryCapacity)
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("dispatch-timeout must be positive, got %s", c.DispatchTimeout)
	}
	switch c.EmailProvider {
	case "smtp", "resend", "ses":
	default:
		return fmt.Errorf("email-provider must be one of smtp, resend, ses; got %q", c.EmailProvider)
	}
	if c.EmailRatePerSec <= 0 {
		return fmt.Errorf("email-rate-per-sec must be positive, got %v", c.EmailRatePerSec)
	}
	if c.EmailMaxRetries < 0 {
		return fmt.Errorf("email-max-retries cannot be negative, got %d", c.EmailMaxRetries)
	}
	if (len(c.MailTo) > 0 || len(c.SMSTo) > 0) && c.MailFrom == "" {
		return fmt.Errorf("mail-from is required when mail or sms recipients are set")
	}
	if len(c.TelegramChatIDs) > 0 && c.TelegramBotToken == "" {
		return fmt.Errorf("telegram-bot-token is required when telegram chat ids are set")
	}
	if len(c.KafkaTopics) > 0 && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("kafka-brokers is required when kafka topics are set")
	}
	if len(c.MQTTTopics) > 0 && c.MQTTBroker == "" {
		return fmt.Errorf("mqtt-broker is required when mqtt topics are set")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log-format must be json or console; got %q", c.LogFormat)
	}
	return nil
}

// Destinations returns the statically configured destinations per channel.
// Channels without destinations are left out.
func (c *Config) Destinations() map[string][]string {
	all := map[string][]string{
		ChannelEmail:    c.MailTo,
		ChannelSMS:      c.SMSTo,
		ChannelSlack:    c.SlackWebhookURLs,
		ChannelWebhook:  c.WebhookURLs,
		ChannelTelegram: c.TelegramChatIDs,
		ChannelKafka:    c.KafkaTopics,
		ChannelMQTT:     c.MQTTTopics,
	}
	out := make(map[string][]string, len(all))
	for channel, dests := range all {
		if len(dests) > 0 {
			out[channel] = dests
		}
	}
	return out
}

func envInt(key string, def int) (int, error) {
	raw := shared.GetEnvOrDefault(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := shared.GetEnvOrDefault(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := shared.GetEnvOrDefault(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
