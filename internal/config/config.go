package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	URL         string
	MaxOpenConn int
	ConnMaxIdle time.Duration
}

// KafkaConfig holds consumer/producer settings for the dispatch-request
// and status-event topics.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	RequestTopic  string
	EventTopic    string
}

// RateLimitConfig selects the rate-limit store backend. Backend is
// "memory" for single-instance deployments or "redis" when limiter
// state must be shared across instances.
type RateLimitConfig struct {
	Backend   string
	RedisAddr string
}

// RetryConfig bounds the background retry worker.
type RetryConfig struct {
	Interval  time.Duration
	BatchSize int
	MaxAge    time.Duration
	Workers   int
}

// TransportConfig carries provider credentials for the email and SMS
// adapters. Empty credentials leave the corresponding adapter in
// dry-run mode.
type TransportConfig struct {
	ResendAPIKey     string
	EmailFrom        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	SMSBusinessName  string
	SMSBrandedDomain string
	SendTimeout      time.Duration
}

// Config is the full notifier configuration, loaded from environment.
type Config struct {
	Port         string
	OTLPEndpoint string
	DB           DBConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	Retry        RetryConfig
	Transport    TransportConfig
}

// LoadConfig loads configuration from environment variables, applying
// defaults where a value is optional.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:         envOr("NOTIF_PORT", "8083"),
		OTLPEndpoint: os.Getenv("OTEL_COLLECTOR_ENDPOINT"),
		DB: DBConfig{
			URL:         os.Getenv("NOTIF_DB_URL"),
			MaxOpenConn: envInt("NOTIF_DB_MAX_OPEN", 10),
			ConnMaxIdle: envDuration("NOTIF_DB_CONN_IDLE", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			ConsumerGroup: envOr("KAFKA_CONSUMER_GROUP", "notifier"),
			RequestTopic:  envOr("KAFKA_REQUEST_TOPIC", "notification.requests"),
			EventTopic:    envOr("KAFKA_EVENT_TOPIC", "notification.events"),
		},
		RateLimit: RateLimitConfig{
			Backend:   envOr("RATE_LIMIT_BACKEND", "memory"),
			RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		},
		Retry: RetryConfig{
			Interval:  envDuration("RETRY_INTERVAL", 5*time.Minute),
			BatchSize: envInt("RETRY_BATCH_SIZE", 100),
			MaxAge:    envDuration("RETRY_MAX_AGE", 72*time.Hour),
			Workers:   envInt("RETRY_WORKERS", 4),
		},
		Transport: TransportConfig{
			ResendAPIKey:     os.Getenv("RESEND_API_KEY"),
			EmailFrom:        envOr("EMAIL_FROM", "notifications@shipospro.com"),
			TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
			SMSBusinessName:  envOr("SMS_BUSINESS_NAME", "ShipOS Pro"),
			SMSBrandedDomain: envOr("SMS_BRANDED_LINK_DOMAIN", "shipospro.com"),
			SendTimeout:      envDuration("NOTIF_SEND_TIMEOUT", 10*time.Second),
		},
	}

	if cfg.DB.URL == "" {
		return nil, fmt.Errorf("NOTIF_DB_URL is required")
	}
	if cfg.RateLimit.Backend != "memory" && cfg.RateLimit.Backend != "redis" {
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
