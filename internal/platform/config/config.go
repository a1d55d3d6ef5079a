package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "txgate/pkg/platform/strings"
)

// Config captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean; zero values mean the dependency
// is not configured and the in-memory fallback is used.
type Config struct {
	Addr          string
	JWTSigningKey string

	// PostgresDSN enables the durable queue/audit/config stores. Empty means
	// in-memory stores (development and tests).
	PostgresDSN string

	Redis RedisConfig
	Kafka KafkaConfig
	ML    MLConfig

	// BlacklistedVendors seeds the rule layer's vendor blacklist.
	BlacklistedVendors []string

	// ScorerTimeout bounds the risk layer fan-out join.
	ScorerTimeout time.Duration
}

// MLConfig points at the external anomaly inference service. An empty base
// URL disables the statistical layer.
type MLConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RedisConfig holds connection settings for the velocity/profile store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the decision/transition event publisher.
// Empty brokers disable publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("TXGATE_ADDR", ":8080"),
		JWTSigningKey: envOr("TXGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("TXGATE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("TXGATE_REDIS_URL"),
			PoolSize:     envInt("TXGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TXGATE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: envOr("TXGATE_KAFKA_TOPIC", "txgate.review-events"),
		},
		ML: MLConfig{
			BaseURL: os.Getenv("TXGATE_ML_URL"),
			Timeout: envDuration("TXGATE_ML_TIMEOUT", 2*time.Second),
		},
		ScorerTimeout: envDuration("TXGATE_SCORER_TIMEOUT", 2*time.Second),
	}

	if raw := os.Getenv("TXGATE_KAFKA_BROKERS"); raw != "" {
		cfg.Kafka.Brokers = pkgstrings.DedupeAndTrim(strings.Split(raw, ","))
	}
	if raw := os.Getenv("TXGATE_BLACKLISTED_VENDORS"); raw != "" {
		cfg.BlacklistedVendors = pkgstrings.DedupeAndTrimLower(strings.Split(raw, ","))
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
