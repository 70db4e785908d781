package config

import (
	"os"
	"strings"
	"time"

	platformstrings "lifeline/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	PostgresURL   string
	Redis         RedisConfig
	Kafka         KafkaConfig
}

// RedisConfig holds connection settings for the optional Redis instance used
// to throttle repeat donor contact. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the seed brokers and topic for lifecycle events. Empty
// brokers disable publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NotifyThrottleTTL suppresses repeat contact attempts to the same donor for
// the same request within this window. It gates best-effort sends only, never
// ledger state.
var NotifyThrottleTTL = 24 * time.Hour

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("LIFELINE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("LIFELINE_KAFKA_TOPIC")
	if topic == "" {
		topic = "lifeline.request-lifecycle"
	}

	// Broker lists from env tend to carry stray spaces and repeats.
	var brokers []string
	if v := os.Getenv("LIFELINE_KAFKA_BROKERS"); v != "" {
		brokers = platformstrings.DedupeAndTrim(strings.Split(v, ","))
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		PostgresURL:   os.Getenv("LIFELINE_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("LIFELINE_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}
