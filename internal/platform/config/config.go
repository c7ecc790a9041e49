package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// AdminToken protects the mutating operator endpoints. Empty leaves them
	// open, which is only appropriate for local development.
	AdminToken string

	// Explain configures the optional external explanation/decision service.
	Explain Explain

	// AuditStore selects the audit record backend: "memory" (default),
	// "redis" or "postgres".
	AuditStore  string
	RedisURL    string
	PostgresDSN string

	// Kafka configures the optional audit record sink. Empty brokers disable it.
	Kafka Kafka
}

// Explain holds the settings for the external text-generation service. The
// service is optional: when Endpoint, APIKey or Model is empty the local
// deterministic path is used exclusively.
type Explain struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Enabled reports whether the external service is fully configured.
func (e Explain) Enabled() bool {
	return e.Endpoint != "" && e.APIKey != "" && e.Model != ""
}

// Kafka holds broker settings for the audit sink.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SENTINEL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	explainTimeout := 15 * time.Second
	if raw := os.Getenv("SENTINEL_EXPLAIN_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			explainTimeout = d
		}
	}

	auditStore := os.Getenv("SENTINEL_AUDIT_STORE")
	if auditStore == "" {
		auditStore = "memory"
	}

	var brokers []string
	if raw := os.Getenv("SENTINEL_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("SENTINEL_KAFKA_TOPIC")
	if topic == "" {
		topic = "sentinel.audit.records"
	}

	return Server{
		Addr:       addr,
		AdminToken: os.Getenv("SENTINEL_ADMIN_TOKEN"),
		Explain: Explain{
			Endpoint: os.Getenv("SENTINEL_EXPLAIN_ENDPOINT"),
			APIKey:   os.Getenv("SENTINEL_EXPLAIN_API_KEY"),
			Model:    os.Getenv("SENTINEL_EXPLAIN_MODEL"),
			Timeout:  explainTimeout,
		},
		AuditStore:  auditStore,
		RedisURL:    os.Getenv("REDIS_URL"),
		PostgresDSN: os.Getenv("DATABASE_URL"),
		Kafka: Kafka{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}
