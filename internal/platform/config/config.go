// Package config builds runtime configuration from the environment so main
// stays lean. Absent optional backends (postgres, redis, kafka, chain) switch
// the service to in-memory or disabled modes rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	BaseURL       string
	JWTSigningKey string
}

// Postgres captures the relational store connection. An empty URL selects the
// in-memory store.
type Postgres struct {
	URL string
}

// Redis captures the queue backend connection. An empty URL selects the
// in-memory queue.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Chain captures the anchoring target. NodeURL "memory" selects the
// in-process ledger backend; empty disables anchoring altogether.
type Chain struct {
	NodeURL         string
	RegistryAddress string
	PrivateKey      string
	ChainID         int64
	ConfirmInterval time.Duration
	ConfirmTimeout  time.Duration
}

// Enabled reports whether any anchoring backend is configured.
func (c Chain) Enabled() bool {
	return c.NodeURL != ""
}

// Memory reports whether the in-process ledger stands in for a node.
func (c Chain) Memory() bool {
	return c.NodeURL == "memory"
}

// Worker captures anchor worker tuning.
type Worker struct {
	Concurrency int
	MaxAttempts int
	BaseBackoff time.Duration
}

// Kafka captures the lifecycle event stream. Empty brokers disable
// publishing.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Config is the full service configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Chain    Chain
	Worker   Worker
	Kafka    Kafka
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envStr("TRACEHUB_ADDR", ":8080"),
			BaseURL:       envStr("TRACEHUB_BASE_URL", "http://localhost:8080"),
			JWTSigningKey: envStr("TRACEHUB_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			URL: os.Getenv("TRACEHUB_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("TRACEHUB_REDIS_URL"),
			PoolSize:     envInt("TRACEHUB_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TRACEHUB_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("TRACEHUB_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("TRACEHUB_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("TRACEHUB_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Chain: Chain{
			NodeURL:         os.Getenv("TRACEHUB_CHAIN_NODE_URL"),
			RegistryAddress: os.Getenv("TRACEHUB_CHAIN_REGISTRY_ADDRESS"),
			PrivateKey:      os.Getenv("TRACEHUB_CHAIN_PRIVATE_KEY"),
			ChainID:         int64(envInt("TRACEHUB_CHAIN_ID", 1)),
			ConfirmInterval: envDuration("TRACEHUB_CHAIN_CONFIRM_INTERVAL", 5*time.Second),
			ConfirmTimeout:  envDuration("TRACEHUB_CHAIN_CONFIRM_TIMEOUT", 60*time.Second),
		},
		Worker: Worker{
			Concurrency: envInt("TRACEHUB_WORKER_CONCURRENCY", 3),
			MaxAttempts: envInt("TRACEHUB_WORKER_MAX_ATTEMPTS", 5),
			BaseBackoff: envDuration("TRACEHUB_WORKER_BASE_BACKOFF", 5*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("TRACEHUB_KAFKA_BROKERS"),
			Topic:   envStr("TRACEHUB_KAFKA_TOPIC", "passport-events"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
