// Package config loads runtime configuration for the sandboxd daemon
// from the environment (sandboxc takes command-line flags instead), the
// package the teacher's
// cmd/api/main.go and internal/server/server.go import but never shipped
// in this pack.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	_ = godotenv.Load()
}

type Config struct {
	// Environment distinguishes development from production. It gates
	// the bundle manifest's read-cache policy: cached in production,
	// re-read from disk on every call in development so a bundle
	// rebuilt by a separate sandboxc run while sandboxd is live still
	// propagates.
	Environment string
	Server      ServerConfig
	Db          DbConfig
	Sandbox     SandboxConfig
	RateLimit   RateLimitConfig
	Queue       QueueConfig
	State       StateConfig
	Bundle      BundleConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int
	IdleTimeout  int
}

type DbConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// SandboxConfig configures the Docker-backed VM provisioner.
type SandboxConfig struct {
	Image         string
	MemoryLimitKb int64
	CPUQuota      int64
	PidsLimit     int64
	CallTimeout   time.Duration
}

// RateLimitConfig caps how many sandbox calls run concurrently across the
// process, independent of how many sessions are open.
type RateLimitConfig struct {
	RequestsPerSecond float64
	MaxConcurrent     int
}

type QueueConfig struct {
	Capacity int
	Workers  int
}

// StateConfig selects and configures the install-state backend: "fs" for
// local development, "postgres" for a shared production deployment.
type StateConfig struct {
	Backend string
	FSDir   string
}

// BundleConfig points at the directory sandboxc writes bundle-<hash>.js
// and manifest.json into, and sandboxd reads them back from.
type BundleConfig struct {
	Dir string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 10),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Db: DbConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "sandbox"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "sandbox"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Sandbox: SandboxConfig{
			Image:         getEnv("SANDBOX_IMAGE", "node:20-alpine"),
			MemoryLimitKb: int64(getEnvInt("SANDBOX_MEMORY_LIMIT_KB", 256*1024)),
			CPUQuota:      int64(getEnvInt("SANDBOX_CPU_QUOTA", 100000)),
			PidsLimit:     int64(getEnvInt("SANDBOX_PIDS_LIMIT", 64)),
			CallTimeout:   time.Duration(getEnvInt("SANDBOX_CALL_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 50),
			MaxConcurrent:     getEnvInt("RATE_LIMIT_MAX_CONCURRENT", 20),
		},
		Queue: QueueConfig{
			Capacity: getEnvInt("QUEUE_CAPACITY", 100),
			Workers:  getEnvInt("QUEUE_WORKERS", 5),
		},
		State: StateConfig{
			Backend: getEnv("STATE_BACKEND", "fs"),
			FSDir:   getEnv("STATE_FS_DIR", ".sandbox/state"),
		},
		Bundle: BundleConfig{
			Dir: getEnv("BUNDLE_DIR", ".sandbox/build"),
		},
	}

	if cfg.State.Backend != "fs" && cfg.State.Backend != "postgres" {
		return nil, fmt.Errorf("STATE_BACKEND %q is not supported (use fs or postgres)", cfg.State.Backend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
