// Copyright 2026 The FleetSync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Tracking      TrackingConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	// Backend is one of "redis", "postgres", "memory".
	Backend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PGHost         string
	PGPort         string
	PGUser         string
	PGPassword     string
	PGDatabase     string
	PGSSLMode      string
	PGMaxOpenConns int
	PGMaxIdleConns int
}

// TrackingConfig holds the intervals of the polling feed, the publish loop
// and the background reconciler.
type TrackingConfig struct {
	PollInterval      time.Duration
	PublishInterval   time.Duration
	ReconcileInterval time.Duration
}

// AuthConfig holds verification settings for externally-issued tokens.
type AuthConfig struct {
	JWTSecret string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Store: StoreConfig{
			Backend:        getEnv("STORE_BACKEND", "redis"),
			RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			RedisDB:        parseInt("REDIS_DB", 0),
			PGHost:         getEnv("DB_HOST", "localhost"),
			PGPort:         getEnv("DB_PORT", "5432"),
			PGUser:         getEnv("DB_USER", "fleetsync"),
			PGPassword:     getEnv("DB_PASSWORD", ""),
			PGDatabase:     getEnv("DB_NAME", "fleetsync"),
			PGSSLMode:      getEnv("DB_SSLMODE", "disable"),
			PGMaxOpenConns: parseInt("DB_MAX_OPEN_CONNS", 25),
			PGMaxIdleConns: parseInt("DB_MAX_IDLE_CONNS", 5),
		},
		Tracking: TrackingConfig{
			PollInterval:      parseDuration("TRACKING_POLL_INTERVAL", "3s"),
			PublishInterval:   parseDuration("TRACKING_PUBLISH_INTERVAL", "15s"),
			ReconcileInterval: parseDuration("TRACKING_RECONCILE_INTERVAL", "1m"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "fleetsync"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "redis", "memory":
	case "postgres":
		if c.Store.PGPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if c.Tracking.PollInterval <= 0 || c.Tracking.PublishInterval <= 0 {
		return fmt.Errorf("tracking intervals must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
