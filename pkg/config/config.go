// Copyright 2025 The Compact Protocol
//
// Package config loads allocator configuration from environment
// variables (connection strings, secrets, listen addresses) and from a
// YAML document (per-chain finalization thresholds), in the teacher's
// Load()/Validate() split.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the allocation core.
type Config struct {
	// Database Configuration
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	// Indexer Configuration
	IndexerURL string

	// Signer Configuration
	SignerPrivateKeyHex string

	// Server Configuration
	ListenAddr  string
	MetricsAddr string

	// Nonce generation
	NonceRetryLimit int

	// Per-chain finalization thresholds (seconds), loaded from YAML
	FinalizationThresholdsPath string

	LogLevel string
}

// Load reads configuration from environment variables.
//
// SECURITY: Required variables have no defaults and must be explicitly
// set. Call Validate() after Load() before starting the service.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),

		IndexerURL: getEnv("INDEXER_URL", ""),

		SignerPrivateKeyHex: getEnv("ALLOCATOR_SIGNER_KEY", ""),

		ListenAddr:  getEnv("LISTEN_ADDR", "0.0.0.0:8080"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),

		NonceRetryLimit: getEnvInt("NONCE_RETRY_LIMIT", 3),

		FinalizationThresholdsPath: getEnv("FINALIZATION_THRESHOLDS_PATH", "./config/finalization_thresholds.yaml"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and secure.
// This must be called after Load() before starting the service.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	} else if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		errs = append(errs, "DATABASE_URL must use sslmode=require for production security")
	}

	if c.IndexerURL == "" {
		errs = append(errs, "INDEXER_URL is required but not set")
	}

	if c.SignerPrivateKeyHex == "" {
		errs = append(errs, "ALLOCATOR_SIGNER_KEY is required but not set")
	}

	if c.NonceRetryLimit <= 0 {
		errs = append(errs, "NONCE_RETRY_LIMIT must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// DatabaseMaxIdleTimeDuration returns DatabaseMaxIdleTime as a Duration.
func (c *Config) DatabaseMaxIdleTimeDuration() time.Duration {
	return time.Duration(c.DatabaseMaxIdleTime) * time.Second
}

// DatabaseMaxLifetimeDuration returns DatabaseMaxLifetime as a Duration.
func (c *Config) DatabaseMaxLifetimeDuration() time.Duration {
	return time.Duration(c.DatabaseMaxLifetime) * time.Second
}

// Helper functions for environment variable parsing, same shape as the
// teacher's pkg/config.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
