// Copyright (c) 2026 John Earle
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

// Package config loads configuration from environment variables, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the batch extraction job.
type Config struct {
	// Adapter service
	AdapterURL          string
	AdapterTimeout      time.Duration
	AdapterClientID     string
	AdapterClientSecret string
	AdapterTokenURL     string

	// Google Cloud
	ProjectID string
	Bucket    string

	// Processing
	MaxBatchSize int

	// Run lock (optional; empty RedisURL disables it)
	RedisURL   string
	RunLockTTL time.Duration

	LogLevel    slog.Level
	Environment string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	timeoutSecs := envOrDefaultInt("ADAPTER_TIMEOUT_SECONDS", 300)

	cfg := &Config{
		AdapterURL:          strings.TrimRight(os.Getenv("ADAPTER_SERVICE_URL"), "/"),
		AdapterTimeout:      time.Duration(timeoutSecs) * time.Second,
		AdapterClientID:     os.Getenv("ADAPTER_CLIENT_ID"),
		AdapterClientSecret: os.Getenv("ADAPTER_CLIENT_SECRET"),
		AdapterTokenURL:     os.Getenv("ADAPTER_TOKEN_URL"),
		ProjectID:           os.Getenv("GOOGLE_CLOUD_PROJECT"),
		Bucket:              os.Getenv("STORAGE_BUCKET_NAME"),
		MaxBatchSize:        envOrDefaultInt("MAX_BATCH_SIZE", 50),
		RedisURL:            os.Getenv("REDIS_URL"),
		RunLockTTL:          envOrDefaultDuration("RUN_LOCK_TTL", 10*time.Minute),
		LogLevel:            parseLevel(envOrDefault("LOG_LEVEL", "INFO")),
		Environment:         envOrDefault("ENVIRONMENT", "development"),
	}

	if cfg.AdapterURL == "" {
		return nil, fmt.Errorf("ADAPTER_SERVICE_URL is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("STORAGE_BUCKET_NAME is required")
	}
	if cfg.MaxBatchSize <= 0 {
		return nil, fmt.Errorf("MAX_BATCH_SIZE must be positive, got %d", cfg.MaxBatchSize)
	}

	// Client-credentials auth is all-or-nothing.
	if (cfg.AdapterClientID == "") != (cfg.AdapterClientSecret == "") {
		return nil, fmt.Errorf("ADAPTER_CLIENT_ID and ADAPTER_CLIENT_SECRET must be set together")
	}

	return cfg, nil
}

// IsProduction reports whether the job is running in the production
// environment. Affects default credentials resolution only.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// AdapterAuthEnabled reports whether client-credentials auth is configured
// for the adapter endpoint.
func (c *Config) AdapterAuthEnabled() bool {
	return c.AdapterClientID != "" && c.AdapterTokenURL != ""
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
