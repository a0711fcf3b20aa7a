// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

// Package config loads layered application configuration using Koanf v2.
//
// Precedence: environment variables > YAML config file > built-in defaults.
// Environment variables use the INNSIGHT_ prefix with underscore nesting,
// e.g. INNSIGHT_NATS_URL maps to nats.url and INNSIGHT_PIPELINE_MAX_ATTEMPTS
// maps to pipeline.max_attempts.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	NATS      NATSConfig      `koanf:"nats"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Sentiment SentimentConfig `koanf:"sentiment"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs is the request budget per RateLimitWindow per client IP.
	// Zero disables rate limiting.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`

	// MaxWait bounds the ?wait= parameter on review reads.
	MaxWait time.Duration `koanf:"max_wait"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" gives an ephemeral store.
	Path string `koanf:"path"`

	MaxMemory string `koanf:"max_memory"`

	// Threads limits DuckDB worker threads. 0 = use runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// NATSConfig holds broker transport settings.
type NATSConfig struct {
	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process NATS JetStream server.
	// Single-binary deployments set this; multi-instance worker pools
	// point URL at a shared external server instead.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory for the embedded server.
	StoreDir string `koanf:"store_dir"`

	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	// StreamRetention is how long the REVIEWS stream keeps events.
	StreamRetention time.Duration `koanf:"stream_retention"`

	// DurableName is the JetStream durable consumer prefix.
	DurableName string `koanf:"durable_name"`

	// QueueGroup is the queue group shared by competing consumers.
	QueueGroup string `koanf:"queue_group"`

	// Subscribers is the number of concurrent message processors per instance.
	Subscribers int `koanf:"subscribers"`

	AckWait       time.Duration `koanf:"ack_wait"`
	MaxDeliver    int           `koanf:"max_deliver"`
	MaxAckPending int           `koanf:"max_ack_pending"`
}

// PipelineConfig holds retry and dead-letter policy settings shared by the
// analysis workers and the result consumers.
type PipelineConfig struct {
	// MaxAttempts bounds processing attempts per message before the
	// terminal-failure path is taken.
	MaxAttempts int `koanf:"max_attempts"`

	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
	JitterFraction    float64       `koanf:"jitter_fraction"`

	// AnalyzeTimeout bounds a single sentiment inference call.
	AnalyzeTimeout time.Duration `koanf:"analyze_timeout"`

	// ApplyTimeout bounds a single store write in the result consumer.
	ApplyTimeout time.Duration `koanf:"apply_timeout"`
}

// SentimentConfig holds analyzer settings.
type SentimentConfig struct {
	// MaxTextLength truncates review content before analysis, in runes.
	MaxTextLength int `koanf:"max_text_length"`

	// ModelWeight and RatingWeight blend the text score with the
	// rating-derived score. They should sum to 1.0.
	ModelWeight  float64 `koanf:"model_weight"`
	RatingWeight float64 `koanf:"rating_weight"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied.
// These are layered first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			MaxWait:         30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/innsight.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		NATS: NATSConfig{
			URL:             "nats://127.0.0.1:4222",
			EmbeddedServer:  true,
			StoreDir:        "/data/nats/jetstream",
			MaxMemory:       1 << 30,  // 1GB
			MaxStore:        10 << 30, // 10GB
			StreamRetention: 7 * 24 * time.Hour,
			DurableName:     "review-pipeline",
			QueueGroup:      "review-workers",
			Subscribers:     4,
			AckWait:         30 * time.Second,
			MaxDeliver:      5,
			MaxAckPending:   1000,
		},
		Pipeline: PipelineConfig{
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFraction:    0.1,
			AnalyzeTimeout:    10 * time.Second,
			ApplyTimeout:      5 * time.Second,
		},
		Sentiment: SentimentConfig{
			MaxTextLength: 512,
			ModelWeight:   0.6,
			RatingWeight:  0.4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks cross-field constraints that koanf cannot express.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.Pipeline.MaxAttempts <= 0 {
		return fmt.Errorf("pipeline.max_attempts must be positive, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.InitialBackoff <= 0 {
		return fmt.Errorf("pipeline.initial_backoff must be positive")
	}
	if c.Pipeline.BackoffMultiplier < 1.0 {
		return fmt.Errorf("pipeline.backoff_multiplier must be >= 1.0, got %g", c.Pipeline.BackoffMultiplier)
	}
	if c.Pipeline.JitterFraction < 0 || c.Pipeline.JitterFraction > 1.0 {
		return fmt.Errorf("pipeline.jitter_fraction must be in [0, 1], got %g", c.Pipeline.JitterFraction)
	}
	if c.Sentiment.MaxTextLength <= 0 {
		return fmt.Errorf("sentiment.max_text_length must be positive, got %d", c.Sentiment.MaxTextLength)
	}
	if w := c.Sentiment.ModelWeight + c.Sentiment.RatingWeight; w < 0.99 || w > 1.01 {
		return fmt.Errorf("sentiment weights must sum to 1.0, got %g", w)
	}
	return nil
}
