// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package config provides layered configuration loading for TripSync using
// Koanf v2. Precedence: environment variables > YAML config file > built-in
// defaults.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration for the TripSync server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// DatabaseConfig holds embedded DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	JWTSecret        string        `koanf:"jwt_secret"`
	SessionTimeout   time.Duration `koanf:"session_timeout"`
	AdminUsername    string        `koanf:"admin_username"`
	AdminPassword    string        `koanf:"admin_password"`
	RateLimitReqs    int           `koanf:"rate_limit_reqs"`
	RateLimitWindow  time.Duration `koanf:"rate_limit_window"`
	CORSOrigins      []string      `koanf:"cors_origins"`
	SessionStorePath string        `koanf:"session_store_path"`
}

// RealtimeConfig holds WebSocket hub settings.
//
// SweepInterval drives the liveness monitor: a connection must answer one
// transport ping per sweep or it is evicted on the following sweep.
type RealtimeConfig struct {
	SweepInterval    time.Duration `koanf:"sweep_interval"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteWait        time.Duration `koanf:"write_wait"`
	SendBuffer       int           `koanf:"send_buffer"`
	MaxMessageSize   int64         `koanf:"max_message_size"`
	InboundRate      float64       `koanf:"inbound_rate"`  // frames/sec per connection
	InboundBurst     int           `koanf:"inbound_burst"` // burst size per connection
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 1-65535", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Security.JWTSecret == "" && c.Server.Environment == "production" {
		return errors.New("security.jwt_secret is required in production")
	}
	if len(c.Security.JWTSecret) > 0 && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 bytes, got %d", len(c.Security.JWTSecret))
	}
	if c.Realtime.SweepInterval < time.Second {
		return fmt.Errorf("realtime.sweep_interval %s too short (minimum 1s)", c.Realtime.SweepInterval)
	}
	if c.Realtime.SendBuffer < 1 {
		return fmt.Errorf("realtime.send_buffer must be positive, got %d", c.Realtime.SendBuffer)
	}
	if c.Realtime.MaxMessageSize < 1024 {
		return fmt.Errorf("realtime.max_message_size %d too small (minimum 1024)", c.Realtime.MaxMessageSize)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}
