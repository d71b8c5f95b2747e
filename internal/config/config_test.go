// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Server.Port != 8997 {
		t.Errorf("default port = %d, want 8997", cfg.Server.Port)
	}
	if cfg.Realtime.SweepInterval != 30*time.Second {
		t.Errorf("default sweep interval = %s, want 30s", cfg.Realtime.SweepInterval)
	}
	if cfg.Realtime.SendBuffer != 256 {
		t.Errorf("default send buffer = %d, want 256", cfg.Realtime.SendBuffer)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default log format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")
	t.Setenv("TRIPSYNC_SERVER_PORT", "9001")
	t.Setenv("TRIPSYNC_REALTIME_SWEEP_INTERVAL", "5s")
	t.Setenv("TRIPSYNC_SECURITY_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.Realtime.SweepInterval != 5*time.Second {
		t.Errorf("sweep interval = %s, want 5s", cfg.Realtime.SweepInterval)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v, want two trimmed entries", cfg.Security.CORSOrigins)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"server:",
		"  port: 8080",
		"realtime:",
		"  send_buffer: 128",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080 from file", cfg.Server.Port)
	}
	if cfg.Realtime.SendBuffer != 128 {
		t.Errorf("send buffer = %d, want 128 from file", cfg.Realtime.SendBuffer)
	}
	// Untouched sections keep defaults.
	if cfg.Database.Path != "/data/tripsync.duckdb" {
		t.Errorf("database path = %q, want default", cfg.Database.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }, "jwt_secret"},
		{
			"missing secret in production",
			func(c *Config) { c.Server.Environment = "production" },
			"jwt_secret is required",
		},
		{"sweep too short", func(c *Config) { c.Realtime.SweepInterval = 100 * time.Millisecond }, "sweep_interval"},
		{"zero send buffer", func(c *Config) { c.Realtime.SendBuffer = 0 }, "send_buffer"},
		{"tiny message size", func(c *Config) { c.Realtime.MaxMessageSize = 10 }, "max_message_size"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TRIPSYNC_SERVER_PORT", "server.port"},
		{"TRIPSYNC_SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"TRIPSYNC_REALTIME_MAX_MESSAGE_SIZE", "realtime.max_message_size"},
		{"TRIPSYNC_LOGGING_LEVEL", "logging.level"},
		{"TRIPSYNC_UNKNOWN_THING", "unknown_thing"},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
