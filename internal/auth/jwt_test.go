// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/tripsync/internal/config"
)

func testSecurityConfig(timeout time.Duration) *config.SecurityConfig {
	return &config.SecurityConfig{
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		SessionTimeout: timeout,
	}
}

func TestJWTManagerRoundTrip(t *testing.T) {
	m, err := NewJWTManager(testSecurityConfig(time.Hour))
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}

	token, err := m.GenerateToken(42, "alice", "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestJWTManagerRejectsEmptySecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestJWTManagerRejectsExpiredToken(t *testing.T) {
	m, err := NewJWTManager(testSecurityConfig(-time.Minute))
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}
	token, err := m.GenerateToken(1, "bob", "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
}

func TestJWTManagerRejectsForeignSignature(t *testing.T) {
	m1, _ := NewJWTManager(testSecurityConfig(time.Hour))
	m2, _ := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "ffffffffffffffffffffffffffffffff",
		SessionTimeout: time.Hour,
	})

	token, err := m1.GenerateToken(1, "alice", "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m2.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestJWTManagerRejectsGarbage(t *testing.T) {
	m, _ := NewJWTManager(testSecurityConfig(time.Hour))
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.ValidateToken(token); err == nil {
			t.Fatalf("ValidateToken(%q) succeeded", token)
		}
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "wrong password") {
		t.Fatal("wrong password accepted")
	}
}
