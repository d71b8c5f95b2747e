// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package main is the entry point for the TripSync server.
//
// TripSync is a self-hosted group trip planner with real-time coordination:
// shared chat, grocery and packing lists, and expense tracking, all pushed
// live to connected clients over one WebSocket per client.
//
// Startup order:
//
//  1. Configuration: Koanf v2 layered loading (env > config.yaml > defaults)
//  2. Logging: zerolog, configured from logging.* settings
//  3. Database: embedded DuckDB with schema migration
//  4. Sessions: BadgerDB-backed revocable session store
//  5. Realtime hub: connection registry, liveness sweep, broadcast fan-out
//  6. HTTP server: chi router, REST API plus GET /api/v1/ws
//
// Everything long-running sits under a suture supervisor tree; SIGINT and
// SIGTERM cancel the tree's context for a graceful stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/tripsync/internal/api"
	"github.com/tomtom215/tripsync/internal/auth"
	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/database"
	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/middleware"
	"github.com/tomtom215/tripsync/internal/realtime"
	"github.com/tomtom215/tripsync/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Msg("Starting TripSync")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Database close failed")
		}
	}()

	sessions, err := auth.NewBadgerSessionStore(cfg.Security.SessionStorePath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logging.Warn().Err(err).Msg("Session store close failed")
		}
	}()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}

	hub := realtime.NewHub(cfg.Realtime, db)

	handler := api.NewHandler(db, hub, jwtManager, sessions, cfg)
	router := api.NewRouter(handler, middleware.NewAuthenticator(jwtManager, sessions), cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddDataService(supervisor.NewSessionGCService(sessions, 0))
	tree.AddRealtimeService(supervisor.NewHubService(hub))
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("TripSync listening")
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("TripSync stopped")
	return nil
}
