// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches *http.Server's lifecycle methods so the wrapper can be
// tested without opening real sockets.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts http.Server's blocking ListenAndServe to suture's
// context-aware Serve: the server runs in a goroutine and a canceled
// context triggers graceful Shutdown with a fresh timeout context.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an HTTP server as a supervised service.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		// The original context is already canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String identifies the service in suture's event log.
func (s *HTTPService) String() string { return "http-server" }

// ContextRunner matches the hub's RunWithContext method without importing
// the realtime package.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// HubService wraps the realtime hub as a supervised service. The hub's run
// loop already follows the suture pattern, so this only adds a name.
type HubService struct {
	hub ContextRunner
}

// NewHubService wraps a hub as a supervised service.
func NewHubService(hub ContextRunner) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String identifies the service in suture's event log.
func (s *HubService) String() string { return "realtime-hub" }

// GCRunner matches the session store's value-log garbage collection loop.
type GCRunner interface {
	RunGC(ctx context.Context, interval time.Duration) error
}

// SessionGCService periodically reclaims space in the Badger session store.
type SessionGCService struct {
	store    GCRunner
	interval time.Duration
}

// NewSessionGCService wraps the session store's GC loop as a supervised
// service.
func NewSessionGCService(store GCRunner, interval time.Duration) *SessionGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionGCService{store: store, interval: interval}
}

// Serve implements suture.Service. RunGC blocks until ctx is canceled.
func (s *SessionGCService) Serve(ctx context.Context) error {
	return s.store.RunGC(ctx, s.interval)
}

// String identifies the service in suture's event log.
func (s *SessionGCService) String() string { return "session-gc" }
