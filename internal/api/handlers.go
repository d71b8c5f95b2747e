// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tripsync/internal/auth"
	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/database"
	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/middleware"
	"github.com/tomtom215/tripsync/internal/realtime"
)

// Handler carries the dependencies shared by all HTTP handlers.
type Handler struct {
	db       *database.DB
	hub      *realtime.Hub
	jwt      *auth.JWTManager
	sessions auth.SessionStore
	cfg      *config.Config
	started  time.Time
}

func NewHandler(db *database.DB, hub *realtime.Hub, jwt *auth.JWTManager, sessions auth.SessionStore, cfg *config.Config) *Handler {
	return &Handler{
		db:       db,
		hub:      hub,
		jwt:      jwt,
		sessions: sessions,
		cfg:      cfg,
		started:  time.Now(),
	}
}

// Health reports process and database health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.db.Ping(); err != nil {
		logging.Error().Err(err).Msg("Health check database ping failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondData(w, code, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// Live answers orchestrator liveness probes. It succeeds as long as the
// process can serve requests, regardless of backing store health.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{"status": "alive"})
}

// Ready answers readiness probes. It fails while the database is
// unreachable so load balancers stop routing traffic here.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		logging.Error().Err(err).Msg("Readiness check database ping failed")
		respondData(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not_ready"})
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}

// WebSocket upgrades the request and hands the connection to the hub.
// The route sits behind RequireAuth, so the registry learns the user
// before the first frame arrives.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.cfg.Realtime.HandshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	var userID int64
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		userID = claims.UserID
	}
	h.hub.HandleConnection(conn, userID)
}

// checkWebSocketOrigin enforces the configured CORS origins on upgrade
// requests. Requests without an Origin header (non-browser clients) are
// allowed; the bearer token already gates access.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
	return false
}
