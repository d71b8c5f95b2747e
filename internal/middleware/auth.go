// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package middleware

import (
	"context"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/auth"
	"github.com/tomtom215/tripsync/internal/models"
)

const ClaimsKey contextKey = "auth_claims"

// Authenticator validates bearer tokens on protected routes. When a
// session store is supplied, tokens whose session has been revoked are
// rejected even before their expiry.
type Authenticator struct {
	jwt      *auth.JWTManager
	sessions auth.SessionStore
}

func NewAuthenticator(jwt *auth.JWTManager, sessions auth.SessionStore) *Authenticator {
	return &Authenticator{jwt: jwt, sessions: sessions}
}

// RequireAuth rejects requests without a valid bearer token. The token
// may arrive in the Authorization header or, for WebSocket upgrades
// where browsers cannot set headers, in the token query parameter.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			unauthorized(w, "Missing authentication token")
			return
		}
		claims, err := a.jwt.ValidateToken(token)
		if err != nil {
			unauthorized(w, "Invalid or expired token")
			return
		}
		if a.sessions != nil && claims.ID != "" {
			if _, err := a.sessions.Get(r.Context(), claims.ID); err != nil {
				unauthorized(w, "Session revoked or expired")
				return
			}
		}
		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the validated claims set by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    "UNAUTHORIZED",
			Message: message,
		},
	})
}
