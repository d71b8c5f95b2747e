// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/tripsync/internal/auth"
	"github.com/tomtom215/tripsync/internal/database"
	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/middleware"
	"github.com/tomtom215/tripsync/internal/models"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64,alphanum"`
	DisplayName string `json:"displayName" validate:"max=128"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
}

// Register creates a user account. Usernames are unique; a duplicate
// gets 409 rather than leaking the database error.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if apiErr := decodeRequest(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if _, err := h.db.GetUserByUsername(r.Context(), req.Username); err == nil {
		respondError(w, http.StatusConflict, "USERNAME_TAKEN", "Username is already in use", nil)
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create account", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create account", err)
		return
	}

	user, err := h.db.CreateUser(r.Context(), &models.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create account", err)
		return
	}

	logging.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	respondData(w, http.StatusCreated, user)
}

// Login verifies credentials, opens a session and returns a bearer
// token. Credential failures all map to the same 401 so the response
// does not reveal whether the username exists.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if apiErr := decodeRequest(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password are required", nil)
		return
	}

	user, err := h.db.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		logging.Warn().Str("username", req.Username).Msg("Failed login attempt")
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
		return
	}

	session := auth.NewSession(user.ID, user.Username, h.cfg.Security.SessionTimeout)
	if err := h.sessions.Create(r.Context(), session); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session", err)
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Username, session.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", err)
		return
	}

	logging.Info().Int64("user_id", user.ID).Msg("User logged in")
	respondData(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout revokes the caller's session. The JWT itself stays valid until
// expiry, but the middleware's session check rejects it from now on.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.ID == "" {
		respondError(w, http.StatusBadRequest, "NO_SESSION", "No session to log out", nil)
		return
	}
	if err := h.sessions.Delete(r.Context(), claims.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to log out", err)
		return
	}
	logging.Info().Int64("user_id", claims.UserID).Msg("User logged out")
	respondData(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
