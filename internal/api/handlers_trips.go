// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/tripsync/internal/auth"
	"github.com/tomtom215/tripsync/internal/database"
	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/middleware"
	"github.com/tomtom215/tripsync/internal/models"
)

// CreateTripRequest creates a trip owned by the caller.
type CreateTripRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Destination string     `json:"destination" validate:"max=200"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// JoinTripRequest joins a trip by invite code.
type JoinTripRequest struct {
	InviteCode string `json:"inviteCode" validate:"required,len=8"`
}

// claims pulls the authenticated user off the request, which RequireAuth
// guarantees is present on protected routes.
func (h *Handler) claims(r *http.Request) *auth.Claims {
	c, _ := middleware.ClaimsFromContext(r.Context())
	return c
}

// requireMember answers 403 and returns false when the caller is not a
// member of the trip.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request, tripID int64) bool {
	claims := h.claims(r)
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return false
	}
	member, err := h.db.IsTripMember(r.Context(), tripID, claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check trip membership", err)
		return false
	}
	if !member {
		respondError(w, http.StatusForbidden, "NOT_A_MEMBER", "You are not a member of this trip", nil)
		return false
	}
	return true
}

func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req CreateTripRequest
	if apiErr := decodeRequest(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "End date is before start date", nil)
		return
	}

	claims := h.claims(r)
	trip, err := h.db.CreateTrip(r.Context(), &models.Trip{
		Name:        req.Name,
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		OwnerID:     claims.UserID,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create trip", err)
		return
	}

	logging.Info().Int64("trip_id", trip.ID).Int64("owner_id", claims.UserID).Msg("Trip created")
	respondData(w, http.StatusCreated, trip)
}

func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	claims := h.claims(r)
	trips, err := h.db.ListTripsForUser(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list trips", err)
		return
	}
	respondData(w, http.StatusOK, trips)
}

func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	trip, err := h.db.GetTrip(r.Context(), tripID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Trip not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load trip", err)
		return
	}
	respondData(w, http.StatusOK, trip)
}

// JoinTrip enrolls the caller via invite code and announces the new
// member to the trip's live connections.
func (h *Handler) JoinTrip(w http.ResponseWriter, r *http.Request) {
	var req JoinTripRequest
	if apiErr := decodeRequest(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	trip, err := h.db.GetTripByInviteCode(r.Context(), strings.ToUpper(req.InviteCode))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "INVALID_INVITE", "No trip matches that invite code", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to look up invite", err)
		return
	}

	claims := h.claims(r)
	already, err := h.db.IsTripMember(r.Context(), trip.ID, claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to join trip", err)
		return
	}
	if already {
		respondData(w, http.StatusOK, trip)
		return
	}

	if err := h.db.AddTripMember(r.Context(), trip.ID, claims.UserID, "member"); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to join trip", err)
		return
	}

	h.hub.Notifier().MemberJoined(r.Context(), trip.ID, claims.UserID, "")
	logging.Info().Int64("trip_id", trip.ID).Int64("user_id", claims.UserID).Msg("Member joined trip")
	respondData(w, http.StatusOK, trip)
}

func (h *Handler) ListTripMembers(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	members, err := h.db.ListTripMembers(r.Context(), tripID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list members", err)
		return
	}
	respondData(w, http.StatusOK, members)
}

func (h *Handler) ListTripActivities(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	activities, err := h.db.ListTripActivities(r.Context(), tripID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list activities", err)
		return
	}
	respondData(w, http.StatusOK, activities)
}
