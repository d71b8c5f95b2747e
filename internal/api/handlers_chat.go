// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/tripsync/internal/models"
)

// ListTripMessages returns chat history newest-first with cursor
// pagination: pass before=<messageID> to page backwards.
func (h *Handler) ListTripMessages(w http.ResponseWriter, r *http.Request) {
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
	beforeID := queryInt64(r, "before", 0)

	messages, err := h.db.ListTripMessages(r.Context(), tripID, beforeID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load messages", err)
		return
	}

	pagination := models.PaginationInfo{Limit: limit}
	if len(messages) == limit {
		cursor := strconv.FormatInt(messages[len(messages)-1].ID, 10)
		pagination.NextCursor = &cursor
		pagination.HasMore = true
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"messages":   messages,
		"pagination": pagination,
	})
}
