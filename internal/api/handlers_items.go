// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/tripsync/internal/database"
	"github.com/tomtom215/tripsync/internal/models"
	"github.com/tomtom215/tripsync/internal/realtime"
)

// AddGroceryItemRequest appends an item to the trip's grocery list.
type AddGroceryItemRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Quantity string `json:"quantity" validate:"max=64"`
}

// AddPackingItemRequest appends an item to the trip's packing list.
type AddPackingItemRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// ToggleItemRequest flips an item's done state.
type ToggleItemRequest struct {
	Done bool `json:"done"`
}

// AddExpenseRequest records a shared expense.
type AddExpenseRequest struct {
	Description string `json:"description" validate:"required,max=300"`
	AmountCents int64  `json:"amountCents" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3,alpha"`
}

// emitItemUpdate mirrors a list mutation to the trip's live connections,
// matching the shape clients themselves relay over the socket.
func (h *Handler) emitItemUpdate(r *http.Request, tripID int64, list, action, itemName string, item interface{}) {
	claims := h.claims(r)
	h.hub.BroadcastToTrip(tripID, realtime.EventItemUpdated, map[string]interface{}{
		"tripId": tripID,
		"userId": claims.UserID,
		"list":   list,
		"action": action,
		"item":   item,
	})
	message := "Item " + action
	if itemName != "" {
		message = fmt.Sprintf("%s %s", itemName, action)
	}
	h.hub.Notifier().Notify(r.Context(), models.Notification{
		TripID:   tripID,
		UserID:   claims.UserID,
		Type:     "item_updated",
		Title:    fmt.Sprintf("%s list updated", listTitle(list)),
		Message:  message,
		ItemName: itemName,
	})
}

func listTitle(list string) string {
	if list == "grocery" {
		return "Grocery"
	}
	return "Packing"
}

func (h *Handler) AddGroceryItem(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	var req AddGroceryItemRequest
	if apiErr := decodeRequest(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	item, err := h.db.CreateGroceryItem(r.Context(), &models.GroceryItem{
		TripID:   tripID,
		Name:     req.Name,
		Quantity: req.Quantity,
		AddedBy:  h.claims(r).UserID,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add grocery item", err)
		return
	}

	h.emitItemUpdate(r, tripID, "grocery", "added", item.Name, item)
	respondData(w, http.StatusCreated, item)
}

func (h *Handler) ListGroceryItems(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	items, err := h.db.ListGroceryItems(r.Context(), tripID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list grocery items", err)
		return
	}
	respondData(w, http.StatusOK, items)
}

func (h *Handler) ToggleGroceryItem(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	itemID, ok := urlID(r, "itemID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Item ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	var req ToggleItemRequest
	if apiErr := decodeRequest(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.db.SetGroceryItemCompleted(r.Context(), itemID, req.Done); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Grocery item not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update grocery item", err)
		return
	}

	action := "completed"
	if !req.Done {
		action = "unchecked"
	}
	h.emitItemUpdate(r, tripID, "grocery", action, "", map[string]interface{}{"id": itemID, "completed": req.Done})
	respondData(w, http.StatusOK, map[string]interface{}{"id": itemID, "completed": req.Done})
}

func (h *Handler) AddPackingItem(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	var req AddPackingItemRequest
	if apiErr := decodeRequest(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	item, err := h.db.CreatePackingItem(r.Context(), &models.PackingItem{
		TripID:  tripID,
		Name:    req.Name,
		AddedBy: h.claims(r).UserID,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add packing item", err)
		return
	}

	h.emitItemUpdate(r, tripID, "packing", "added", item.Name, item)
	respondData(w, http.StatusCreated, item)
}

func (h *Handler) ListPackingItems(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	items, err := h.db.ListPackingItems(r.Context(), tripID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list packing items", err)
		return
	}
	respondData(w, http.StatusOK, items)
}

func (h *Handler) TogglePackingItem(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	itemID, ok := urlID(r, "itemID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Item ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	var req ToggleItemRequest
	if apiErr := decodeRequest(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.db.SetPackingItemPacked(r.Context(), itemID, req.Done); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Packing item not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update packing item", err)
		return
	}

	action := "packed"
	if !req.Done {
		action = "unpacked"
	}
	h.emitItemUpdate(r, tripID, "packing", action, "", map[string]interface{}{"id": itemID, "packed": req.Done})
	respondData(w, http.StatusOK, map[string]interface{}{"id": itemID, "packed": req.Done})
}

func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	var req AddExpenseRequest
	if apiErr := decodeRequest(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	claims := h.claims(r)
	expense, err := h.db.CreateExpense(r.Context(), &models.Expense{
		TripID:      tripID,
		PaidBy:      claims.UserID,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record expense", err)
		return
	}

	h.hub.BroadcastToTrip(tripID, realtime.EventExpenseAdded, map[string]interface{}{
		"tripId":  tripID,
		"userId":  claims.UserID,
		"expense": expense,
	})
	h.hub.Notifier().Notify(r.Context(), models.Notification{
		TripID:   tripID,
		UserID:   claims.UserID,
		Type:     "expense_added",
		Title:    "New expense",
		Message:  req.Description,
		ItemName: req.Description,
	})
	respondData(w, http.StatusCreated, expense)
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	tripID, ok := urlID(r, "tripID")
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Trip ID must be a positive integer", nil)
		return
	}
	if !h.requireMember(w, r, tripID) {
		return
	}
	expenses, err := h.db.ListExpenses(r.Context(), tripID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list expenses", err)
		return
	}
	respondData(w, http.StatusOK, expenses)
}
