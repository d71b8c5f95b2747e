// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package models

import "time"

// Trip is a planned group trip. Members join via the invite code.
type Trip struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Destination string     `json:"destination"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	InviteCode  string     `json:"inviteCode"`
	OwnerID     int64      `json:"ownerId"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// TripMember links a user to a trip.
type TripMember struct {
	TripID   int64     `json:"tripId"`
	UserID   int64     `json:"userId"`
	Role     string    `json:"role"` // "owner" or "member"
	JoinedAt time.Time `json:"joinedAt"`
}

// User is a registered account. PasswordHash never serializes.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Activity is a durable audit-log entry mirrored from hub notifications and
// REST mutations.
type Activity struct {
	ID        int64     `json:"id"`
	TripID    int64     `json:"tripId"`
	UserID    int64     `json:"userId"`
	Type      string    `json:"type"`
	Data      string    `json:"data,omitempty"` // JSON blob, shape depends on Type
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is the ephemeral structured broadcast record fanned out to a
// trip's live connections. It is not stored directly; a corresponding
// Activity row provides durability.
type Notification struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	TripID    int64     `json:"tripId"`
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	ItemName  string    `json:"itemName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GroceryItem is a shared grocery-list entry.
type GroceryItem struct {
	ID        int64     `json:"id"`
	TripID    int64     `json:"tripId"`
	Name      string    `json:"name"`
	Quantity  string    `json:"quantity,omitempty"`
	Completed bool      `json:"completed"`
	AddedBy   int64     `json:"addedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// PackingItem is a shared packing-list entry.
type PackingItem struct {
	ID        int64     `json:"id"`
	TripID    int64     `json:"tripId"`
	Name      string    `json:"name"`
	Packed    bool      `json:"packed"`
	AddedBy   int64     `json:"addedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expense is a shared expense split across trip members.
type Expense struct {
	ID          int64     `json:"id"`
	TripID      int64     `json:"tripId"`
	PaidBy      int64     `json:"paidBy"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"createdAt"`
}
