// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package models

import (
	"slices"
	"time"
)

// ChatMessage is a trip chat message with its mutable substate.
//
// ReadBy grows monotonically until the message is deleted. Reactions maps an
// emoji string to the set of user IDs that reacted with it; a user appears at
// most once per emoji. IsDeleted is a soft delete: deleted messages keep
// their row but are excluded from reads.
//
// Version is an optimistic-concurrency stamp: every persisted substate
// mutation must supply the version it read, and the store rejects the write
// if the row has moved on (see database.ErrVersionConflict).
type ChatMessage struct {
	ID          int64               `json:"id"`
	TripID      int64               `json:"tripId"`
	UserID      int64               `json:"userId"`
	Message     string              `json:"message"`
	ReadBy      []int64             `json:"readBy"`
	Reactions   map[string][]int64  `json:"reactions"`
	IsEdited    bool                `json:"isEdited"`
	EditedAt    *time.Time          `json:"editedAt,omitempty"`
	IsDeleted   bool                `json:"isDeleted"`
	IsSystem    bool                `json:"isSystem"`
	IsEncrypted bool                `json:"isEncrypted"`
	SentAt      time.Time           `json:"sentAt"`
	Version     int64               `json:"-"`
}

// MarkRead adds userID to ReadBy. Returns false if it was already present.
func (m *ChatMessage) MarkRead(userID int64) bool {
	if slices.Contains(m.ReadBy, userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// ToggleReaction adds userID under the emoji key, or removes it when toggle
// is set and the user already reacted. Reports whether the set changed.
func (m *ChatMessage) ToggleReaction(emoji string, userID int64, toggle bool) bool {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]int64)
	}

	users := m.Reactions[emoji]
	idx := slices.Index(users, userID)
	if idx >= 0 {
		if !toggle {
			return false
		}
		users = slices.Delete(users, idx, idx+1)
		if len(users) == 0 {
			delete(m.Reactions, emoji)
		} else {
			m.Reactions[emoji] = users
		}
		return true
	}

	m.Reactions[emoji] = append(users, userID)
	return true
}
