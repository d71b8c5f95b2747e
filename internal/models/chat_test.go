// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package models

import (
	"slices"
	"testing"
)

func TestChatMessage_MarkRead_Idempotent(t *testing.T) {
	msg := &ChatMessage{ReadBy: []int64{1}}

	if !msg.MarkRead(2) {
		t.Error("first MarkRead should report a change")
	}
	if msg.MarkRead(2) {
		t.Error("second MarkRead for same user should be a no-op")
	}
	if !slices.Equal(msg.ReadBy, []int64{1, 2}) {
		t.Errorf("ReadBy = %v, want [1 2]", msg.ReadBy)
	}
}

func TestChatMessage_MarkRead_NeverShrinks(t *testing.T) {
	msg := &ChatMessage{}
	for _, id := range []int64{5, 3, 5, 7, 3} {
		msg.MarkRead(id)
	}
	if !slices.Equal(msg.ReadBy, []int64{5, 3, 7}) {
		t.Errorf("ReadBy = %v, want [5 3 7]", msg.ReadBy)
	}
}

func TestChatMessage_ToggleReaction_RoundTrip(t *testing.T) {
	msg := &ChatMessage{}

	if !msg.ToggleReaction("👍", 1, true) {
		t.Error("adding a reaction should report a change")
	}
	if !slices.Equal(msg.Reactions["👍"], []int64{1}) {
		t.Errorf("reactions = %v, want [1]", msg.Reactions["👍"])
	}

	if !msg.ToggleReaction("👍", 1, true) {
		t.Error("toggling off should report a change")
	}
	if _, ok := msg.Reactions["👍"]; ok {
		t.Error("empty reaction set should be removed from the map")
	}
}

func TestChatMessage_ToggleReaction_NoToggleIsAddOnly(t *testing.T) {
	msg := &ChatMessage{}

	msg.ToggleReaction("🎉", 1, false)
	if msg.ToggleReaction("🎉", 1, false) {
		t.Error("repeat add without toggle should be a no-op")
	}
	if !slices.Equal(msg.Reactions["🎉"], []int64{1}) {
		t.Errorf("reactions = %v, want [1]", msg.Reactions["🎉"])
	}
}

func TestChatMessage_ToggleReaction_UserAtMostOncePerEmoji(t *testing.T) {
	msg := &ChatMessage{}
	msg.ToggleReaction("❤️", 1, true)
	msg.ToggleReaction("❤️", 2, true)
	msg.ToggleReaction("🔥", 1, true)

	if got := len(msg.Reactions["❤️"]); got != 2 {
		t.Errorf("expected 2 users under ❤️, got %d", got)
	}
	if got := len(msg.Reactions["🔥"]); got != 1 {
		t.Errorf("expected 1 user under 🔥, got %d", got)
	}
}
