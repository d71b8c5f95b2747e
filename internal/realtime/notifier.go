// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/models"
)

// Notifier builds user-facing notifications and fans them out to a trip.
// It is shared by the dispatcher and the REST handlers so both paths
// produce identical frames. Every failure is absorbed: a notification is
// best-effort decoration on an operation that already succeeded.
type Notifier struct {
	hub   *Hub
	store Store
}

func NewNotifier(hub *Hub, store Store) *Notifier {
	return &Notifier{hub: hub, store: store}
}

// Notify resolves the acting user's display name, stamps the
// notification and broadcasts it to the trip. The notification is also
// mirrored into the trip's activity feed so offline members see it in
// history.
func (n *Notifier) Notify(ctx context.Context, notif models.Notification) {
	if notif.UserName == "" {
		notif.UserName = n.displayName(ctx, notif.UserID)
	}
	notif.Timestamp = time.Now().UTC()

	n.hub.BroadcastToTrip(notif.TripID, EventNotification, notif)

	if err := n.store.CreateActivity(ctx, notif.TripID, notif.UserID, "notification", notif); err != nil {
		logging.Error().Err(err).Int64("trip_id", notif.TripID).Str("type", notif.Type).Msg("Failed to mirror notification to activity feed")
	}
}

// MemberJoined announces a new member on both the member_joined event and
// a notification, matching what the invite-code join flow promises peers.
func (n *Notifier) MemberJoined(ctx context.Context, tripID, userID int64, userName string) {
	if userName == "" {
		userName = n.displayName(ctx, userID)
	}
	n.hub.BroadcastToTrip(tripID, EventMemberJoined, MemberJoinedPayload{
		TripID:   tripID,
		UserID:   userID,
		UserName: userName,
	})
	n.Notify(ctx, models.Notification{
		TripID:   tripID,
		UserID:   userID,
		UserName: userName,
		Type:     "member_joined",
		Title:    "New trip member",
		Message:  fmt.Sprintf("%s joined the trip", userName),
	})
}

// displayName looks the user up and falls back to a generic label when
// the lookup fails. A missing name never blocks a notification.
func (n *Notifier) displayName(ctx context.Context, userID int64) string {
	user, err := n.store.GetUser(ctx, userID)
	if err != nil {
		logging.Debug().Err(err).Int64("user_id", userID).Msg("Falling back to generic display name")
		return fmt.Sprintf("User %d", userID)
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}
	if user.Username != "" {
		return user.Username
	}
	return fmt.Sprintf("User %d", userID)
}
