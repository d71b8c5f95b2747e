// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/database"
	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/metrics"
	"github.com/tomtom215/tripsync/internal/models"
)

// dispatchTimeout bounds the database work done for one inbound frame.
const dispatchTimeout = 10 * time.Second

// Store is the persistence surface the realtime layer needs. *database.DB
// satisfies it; tests use an in-memory fake.
type Store interface {
	GetChatMessage(ctx context.Context, id int64) (*models.ChatMessage, error)
	CreateChatMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	UpdateChatMessageState(ctx context.Context, msg *models.ChatMessage) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateActivity(ctx context.Context, tripID, userID int64, activityType string, data interface{}) error
}

// Dispatcher routes decoded inbound events to their handlers. Handlers
// never panic outward and never return errors to the read pump: failures
// are logged, counted and, where a requester exists, answered with a
// targeted error frame.
type Dispatcher struct {
	hub      *Hub
	store    Store
	notifier *Notifier
}

func NewDispatcher(hub *Hub, store Store, notifier *Notifier) *Dispatcher {
	return &Dispatcher{hub: hub, store: store, notifier: notifier}
}

// Dispatch handles one raw inbound frame from a connection's read pump.
func (d *Dispatcher) Dispatch(c *Conn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		metrics.WSEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		logging.Warn().Err(err).Uint64("conn_id", c.id).Msg("Malformed frame dropped")
		return
	}

	payload, err := DecodeEvent(env)
	if err != nil {
		metrics.WSEventsTotal.WithLabelValues(string(env.Type), "rejected").Inc()
		logging.Warn().Err(err).Uint64("conn_id", c.id).Str("event", string(env.Type)).Msg("Rejected inbound event")
		if mutatesMessages(env.Type) {
			d.sendError(c, fmt.Sprintf("Invalid %s payload", env.Type))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	ok := true
	switch p := payload.(type) {
	case *AuthPayload:
		d.hub.registry.SetUserID(c, p.UserID)
		logging.Debug().Uint64("conn_id", c.id).Int64("user_id", p.UserID).Msg("Connection authenticated")
	case *JoinTripPayload:
		d.hub.registry.SetTripID(c, p.TripID)
		logging.Debug().Uint64("conn_id", c.id).Int64("trip_id", p.TripID).Msg("Connection joined trip")
	case *ConnectedPayload:
		d.hub.registry.SetAlive(c, true)
		if reply, err := NewEnvelope(EventConnected, ConnectedPayload{Status: "ok"}); err == nil {
			c.sendEnvelope(reply)
		}
	case *TypingIndicatorPayload:
		d.hub.BroadcastToTrip(p.TripID, EventTypingIndicator, p)
	case *MessageReadPayload:
		ok = d.handleMessageRead(ctx, c, p)
	case *MessageReactionPayload:
		ok = d.handleMessageReaction(ctx, c, p)
	case *MessageEditPayload:
		ok = d.handleMessageEdit(ctx, c, p)
	case *MessageDeletePayload:
		ok = d.handleMessageDelete(ctx, c, p)
	case *ChatMessagePayload:
		ok = d.handleChatMessage(ctx, c, p)
	case *RelayPayload:
		// Pass-through events keep their inbound payload byte for byte;
		// the server only re-stamps the timestamp.
		env.Timestamp = time.Now().UTC().Format(time.RFC3339)
		d.hub.broadcastEnvelope(p.TripID, env)
	default:
		metrics.WSEventsTotal.WithLabelValues(string(env.Type), "ignored").Inc()
		logging.Warn().Uint64("conn_id", c.id).Str("event", string(env.Type)).Msg("No handler for event")
		return
	}
	if ok {
		metrics.WSEventsTotal.WithLabelValues(string(env.Type), "ok").Inc()
	}
}

// mutatesMessages reports whether t is a message-mutation request. A bad
// payload on these types gets a targeted error reply; auth frames, relays
// and unknown tags are dropped silently.
func mutatesMessages(t EventType) bool {
	switch t {
	case EventChatMessage, EventMessageRead, EventMessageReaction, EventMessageEdit, EventMessageDelete:
		return true
	}
	return false
}

// messageReadBroadcast fans the updated receipt list out to the trip.
type messageReadBroadcast struct {
	MessageID int64   `json:"messageId"`
	TripID    int64   `json:"tripId"`
	ReadBy    []int64 `json:"readBy"`
}

type messageReactionBroadcast struct {
	MessageID int64              `json:"messageId"`
	TripID    int64              `json:"tripId"`
	Reactions map[string][]int64 `json:"reactions"`
}

type messageDeleteBroadcast struct {
	MessageID int64 `json:"messageId"`
	TripID    int64 `json:"tripId"`
	UserID    int64 `json:"userId"`
}

func (d *Dispatcher) handleMessageRead(ctx context.Context, c *Conn, p *MessageReadPayload) bool {
	msg, changed, err := d.mutateMessage(ctx, p.MessageID, func(m *models.ChatMessage) bool {
		return m.MarkRead(p.UserID)
	})
	if err != nil {
		d.replyError(c, EventMessageRead, err, "Failed to record read receipt")
		return false
	}
	if !changed {
		return true
	}
	d.hub.BroadcastToTrip(p.TripID, EventMessageRead, messageReadBroadcast{
		MessageID: msg.ID,
		TripID:    p.TripID,
		ReadBy:    msg.ReadBy,
	})
	return true
}

func (d *Dispatcher) handleMessageReaction(ctx context.Context, c *Conn, p *MessageReactionPayload) bool {
	msg, _, err := d.mutateMessage(ctx, p.MessageID, func(m *models.ChatMessage) bool {
		return m.ToggleReaction(p.Reaction, p.UserID, p.Toggle)
	})
	if err != nil {
		d.replyError(c, EventMessageReaction, err, "Failed to update reaction")
		return false
	}
	d.hub.BroadcastToTrip(p.TripID, EventMessageReaction, messageReactionBroadcast{
		MessageID: msg.ID,
		TripID:    p.TripID,
		Reactions: msg.Reactions,
	})
	return true
}

func (d *Dispatcher) handleMessageEdit(ctx context.Context, c *Conn, p *MessageEditPayload) bool {
	msg, _, err := d.mutateMessage(ctx, p.MessageID, func(m *models.ChatMessage) bool {
		if m.UserID != p.UserID {
			return false
		}
		now := time.Now().UTC()
		m.Message = p.Message
		m.IsEdited = true
		m.EditedAt = &now
		return true
	})
	if err != nil {
		d.replyError(c, EventMessageEdit, err, "Failed to edit message")
		return false
	}
	if msg.UserID != p.UserID {
		d.sendError(c, "Not authorized to edit this message")
		return false
	}
	d.hub.BroadcastToTrip(p.TripID, EventMessageEdit, msg)
	return true
}

func (d *Dispatcher) handleMessageDelete(ctx context.Context, c *Conn, p *MessageDeletePayload) bool {
	msg, _, err := d.mutateMessage(ctx, p.MessageID, func(m *models.ChatMessage) bool {
		if m.UserID != p.UserID {
			return false
		}
		m.IsDeleted = true
		return true
	})
	if err != nil {
		d.replyError(c, EventMessageDelete, err, "Failed to delete message")
		return false
	}
	if msg.UserID != p.UserID {
		d.sendError(c, "Not authorized to delete this message")
		return false
	}
	d.hub.BroadcastToTrip(p.TripID, EventMessageDelete, messageDeleteBroadcast{
		MessageID: msg.ID,
		TripID:    p.TripID,
		UserID:    p.UserID,
	})
	return true
}

func (d *Dispatcher) handleChatMessage(ctx context.Context, c *Conn, p *ChatMessagePayload) bool {
	msg := &models.ChatMessage{
		TripID:      p.TripID,
		UserID:      p.UserID,
		Message:     p.Message,
		IsSystem:    p.IsSystem,
		IsEncrypted: p.IsEncrypted,
	}
	stored, err := d.store.CreateChatMessage(ctx, msg)
	if err != nil {
		d.replyError(c, EventChatMessage, err, "Failed to store message")
		return false
	}
	d.hub.BroadcastToTrip(p.TripID, EventChatMessage, stored)

	if err := d.store.CreateActivity(ctx, p.TripID, p.UserID, "chat_message", map[string]int64{"messageId": stored.ID}); err != nil {
		logging.Error().Err(err).Int64("trip_id", p.TripID).Msg("Failed to record chat activity")
	}
	if !p.IsSystem {
		preview := p.Message
		// Truncate on rune boundaries so a multi-byte character at the
		// cut never produces an invalid preview.
		if r := []rune(preview); len(r) > 100 {
			preview = string(r[:97]) + "..."
		}
		d.notifier.Notify(ctx, models.Notification{
			TripID:  p.TripID,
			UserID:  p.UserID,
			Type:    "chat_message",
			Title:   "New message",
			Message: preview,
		})
	}
	return true
}

// mutateMessage loads a message, applies the mutation and persists it
// under optimistic concurrency. A concurrent writer bumps the version and
// fails our update; the mutation is then re-applied to the fresh row and
// retried once. apply reports whether it changed the message; unchanged
// messages are not written.
func (d *Dispatcher) mutateMessage(ctx context.Context, id int64, apply func(*models.ChatMessage) bool) (*models.ChatMessage, bool, error) {
	for attempt := 0; ; attempt++ {
		msg, err := d.store.GetChatMessage(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("load message %d: %w", id, err)
		}
		if !apply(msg) {
			return msg, false, nil
		}
		err = d.store.UpdateChatMessageState(ctx, msg)
		if err == nil {
			return msg, true, nil
		}
		if errors.Is(err, database.ErrVersionConflict) && attempt == 0 {
			logging.Debug().Int64("message_id", id).Msg("Version conflict, retrying mutation")
			continue
		}
		return nil, false, fmt.Errorf("persist message %d: %w", id, err)
	}
}

// replyError logs a handler failure and answers the requester. Missing
// rows get a precise message; everything else gets the generic one.
func (d *Dispatcher) replyError(c *Conn, t EventType, err error, generic string) {
	metrics.WSEventsTotal.WithLabelValues(string(t), "error").Inc()
	logging.Error().Err(err).Uint64("conn_id", c.id).Str("event", string(t)).Msg("Event handler failed")
	if errors.Is(err, database.ErrNotFound) {
		d.sendError(c, "Message not found")
		return
	}
	d.sendError(c, generic)
}

func (d *Dispatcher) sendError(c *Conn, message string) {
	env, err := NewEnvelope(EventError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	c.sendEnvelope(env)
}
