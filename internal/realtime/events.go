// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package realtime

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/validation"
)

// EventType identifies a frame on the realtime wire. The set is closed:
// decoding rejects anything not listed here so new types must be added
// deliberately on both sides of the connection.
type EventType string

const (
	EventAuth            EventType = "auth"
	EventJoinTrip        EventType = "join_trip"
	EventConnected       EventType = "connected"
	EventTypingIndicator EventType = "typing_indicator"
	EventMessageRead     EventType = "message_read"
	EventMessageReaction EventType = "message_reaction"
	EventMessageEdit     EventType = "message_edit"
	EventMessageDelete   EventType = "message_delete"
	EventChatMessage     EventType = "chat_message"
	EventItemUpdated     EventType = "item_updated"
	EventExpenseAdded    EventType = "expense_added"
	EventMemberJoined    EventType = "member_joined"
	EventNotification    EventType = "notification"
	EventError           EventType = "error"
)

// Envelope is the wire frame: a type tag, a type-specific payload and a
// server-assigned RFC 3339 timestamp. Payload stays raw until the type
// tag selects the concrete struct to decode into.
type Envelope struct {
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// NewEnvelope serializes payload once and stamps the frame.
func NewEnvelope(t EventType, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{
		Type:      t,
		Payload:   raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Encode renders the envelope to a single wire frame.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// AuthPayload associates the connection with a user.
type AuthPayload struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

// JoinTripPayload subscribes the connection to a trip's broadcasts.
type JoinTripPayload struct {
	TripID int64 `json:"tripId" validate:"required,gt=0"`
}

// ConnectedPayload is the liveness probe reply.
type ConnectedPayload struct {
	Status string `json:"status"`
}

// TypingIndicatorPayload is relayed to the trip without persistence.
type TypingIndicatorPayload struct {
	TripID   int64  `json:"tripId" validate:"required,gt=0"`
	UserID   int64  `json:"userId" validate:"required,gt=0"`
	UserName string `json:"userName,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// MessageReadPayload records a read receipt on a stored message.
type MessageReadPayload struct {
	MessageID int64 `json:"messageId" validate:"required,gt=0"`
	TripID    int64 `json:"tripId" validate:"required,gt=0"`
	UserID    int64 `json:"userId" validate:"required,gt=0"`
}

// MessageReactionPayload adds or toggles an emoji reaction.
type MessageReactionPayload struct {
	MessageID int64  `json:"messageId" validate:"required,gt=0"`
	TripID    int64  `json:"tripId" validate:"required,gt=0"`
	UserID    int64  `json:"userId" validate:"required,gt=0"`
	Reaction  string `json:"reaction" validate:"required,max=32"`
	Toggle    bool   `json:"toggle"`
}

// MessageEditPayload replaces a message's text. Only the author may edit.
type MessageEditPayload struct {
	MessageID int64  `json:"messageId" validate:"required,gt=0"`
	TripID    int64  `json:"tripId" validate:"required,gt=0"`
	UserID    int64  `json:"userId" validate:"required,gt=0"`
	Message   string `json:"message" validate:"required,max=10000"`
}

// MessageDeletePayload soft-deletes a message. Only the author may delete.
type MessageDeletePayload struct {
	MessageID int64 `json:"messageId" validate:"required,gt=0"`
	TripID    int64 `json:"tripId" validate:"required,gt=0"`
	UserID    int64 `json:"userId" validate:"required,gt=0"`
}

// ChatMessagePayload carries a new chat message for persistence and fan-out.
type ChatMessagePayload struct {
	TripID      int64  `json:"tripId" validate:"required,gt=0"`
	UserID      int64  `json:"userId" validate:"required,gt=0"`
	Message     string `json:"message" validate:"required,max=10000"`
	IsSystem    bool   `json:"isSystem"`
	IsEncrypted bool   `json:"isEncrypted"`
}

// RelayPayload is the minimal shape shared by pass-through events such as
// item_updated and expense_added. The server only needs the trip routing
// key; the rest of the payload is rebroadcast untouched.
type RelayPayload struct {
	TripID int64 `json:"tripId" validate:"required,gt=0"`
}

// MemberJoinedPayload announces a new trip member to connected peers.
type MemberJoinedPayload struct {
	TripID   int64  `json:"tripId" validate:"required,gt=0"`
	UserID   int64  `json:"userId" validate:"required,gt=0"`
	UserName string `json:"userName,omitempty"`
}

// ErrorPayload is sent to a single connection when its request failed.
type ErrorPayload struct {
	Message string `json:"message"`
}

// DecodeEvent parses and validates the payload selected by the envelope's
// type tag. Server-emitted types and unknown tags return an error; the
// dispatcher logs and drops those frames.
func DecodeEvent(env Envelope) (interface{}, error) {
	switch env.Type {
	case EventAuth:
		return decodePayload[AuthPayload](env)
	case EventJoinTrip:
		return decodePayload[JoinTripPayload](env)
	case EventConnected:
		return &ConnectedPayload{}, nil
	case EventTypingIndicator:
		return decodePayload[TypingIndicatorPayload](env)
	case EventMessageRead:
		return decodePayload[MessageReadPayload](env)
	case EventMessageReaction:
		return decodePayload[MessageReactionPayload](env)
	case EventMessageEdit:
		return decodePayload[MessageEditPayload](env)
	case EventMessageDelete:
		return decodePayload[MessageDeletePayload](env)
	case EventChatMessage:
		return decodePayload[ChatMessagePayload](env)
	case EventItemUpdated, EventExpenseAdded:
		return decodePayload[RelayPayload](env)
	case EventMemberJoined, EventNotification, EventError:
		return nil, fmt.Errorf("event type %q is server-emitted only", env.Type)
	default:
		return nil, fmt.Errorf("unrecognized event type %q", env.Type)
	}
}

func decodePayload[T any](env Envelope) (*T, error) {
	var p T
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	if err := validation.ValidateStruct(&p); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return &p, nil
}
