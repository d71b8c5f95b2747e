// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/metrics"
	"github.com/tomtom215/tripsync/internal/models"
)

// CreateChatMessage persists a new chat message. The author is always the
// first reader, so ReadBy starts as [userID]. The stored row (with assigned
// ID, version, and timestamps) is returned.
func (db *DB) CreateChatMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	start := time.Now()
	defer metrics.ObserveQuery("insert", "chat_messages", start)

	if msg.ReadBy == nil {
		msg.ReadBy = []int64{msg.UserID}
	}
	if msg.Reactions == nil {
		msg.Reactions = map[string][]int64{}
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	readBy, reactions, err := marshalSubstate(msg)
	if err != nil {
		return nil, err
	}

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO chat_messages (trip_id, user_id, message, read_by, reactions, is_system, is_encrypted, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id, version`,
		msg.TripID, msg.UserID, msg.Message, readBy, reactions, msg.IsSystem, msg.IsEncrypted, msg.SentAt,
	)
	if err := row.Scan(&msg.ID, &msg.Version); err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	return msg, nil
}

// GetChatMessage returns the message, or ErrNotFound if it does not exist or
// was soft-deleted.
func (db *DB) GetChatMessage(ctx context.Context, id int64) (*models.ChatMessage, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "chat_messages", start)

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, trip_id, user_id, message, read_by, reactions,
		        is_edited, edited_at, is_deleted, is_system, is_encrypted, sent_at, version
		 FROM chat_messages WHERE id = ? AND NOT is_deleted`, id)

	msg, err := scanChatMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chat message %d: %w", id, err)
	}
	return msg, nil
}

// UpdateChatMessageState writes the message's mutable substate (text, readBy,
// reactions, edit and delete flags) back under an optimistic-concurrency
// check: the write only lands if the row still carries msg.Version, and the
// version advances by one. Returns ErrVersionConflict when the row moved on.
func (db *DB) UpdateChatMessageState(ctx context.Context, msg *models.ChatMessage) error {
	start := time.Now()
	defer metrics.ObserveQuery("update", "chat_messages", start)

	readBy, reactions, err := marshalSubstate(msg)
	if err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE chat_messages
		 SET message = ?, read_by = ?, reactions = ?,
		     is_edited = ?, edited_at = ?, is_deleted = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		msg.Message, readBy, reactions,
		msg.IsEdited, msg.EditedAt, msg.IsDeleted,
		msg.ID, msg.Version,
	)
	if err != nil {
		return fmt.Errorf("update chat message %d: %w", msg.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update chat message %d: %w", msg.ID, err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	msg.Version++
	return nil
}

// ListTripMessages returns the trip's non-deleted messages in sent order,
// newest page first. A zero beforeID starts from the latest message.
func (db *DB) ListTripMessages(ctx context.Context, tripID int64, beforeID int64, limit int) ([]*models.ChatMessage, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "chat_messages", start)

	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, trip_id, user_id, message, read_by, reactions,
	                 is_edited, edited_at, is_deleted, is_system, is_encrypted, sent_at, version
	          FROM chat_messages
	          WHERE trip_id = ? AND NOT is_deleted`
	args := []interface{}{tripID}
	if beforeID > 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trip %d messages: %w", tripID, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var messages []*models.ChatMessage
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChatMessage(row rowScanner) (*models.ChatMessage, error) {
	var (
		msg       models.ChatMessage
		readBy    string
		reactions string
		editedAt  sql.NullTime
	)

	err := row.Scan(
		&msg.ID, &msg.TripID, &msg.UserID, &msg.Message, &readBy, &reactions,
		&msg.IsEdited, &editedAt, &msg.IsDeleted, &msg.IsSystem, &msg.IsEncrypted,
		&msg.SentAt, &msg.Version,
	)
	if err != nil {
		return nil, err
	}

	if editedAt.Valid {
		t := editedAt.Time
		msg.EditedAt = &t
	}
	if err := json.Unmarshal([]byte(readBy), &msg.ReadBy); err != nil {
		return nil, fmt.Errorf("decode read_by for message %d: %w", msg.ID, err)
	}
	if err := json.Unmarshal([]byte(reactions), &msg.Reactions); err != nil {
		return nil, fmt.Errorf("decode reactions for message %d: %w", msg.ID, err)
	}
	return &msg, nil
}

func marshalSubstate(msg *models.ChatMessage) (readBy, reactions string, err error) {
	rb, err := json.Marshal(msg.ReadBy)
	if err != nil {
		return "", "", fmt.Errorf("encode read_by: %w", err)
	}
	rx, err := json.Marshal(msg.Reactions)
	if err != nil {
		return "", "", fmt.Errorf("encode reactions: %w", err)
	}
	return string(rb), string(rx), nil
}
