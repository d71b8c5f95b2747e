// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/metrics"
	"github.com/tomtom215/tripsync/internal/models"
)

// CreateActivity records a durable activity-log entry. data may be any
// JSON-serializable value; nil stores an empty object.
func (db *DB) CreateActivity(ctx context.Context, tripID, userID int64, activityType string, data interface{}) error {
	start := time.Now()
	defer metrics.ObserveQuery("insert", "activities", start)

	payload := "{}"
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode activity data: %w", err)
		}
		payload = string(encoded)
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO activities (trip_id, user_id, type, data) VALUES (?, ?, ?, ?)`,
		tripID, userID, activityType, payload,
	)
	if err != nil {
		return fmt.Errorf("insert activity for trip %d: %w", tripID, err)
	}
	return nil
}

// ListTripActivities returns the trip's activity log, newest first.
func (db *DB) ListTripActivities(ctx context.Context, tripID int64, limit int) ([]*models.Activity, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "activities", start)

	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, trip_id, user_id, type, data, created_at
		 FROM activities WHERE trip_id = ?
		 ORDER BY id DESC LIMIT ?`, tripID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trip %d activities: %w", tripID, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var activities []*models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.TripID, &a.UserID, &a.Type, &a.Data, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, &a)
	}
	return activities, rows.Err()
}
