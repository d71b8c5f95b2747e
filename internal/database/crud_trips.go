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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tripsync/internal/metrics"
	"github.com/tomtom215/tripsync/internal/models"
)

// CreateTrip persists a trip and enrolls the owner as its first member.
// The invite code is generated here; callers never supply one.
func (db *DB) CreateTrip(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	start := time.Now()
	defer metrics.ObserveQuery("insert", "trips", start)

	trip.InviteCode = newInviteCode()
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = time.Now().UTC()
	}

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO trips (name, destination, start_date, end_date, invite_code, owner_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		trip.Name, trip.Destination, trip.StartDate, trip.EndDate, trip.InviteCode, trip.OwnerID, trip.CreatedAt,
	)
	if err := row.Scan(&trip.ID); err != nil {
		return nil, fmt.Errorf("insert trip: %w", err)
	}

	if err := db.AddTripMember(ctx, trip.ID, trip.OwnerID, "owner"); err != nil {
		return nil, err
	}
	return trip, nil
}

// newInviteCode produces a short, URL-safe join code.
func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// GetTrip returns the trip or ErrNotFound.
func (db *DB) GetTrip(ctx context.Context, id int64) (*models.Trip, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "trips", start)

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, destination, start_date, end_date, invite_code, owner_id, created_at
		 FROM trips WHERE id = ?`, id)
	return scanTrip(row)
}

// GetTripByInviteCode resolves an invite code to its trip, or ErrNotFound.
func (db *DB) GetTripByInviteCode(ctx context.Context, code string) (*models.Trip, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "trips", start)

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, destination, start_date, end_date, invite_code, owner_id, created_at
		 FROM trips WHERE invite_code = ?`, strings.ToUpper(code))
	return scanTrip(row)
}

func scanTrip(row *sql.Row) (*models.Trip, error) {
	var (
		trip      models.Trip
		startDate sql.NullTime
		endDate   sql.NullTime
	)
	err := row.Scan(&trip.ID, &trip.Name, &trip.Destination, &startDate, &endDate,
		&trip.InviteCode, &trip.OwnerID, &trip.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan trip: %w", err)
	}
	if startDate.Valid {
		t := startDate.Time
		trip.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		trip.EndDate = &t
	}
	return &trip, nil
}

// AddTripMember enrolls a user; re-joining is a no-op.
func (db *DB) AddTripMember(ctx context.Context, tripID, userID int64, role string) error {
	start := time.Now()
	defer metrics.ObserveQuery("insert", "trip_members", start)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO trip_members (trip_id, user_id, role) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		tripID, userID, role,
	)
	if err != nil {
		return fmt.Errorf("add member %d to trip %d: %w", userID, tripID, err)
	}
	return nil
}

// IsTripMember reports whether the user belongs to the trip.
func (db *DB) IsTripMember(ctx context.Context, tripID, userID int64) (bool, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "trip_members", start)

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM trip_members WHERE trip_id = ? AND user_id = ?`,
		tripID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

// ListTripMembers returns the trip's membership records in join order.
func (db *DB) ListTripMembers(ctx context.Context, tripID int64) ([]*models.TripMember, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "trip_members", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT trip_id, user_id, role, joined_at FROM trip_members
		 WHERE trip_id = ? ORDER BY joined_at`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list trip %d members: %w", tripID, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var members []*models.TripMember
	for rows.Next() {
		var m models.TripMember
		if err := rows.Scan(&m.TripID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan trip member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// ListTripsForUser returns every trip the user belongs to, newest first.
func (db *DB) ListTripsForUser(ctx context.Context, userID int64) ([]*models.Trip, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "trips", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.id, t.name, t.destination, t.start_date, t.end_date, t.invite_code, t.owner_id, t.created_at
		 FROM trips t JOIN trip_members m ON m.trip_id = t.id
		 WHERE m.user_id = ? ORDER BY t.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list trips for user %d: %w", userID, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var trips []*models.Trip
	for rows.Next() {
		var (
			trip      models.Trip
			startDate sql.NullTime
			endDate   sql.NullTime
		)
		if err := rows.Scan(&trip.ID, &trip.Name, &trip.Destination, &startDate, &endDate,
			&trip.InviteCode, &trip.OwnerID, &trip.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		if startDate.Valid {
			t := startDate.Time
			trip.StartDate = &t
		}
		if endDate.Valid {
			t := endDate.Time
			trip.EndDate = &t
		}
		trips = append(trips, &trip)
	}
	return trips, rows.Err()
}
