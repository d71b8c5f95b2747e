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

	"github.com/tomtom215/tripsync/internal/metrics"
	"github.com/tomtom215/tripsync/internal/models"
)

// CreateUser persists a new user. Usernames are unique.
func (db *DB) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	start := time.Now()
	defer metrics.ObserveQuery("insert", "users", start)

	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (username, display_name, password_hash, created_at)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		user.Username, user.DisplayName, user.PasswordHash, user.CreatedAt,
	)
	if err := row.Scan(&user.ID); err != nil {
		return nil, fmt.Errorf("insert user %q: %w", user.Username, err)
	}
	return user, nil
}

// GetUser returns the user or ErrNotFound.
func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "users", start)

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, username, display_name, password_hash, created_at
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername returns the user or ErrNotFound.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	start := time.Now()
	defer metrics.ObserveQuery("select", "users", start)

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, username, display_name, password_hash, created_at
		 FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
