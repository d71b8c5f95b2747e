// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package database

import "fmt"

// initSchema creates all tables and sequences if they do not exist.
//
// DuckDB has no AUTO_INCREMENT; integer primary keys draw from explicit
// sequences. readby/reactions are stored as JSON text; they are only ever
// read and written whole, under the row's version stamp.
func (db *DB) initSchema() error {
	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_users START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_trips START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_chat_messages START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_activities START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_grocery_items START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_packing_items START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_expenses START 1`,

		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_users'),
			username VARCHAR NOT NULL UNIQUE,
			display_name VARCHAR NOT NULL,
			password_hash VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE TABLE IF NOT EXISTS trips (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_trips'),
			name VARCHAR NOT NULL,
			destination VARCHAR NOT NULL DEFAULT '',
			start_date TIMESTAMP,
			end_date TIMESTAMP,
			invite_code VARCHAR NOT NULL UNIQUE,
			owner_id BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE TABLE IF NOT EXISTS trip_members (
			trip_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			role VARCHAR NOT NULL DEFAULT 'member',
			joined_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
			PRIMARY KEY (trip_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_chat_messages'),
			trip_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			message VARCHAR NOT NULL,
			read_by VARCHAR NOT NULL DEFAULT '[]',
			reactions VARCHAR NOT NULL DEFAULT '{}',
			is_edited BOOLEAN NOT NULL DEFAULT false,
			edited_at TIMESTAMP,
			is_deleted BOOLEAN NOT NULL DEFAULT false,
			is_system BOOLEAN NOT NULL DEFAULT false,
			is_encrypted BOOLEAN NOT NULL DEFAULT false,
			sent_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
			version BIGINT NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS activities (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_activities'),
			trip_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			type VARCHAR NOT NULL,
			data VARCHAR NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE TABLE IF NOT EXISTS grocery_items (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_grocery_items'),
			trip_id BIGINT NOT NULL,
			name VARCHAR NOT NULL,
			quantity VARCHAR NOT NULL DEFAULT '',
			completed BOOLEAN NOT NULL DEFAULT false,
			added_by BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE TABLE IF NOT EXISTS packing_items (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_packing_items'),
			trip_id BIGINT NOT NULL,
			name VARCHAR NOT NULL,
			packed BOOLEAN NOT NULL DEFAULT false,
			added_by BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_expenses'),
			trip_id BIGINT NOT NULL,
			paid_by BIGINT NOT NULL,
			description VARCHAR NOT NULL,
			amount_cents BIGINT NOT NULL,
			currency VARCHAR NOT NULL DEFAULT 'USD',
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE INDEX IF NOT EXISTS idx_chat_messages_trip ON chat_messages (trip_id, sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_trip ON activities (trip_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_members_user ON trip_members (user_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
