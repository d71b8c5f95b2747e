// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package models defines the domain entities shared across TripSync:
// trips, members, users, chat messages and their mutable substate,
// activities, list items, expenses, and the standard API response wrappers.
package models
