// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package realtime implements the WebSocket coordination layer: a hub
// that registers connections and fans events out per trip, a registry of
// per-connection liveness and routing metadata, a sweep-based liveness
// monitor, a dispatcher that decodes and routes the closed set of wire
// events, and a notification emitter shared with the REST layer.
//
// Concurrency model: each connection gets one read and one write
// goroutine. The hub goroutine owns registration, fan-out and the sweep;
// send channels are only closed there. Registry metadata is mutex-guarded
// because pong handlers and dispatch run on read goroutines.
package realtime
