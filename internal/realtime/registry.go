// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package realtime

import "sync"

// ConnMeta is the registry's per-connection record. UserID and TripID are
// zero until the connection identifies itself with auth and join_trip.
type ConnMeta struct {
	Alive  bool
	UserID int64
	TripID int64
}

// Registry tracks every open connection and its liveness and routing
// metadata. The hub goroutine, the sweep and the per-connection read
// goroutines all touch it, so every method locks.
type Registry struct {
	mu    sync.RWMutex
	conns map[*Conn]*ConnMeta
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[*Conn]*ConnMeta)}
}

// Register adds a connection, initially alive. The first sweep after
// registration therefore never evicts it.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = &ConnMeta{Alive: true}
}

// Unregister removes a connection. Unknown connections are a no-op.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
}

// SetAlive marks a connection's heartbeat state. No-op if unregistered.
func (r *Registry) SetAlive(c *Conn, alive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.conns[c]; ok {
		m.Alive = alive
	}
}

// SetUserID records the authenticated user. No-op if unregistered.
func (r *Registry) SetUserID(c *Conn, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.conns[c]; ok {
		m.UserID = userID
	}
}

// SetTripID records the joined trip. A connection subscribes to one trip
// at a time; joining again simply replaces the routing key.
func (r *Registry) SetTripID(c *Conn, tripID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.conns[c]; ok {
		m.TripID = tripID
	}
}

// Meta returns a copy of the connection's record.
func (r *Registry) Meta(c *Conn) (ConnMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.conns[c]
	if !ok {
		return ConnMeta{}, false
	}
	return *m, true
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns the current connections and copies of their metadata.
// Callers iterate the copy so registry locks are never held across sends.
func (r *Registry) Snapshot() map[*Conn]ConnMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[*Conn]ConnMeta, len(r.conns))
	for c, m := range r.conns {
		out[c] = *m
	}
	return out
}
