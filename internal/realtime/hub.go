// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/metrics"
)

// broadcastReq is a pre-serialized frame routed to every open connection
// subscribed to a trip.
type broadcastReq struct {
	tripID    int64
	eventType EventType
	frame     []byte
}

// Hub owns the connection registry and fans events out to trips. All map
// mutation that closes send channels happens on the hub goroutine, so a
// connection is never closed while a broadcast is being delivered to it.
type Hub struct {
	cfg        config.RealtimeConfig
	registry   *Registry
	dispatcher *Dispatcher

	register   chan *Conn
	unregister chan *Conn
	broadcast  chan broadcastReq
}

// NewHub wires the hub against the chat store. The dispatcher and the
// notification emitter share the hub's broadcast path.
func NewHub(cfg config.RealtimeConfig, store Store) *Hub {
	h := &Hub{
		cfg:        cfg,
		registry:   NewRegistry(),
		register:   make(chan *Conn, 64),
		unregister: make(chan *Conn, 64),
		broadcast:  make(chan broadcastReq, 256),
	}
	notifier := NewNotifier(h, store)
	h.dispatcher = NewDispatcher(h, store, notifier)
	return h
}

// Registry exposes connection metadata to the dispatcher and tests.
func (h *Hub) Registry() *Registry { return h.registry }

// Notifier returns the shared notification emitter for REST handlers.
func (h *Hub) Notifier() *Notifier { return h.dispatcher.notifier }

// HandleConnection adopts an upgraded WebSocket: registers it and starts
// its pumps. userID comes from the upgrade request's token; a later auth
// event may overwrite it. Returns immediately.
func (h *Hub) HandleConnection(ws *websocket.Conn, userID int64) {
	c := newConn(ws, h)
	// Register synchronously so the identity is in place before the read
	// pump delivers the first frame; the hub loop only does accounting.
	h.registry.Register(c)
	if userID != 0 {
		h.registry.SetUserID(c, userID)
	}
	h.register <- c
	go c.writePump()
	go c.readPump()
}

// BroadcastToTrip serializes the event once and queues it for fan-out to
// the trip's connections. Errors are logged, never returned: one bad
// payload must not take down a caller's request path.
func (h *Hub) BroadcastToTrip(tripID int64, t EventType, payload interface{}) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		logging.Error().Err(err).Int64("trip_id", tripID).Str("event", string(t)).Msg("Failed to build broadcast envelope")
		return
	}
	h.broadcastEnvelope(tripID, env)
}

// broadcastEnvelope queues an already-built envelope, preserving its
// payload bytes. Used for relayed frames that are rebroadcast verbatim.
func (h *Hub) broadcastEnvelope(tripID int64, env Envelope) {
	frame, err := env.Encode()
	if err != nil {
		logging.Error().Err(err).Int64("trip_id", tripID).Str("event", string(env.Type)).Msg("Failed to encode broadcast frame")
		return
	}
	select {
	case h.broadcast <- broadcastReq{tripID: tripID, eventType: env.Type, frame: frame}:
	default:
		metrics.WSSendsDropped.Inc()
		logging.Warn().Int64("trip_id", tripID).Str("event", string(env.Type)).Msg("Broadcast queue full, frame dropped")
	}
}

// RunWithContext is the hub's main loop, run under the supervision tree.
// It processes lifecycle and broadcast requests and runs the liveness
// sweep on a fixed interval. On context cancellation it closes every
// connection before returning.
func (h *Hub) RunWithContext(ctx context.Context) error {
	logging.Info().Dur("sweep_interval", h.cfg.SweepInterval).Msg("Realtime hub started")
	sweep := time.NewTicker(h.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case c := <-h.register:
			if _, ok := h.registry.Meta(c); !ok {
				h.registry.Register(c)
			}
			metrics.WSConnectionsActive.Inc()
			logging.Debug().Uint64("conn_id", c.id).Int("total", h.registry.Len()).Msg("Connection registered")
		case c := <-h.unregister:
			h.drop(c)
		case req := <-h.broadcast:
			h.fanOut(req)
		case <-sweep.C:
			h.sweepLiveness()
		}
	}
}

// drop removes a connection from the registry and releases its pumps.
// Safe against duplicate requests from the read pump and the sweep.
func (h *Hub) drop(c *Conn) {
	if _, ok := h.registry.Meta(c); !ok {
		return
	}
	h.registry.Unregister(c)
	c.shutdownSend()
	metrics.WSConnectionsActive.Dec()
	logging.Debug().Uint64("conn_id", c.id).Int("total", h.registry.Len()).Msg("Connection unregistered")
}

// fanOut delivers one frame to every open connection on the trip. A
// connection that cannot accept the frame is evicted; delivery to the
// rest continues.
func (h *Hub) fanOut(req broadcastReq) {
	metrics.WSBroadcastsTotal.WithLabelValues(string(req.eventType)).Inc()
	delivered := 0
	for c, meta := range h.registry.Snapshot() {
		if meta.TripID != req.tripID || !c.isOpen() {
			continue
		}
		if !c.enqueue(req.frame) {
			logging.Warn().Uint64("conn_id", c.id).Int64("trip_id", req.tripID).Msg("Slow consumer evicted during broadcast")
			h.drop(c)
			c.closeTransport()
			continue
		}
		delivered++
	}
	logging.Debug().Int64("trip_id", req.tripID).Str("event", string(req.eventType)).Int("delivered", delivered).Msg("Broadcast fanned out")
}

// shutdown closes every connection during hub teardown.
func (h *Hub) shutdown() {
	for c := range h.registry.Snapshot() {
		h.drop(c)
	}
	logging.Info().Msg("Realtime hub stopped")
}
