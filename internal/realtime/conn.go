// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/metrics"
)

var connSeq atomic.Uint64

// transport is the subset of *websocket.Conn the hub relies on. Tests
// substitute an in-memory implementation.
type transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Conn is one WebSocket connection. A dedicated read goroutine feeds the
// dispatcher and a dedicated write goroutine drains send, so the
// underlying transport never sees concurrent reads or writes. Control
// frames go through WriteControl, which gorilla allows alongside the
// write pump.
type Conn struct {
	id        uint64
	ws        transport
	hub       *Hub
	limiter   *rate.Limiter
	writeWait time.Duration

	sendMu   sync.Mutex
	send     chan []byte
	sendShut bool

	closed atomic.Bool
}

func newConn(ws transport, hub *Hub) *Conn {
	cfg := hub.cfg
	ws.SetReadLimit(cfg.MaxMessageSize)
	return &Conn{
		id:        connSeq.Add(1),
		ws:        ws,
		hub:       hub,
		limiter:   rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
		writeWait: cfg.WriteWait,
		send:      make(chan []byte, cfg.SendBuffer),
	}
}

// ID is a process-unique connection identifier used in logs.
func (c *Conn) ID() uint64 { return c.id }

// enqueue hands a frame to the write pump. A full buffer means the peer
// is not draining; the frame is dropped and the caller decides whether to
// evict. Returns false on drop or after shutdown.
func (c *Conn) enqueue(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendShut {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		metrics.WSSendsDropped.Inc()
		return false
	}
}

// sendEnvelope serializes and enqueues a frame for this connection only.
func (c *Conn) sendEnvelope(env Envelope) {
	frame, err := env.Encode()
	if err != nil {
		logging.Error().Err(err).Uint64("conn_id", c.id).Str("event", string(env.Type)).Msg("Failed to encode envelope")
		return
	}
	if !c.enqueue(frame) {
		logging.Warn().Uint64("conn_id", c.id).Str("event", string(env.Type)).Msg("Send buffer full, frame dropped")
	}
}

// shutdownSend closes the send channel exactly once, releasing the write
// pump. Only the hub calls this.
func (c *Conn) shutdownSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendShut {
		return
	}
	c.sendShut = true
	close(c.send)
}

// ping sends a transport-level ping. The pong handler installed by
// readPump marks the connection alive when the peer answers.
func (c *Conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// closeTransport attempts a graceful close handshake and then tears the
// socket down regardless. Safe to call more than once.
func (c *Conn) closeTransport() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	deadline := time.Now().Add(c.writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		logging.Debug().Err(err).Uint64("conn_id", c.id).Msg("Close handshake write failed")
	}
	if err := c.ws.Close(); err != nil {
		logging.Debug().Err(err).Uint64("conn_id", c.id).Msg("Transport close failed")
	}
}

// isOpen reports whether the transport has not been torn down yet.
func (c *Conn) isOpen() bool { return !c.closed.Load() }

// readPump reads frames until the peer or the monitor closes the
// transport, then unregisters the connection. Each inbound frame passes
// the per-connection rate limiter before it reaches the dispatcher.
func (c *Conn) readPump() {
	defer func() {
		c.closed.Store(true)
		c.hub.unregister <- c
	}()

	c.ws.SetPongHandler(func(string) error {
		c.hub.registry.SetAlive(c, true)
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Uint64("conn_id", c.id).Msg("WebSocket read error")
			}
			return
		}
		// Any frame from the peer proves liveness, not just pongs.
		c.hub.registry.SetAlive(c, true)
		if !c.limiter.Allow() {
			metrics.WSEventsTotal.WithLabelValues("unknown", "rate_limited").Inc()
			logging.Warn().Uint64("conn_id", c.id).Msg("Inbound frame rate limit exceeded, frame dropped")
			continue
		}
		c.hub.dispatcher.Dispatch(c, raw)
	}
}

// writePump serializes all data writes to the transport. It exits when
// the hub closes the send channel or a write fails.
func (c *Conn) writePump() {
	defer c.closeTransport()

	for frame := range c.send {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
			return
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			logging.Debug().Err(err).Uint64("conn_id", c.id).Msg("WebSocket write failed")
			return
		}
	}
	// Channel closed by the hub: tell the peer we are done.
	deadline := time.Now().Add(c.writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
}
