// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/tripsync/internal/logging"
)

// State is the connection manager's lifecycle state. Reconnecting and
// Errored are excursions from Connected/Connecting; all transitions go
// through a single mutex-guarded function so illegal states cannot occur.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Errored
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Envelope is the wire frame exchanged with the server.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Handler receives every inbound envelope of the subscribed type.
type Handler func(Envelope)

// Config holds client settings. URL and Token are required; everything
// else has a usable default.
type Config struct {
	// URL is the websocket endpoint, e.g. wss://host/api/v1/ws.
	URL string

	// Token is appended as the token query parameter for the upgrade.
	Token string

	// ConnectTimeout bounds each connection attempt and each Connect call
	// waiting on an in-flight attempt. Default 10s.
	ConnectTimeout time.Duration

	// HeartbeatInterval is how often a connected frame is sent. Default 25s.
	HeartbeatInterval time.Duration

	// BackoffInitial is the first reconnect delay. Default 1s.
	BackoffInitial time.Duration

	// BackoffMax caps any single reconnect delay. Default 10s.
	BackoffMax time.Duration

	// MaxAttempts is the reconnect attempt cap before the cooldown.
	// Default 8.
	MaxAttempts int

	// Cooldown is the long pause after MaxAttempts failures, followed by
	// exactly one more attempt. Default 30s.
	Cooldown time.Duration

	// ParseErrorThreshold forces a reconnect after this many consecutive
	// undecodable frames. Default 5.
	ParseErrorThreshold int

	// OnConnect runs after every successful open, including reopens. Use
	// it to resend auth and join_trip.
	OnConnect func(*Client)

	// OnNotice receives user-facing failure descriptions. The client never
	// panics or returns raw transport errors to subscribers.
	OnNotice func(string)
}

const backoffMultiplier = 1.5

func (c *Config) withDefaults() Config {
	out := *c
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 10 * time.Second
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = 25 * time.Second
	}
	if out.BackoffInitial <= 0 {
		out.BackoffInitial = time.Second
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = 10 * time.Second
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 8
	}
	if out.Cooldown <= 0 {
		out.Cooldown = 30 * time.Second
	}
	if out.ParseErrorThreshold <= 0 {
		out.ParseErrorThreshold = 5
	}
	return out
}

// ErrConnectTimeout is returned when a connection attempt (or a wait on an
// in-flight attempt) exceeds Config.ConnectTimeout.
var ErrConnectTimeout = errors.New("connect timed out")

// ErrNoSubscribers is returned by Connect when nothing is registered; the
// manager only holds a socket open for registered components.
var ErrNoSubscribers = errors.New("no registered subscribers")

type subscription struct {
	id int
	fn Handler
}

// Client is the reference-counted connection manager: one physical socket
// shared by every registered component. Construct once and inject; it is
// a service object, not package state.
type Client struct {
	cfg Config

	mu          sync.Mutex
	state       State
	ws          *websocket.Conn
	gen         int  // bumped per socket so stale goroutines stand down
	refs        int  // registered components
	closeSent   bool // we initiated a normal closure; suppress reconnect
	parseErrors int
	waiters     []chan error
	subs        map[string][]subscription
	nextSubID   int

	writeMu sync.Mutex // serializes frame writes on the live socket
}

// New validates the config and returns an unconnected client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("url is required")
	}
	return &Client{
		cfg:   cfg.withDefaults(),
		state: Disconnected,
		subs:  make(map[string][]subscription),
	}, nil
}

// State returns the manager's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RegisterConnection records one component's interest in the shared socket.
// The first registration initiates the connection; later ones reuse it.
func (c *Client) RegisterConnection() {
	c.mu.Lock()
	c.refs++
	first := c.refs == 1
	c.mu.Unlock()

	if first {
		go func() {
			if err := c.Connect(false); err != nil {
				c.notice(fmt.Sprintf("Realtime connection failed: %v", err))
			}
		}()
	}
}

// DeregisterConnection releases one component's interest. The socket stays
// open until the last component deregisters, then closes with a normal
// closure code so no reconnect fires.
func (c *Client) DeregisterConnection() {
	c.mu.Lock()
	if c.refs > 0 {
		c.refs--
	}
	last := c.refs == 0
	c.mu.Unlock()

	if last {
		c.closeSocket()
	}
}

// Connect opens the socket, or waits on the attempt already in flight.
// When already connected and force is false it returns immediately; force
// tears the current socket down first. The wait is bounded by
// Config.ConnectTimeout.
func (c *Client) Connect(force bool) error {
	c.mu.Lock()
	if c.refs == 0 {
		c.mu.Unlock()
		return ErrNoSubscribers
	}
	switch {
	case c.state == Connected && !force:
		c.mu.Unlock()
		return nil
	case (c.state == Connecting || c.state == Reconnecting) && !force:
		// Join the in-flight attempt rather than racing it.
		ch := make(chan error, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		return c.await(ch)
	}

	ch := make(chan error, 1)
	c.waiters = append(c.waiters, ch)
	c.state = Connecting
	c.mu.Unlock()

	if force {
		c.closeSocket()
	}
	go c.attempt()
	return c.await(ch)
}

func (c *Client) await(ch chan error) error {
	select {
	case err := <-ch:
		return err
	case <-time.After(c.cfg.ConnectTimeout):
		return ErrConnectTimeout
	}
}

// attempt dials once and settles every waiter. Failures hand off to the
// reconnect loop instead of resolving waiters with success.
func (c *Client) attempt() {
	err := c.dial()
	if err == nil {
		c.settleWaiters(nil)
		return
	}
	logging.Warn().Err(err).Msg("Realtime connect attempt failed")
	c.settleWaiters(err)
	c.scheduleReconnect()
}

func (c *Client) settleWaiters(err error) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, ch := range waiters {
		ch <- err
	}
}

func (c *Client) dial() error {
	url := c.cfg.URL
	if c.cfg.Token != "" {
		url += "?token=" + c.cfg.Token
	}
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	ws, _, err := dialer.Dial(url, nil) //nolint:bodyclose // gorilla owns the response body after upgrade
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.gen++
	gen := c.gen
	c.state = Connected
	c.closeSent = false
	c.parseErrors = 0
	c.mu.Unlock()

	logging.Info().Str("url", c.cfg.URL).Msg("Realtime connection established")

	go c.readLoop(ws, gen)
	go c.heartbeat(ws, gen)

	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect(c)
	}
	return nil
}

// scheduleReconnect runs the backoff ladder: delays grow by 1.5x up to
// BackoffMax; after MaxAttempts failures it waits out the cooldown and
// tries exactly once more before parking in Errored.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.state == Reconnecting {
		c.mu.Unlock()
		return
	}
	c.state = Reconnecting
	c.mu.Unlock()

	delays := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.cfg.BackoffInitial),
		backoff.WithMultiplier(backoffMultiplier),
		backoff.WithMaxInterval(c.cfg.BackoffMax),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)

	for attempt := 1; ; attempt++ {
		if !c.wantsConnection() {
			c.setState(Disconnected)
			return
		}
		if attempt > c.cfg.MaxAttempts {
			logging.Warn().
				Int("attempts", c.cfg.MaxAttempts).
				Dur("cooldown", c.cfg.Cooldown).
				Msg("Reconnect attempts exhausted, entering cooldown")
			c.notice("Realtime connection lost; retrying shortly")
			time.Sleep(c.cfg.Cooldown)
			if !c.wantsConnection() {
				c.setState(Disconnected)
				return
			}
			if err := c.dial(); err != nil {
				c.setState(Errored)
				c.settleWaiters(err)
				c.notice("Realtime connection could not be re-established")
				return
			}
			c.settleWaiters(nil)
			return
		}

		time.Sleep(delays.NextBackOff())
		if err := c.dial(); err != nil {
			logging.Debug().Err(err).Int("attempt", attempt).Msg("Reconnect attempt failed")
			continue
		}
		c.settleWaiters(nil)
		return
	}
}

func (c *Client) wantsConnection() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs > 0
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// readLoop delivers inbound envelopes to subscribers until the socket dies.
// gen guards against a stale loop acting on a replacement socket's state.
func (c *Client) readLoop(ws *websocket.Conn, gen int) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
			if c.recordParseError(gen) {
				logging.Warn().Msg("Parse error threshold exceeded, forcing reconnect")
				_ = ws.Close()
				c.handleClose(gen, errors.New("parse error threshold exceeded"))
				return
			}
			continue
		}

		c.mu.Lock()
		c.parseErrors = 0
		handlers := make([]Handler, 0, len(c.subs[env.Type]))
		for _, sub := range c.subs[env.Type] {
			handlers = append(handlers, sub.fn)
		}
		c.mu.Unlock()

		for _, fn := range handlers {
			fn(env)
		}
	}
}

// recordParseError counts consecutive undecodable frames and reports
// whether the threshold was crossed for this socket generation.
func (c *Client) recordParseError(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.parseErrors++
	return c.parseErrors >= c.cfg.ParseErrorThreshold
}

// handleClose is the single exit path for a dead socket. Clean self-closes
// stay down; everything else reconnects while components remain registered.
func (c *Client) handleClose(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen {
		// A newer socket already replaced this one.
		c.mu.Unlock()
		return
	}
	selfClosed := c.closeSent
	c.ws = nil
	c.state = Disconnected
	wants := c.refs > 0
	c.mu.Unlock()

	if selfClosed || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		logging.Debug().Msg("Realtime connection closed cleanly")
		return
	}

	logging.Warn().Err(err).Msg("Realtime connection lost")
	if wants {
		go c.scheduleReconnect()
	}
}

// heartbeat sends the application-level connected frame on a fixed cadence,
// independent of the server's transport pings.
func (c *Client) heartbeat(ws *websocket.Conn, gen int) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		stale := c.gen != gen || c.ws != ws
		c.mu.Unlock()
		if stale {
			return
		}
		if err := c.write(ws, Envelope{Type: "connected", Payload: json.RawMessage(`{}`)}); err != nil {
			return
		}
	}
}

// Send transmits one envelope. If the socket is down it connects first and
// retries the send once; the retry is fire-and-forget. Send never panics
// and reports failures through OnNotice as well as its return value.
func (c *Client) Send(eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env := Envelope{
		Type:      eventType,
		Payload:   raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.mu.Lock()
	ws := c.ws
	open := c.state == Connected && ws != nil
	c.mu.Unlock()

	if open {
		if err := c.write(ws, env); err == nil {
			return nil
		}
		// Fall through: the socket died under us, reconnect and retry.
	}

	if err := c.Connect(false); err != nil {
		c.notice(fmt.Sprintf("Could not send %s: not connected", eventType))
		return fmt.Errorf("send %s: %w", eventType, err)
	}

	c.mu.Lock()
	ws = c.ws
	c.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("send %s: connection not available", eventType)
	}
	if err := c.write(ws, env); err != nil {
		c.notice(fmt.Sprintf("Could not send %s", eventType))
		return fmt.Errorf("send %s: %w", eventType, err)
	}
	return nil
}

func (c *Client) write(ws *websocket.Conn, env Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ws.WriteMessage(websocket.TextMessage, frame)
}

// On subscribes a handler to one event type and returns a token for Off.
// Multiple independent subscribers per type are supported.
func (c *Client) On(eventType string, fn Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	c.subs[eventType] = append(c.subs[eventType], subscription{id: c.nextSubID, fn: fn})
	return c.nextSubID
}

// Off removes the subscription identified by the token from On. Unknown
// tokens are a no-op.
func (c *Client) Off(eventType string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subs[eventType]
	for i, sub := range subs {
		if sub.id == id {
			c.subs[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// closeSocket performs a clean, self-initiated shutdown: a normal-closure
// frame first so the read loop knows not to reconnect, then the transport
// close.
func (c *Client) closeSocket() {
	c.mu.Lock()
	ws := c.ws
	c.closeSent = true
	c.ws = nil
	c.state = Disconnected
	c.mu.Unlock()

	if ws == nil {
		return
	}
	c.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.writeMu.Unlock()
	_ = ws.Close()
}

func (c *Client) notice(msg string) {
	if c.cfg.OnNotice != nil {
		c.cfg.OnNotice(msg)
	}
}
