// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/database"
	"github.com/tomtom215/tripsync/internal/models"
)

// fakeTransport satisfies the transport interface without a socket.
type fakeTransport struct {
	mu       sync.Mutex
	writes   [][]byte
	pings    int
	closed   bool
	failPing bool
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("fake transport has no reader")
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeTransport) WriteControl(messageType int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// 9 is the ping opcode.
	if messageType == 9 {
		if f.failPing {
			return errors.New("ping failed")
		}
		f.pings++
	}
	return nil
}

func (f *fakeTransport) SetReadLimit(int64)               {}
func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeTransport) SetPongHandler(func(string) error) {}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeStore is an in-memory Store with optional injected version
// conflicts to exercise the optimistic-concurrency retry.
type fakeStore struct {
	mu         sync.Mutex
	messages   map[int64]*models.ChatMessage
	users      map[int64]*models.User
	activities []string
	nextID     int64

	conflictsRemaining int
	failUpdates        bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: make(map[int64]*models.ChatMessage),
		users:    make(map[int64]*models.User),
	}
}

func copyMessage(m *models.ChatMessage) *models.ChatMessage {
	out := *m
	out.ReadBy = append([]int64(nil), m.ReadBy...)
	if m.Reactions != nil {
		out.Reactions = make(map[string][]int64, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = append([]int64(nil), v...)
		}
	}
	return &out
}

func (s *fakeStore) seedMessage(m *models.ChatMessage) *models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	if m.Version == 0 {
		m.Version = 1
	}
	s.messages[m.ID] = copyMessage(m)
	return m
}

func (s *fakeStore) GetChatMessage(_ context.Context, id int64) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.IsDeleted {
		return nil, database.ErrNotFound
	}
	return copyMessage(m), nil
}

func (s *fakeStore) CreateChatMessage(_ context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	msg.Version = 1
	msg.SentAt = time.Now().UTC()
	if len(msg.ReadBy) == 0 {
		msg.ReadBy = []int64{msg.UserID}
	}
	s.messages[msg.ID] = copyMessage(msg)
	return copyMessage(msg), nil
}

func (s *fakeStore) UpdateChatMessageState(_ context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdates {
		return errors.New("update failed")
	}
	if s.conflictsRemaining > 0 {
		s.conflictsRemaining--
		current := s.messages[msg.ID]
		if current != nil {
			current.Version++
		}
		return database.ErrVersionConflict
	}
	current, ok := s.messages[msg.ID]
	if !ok {
		return database.ErrNotFound
	}
	if current.Version != msg.Version {
		return database.ErrVersionConflict
	}
	msg.Version++
	s.messages[msg.ID] = copyMessage(msg)
	return nil
}

func (s *fakeStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *fakeStore) CreateActivity(_ context.Context, _, _ int64, activityType string, _ interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, activityType)
	return nil
}

func (s *fakeStore) storedMessage(id int64) *models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil
	}
	return copyMessage(m)
}

func (s *fakeStore) activityTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.activities...)
}

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		SweepInterval:  time.Hour,
		WriteWait:      time.Second,
		SendBuffer:     16,
		MaxMessageSize: 1 << 19,
		InboundRate:    1000,
		InboundBurst:   1000,
	}
}

// startHub runs the hub loop for the duration of the test.
func startHub(t *testing.T, store Store) *Hub {
	t.Helper()
	h := NewHub(testRealtimeConfig(), store)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop")
		}
	})
	return h
}

// addConn registers a fake-backed connection on a trip as a user.
func addConn(t *testing.T, h *Hub, userID, tripID int64) (*Conn, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	c := newConn(ft, h)
	h.register <- c
	waitFor(t, func() bool {
		_, ok := h.registry.Meta(c)
		return ok
	}, "connection was not registered")
	if userID != 0 {
		h.registry.SetUserID(c, userID)
	}
	if tripID != 0 {
		h.registry.SetTripID(c, tripID)
	}
	return c, ft
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// recvFrame pops the next frame queued for a connection.
func recvFrame(t *testing.T, c *Conn) Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return Envelope{}
	}
}

// expectNoFrame asserts a connection's queue stays empty.
func expectNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame: %s", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func frameFor(t *testing.T, eventType EventType, payload interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return frame
}
