// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package realtime

import (
	"context"
	"testing"
)

func TestRegistryMetadataLifecycle(t *testing.T) {
	r := NewRegistry()
	c := &Conn{}

	if _, ok := r.Meta(c); ok {
		t.Fatal("unregistered connection has metadata")
	}
	// Mutations on unknown connections are no-ops.
	r.SetAlive(c, false)
	r.SetUserID(c, 1)
	r.SetTripID(c, 2)
	if r.Len() != 0 {
		t.Fatalf("len = %d, want 0", r.Len())
	}

	r.Register(c)
	meta, ok := r.Meta(c)
	if !ok {
		t.Fatal("registered connection has no metadata")
	}
	if !meta.Alive || meta.UserID != 0 || meta.TripID != 0 {
		t.Fatalf("fresh meta = %+v, want alive with zero ids", meta)
	}

	r.SetUserID(c, 11)
	r.SetTripID(c, 22)
	r.SetAlive(c, false)
	meta, _ = r.Meta(c)
	if meta.Alive || meta.UserID != 11 || meta.TripID != 22 {
		t.Fatalf("meta = %+v", meta)
	}

	r.Unregister(c)
	if _, ok := r.Meta(c); ok {
		t.Fatal("metadata survived unregister")
	}
	r.Unregister(c) // second unregister is a no-op
}

func TestSweepGivesFreshConnectionsAGracePeriod(t *testing.T) {
	h := NewHub(testRealtimeConfig(), newFakeStore())
	ft := &fakeTransport{}
	c := newConn(ft, h)
	h.registry.Register(c)

	h.sweepLiveness()
	if _, ok := h.registry.Meta(c); !ok {
		t.Fatal("fresh connection evicted on first sweep")
	}
	if ft.pingCount() != 1 {
		t.Fatalf("pings = %d, want 1", ft.pingCount())
	}
	if meta, _ := h.registry.Meta(c); meta.Alive {
		t.Fatal("sweep did not clear the alive flag")
	}
}

func TestSweepEvictsConnectionThatMissedItsPing(t *testing.T) {
	h := NewHub(testRealtimeConfig(), newFakeStore())
	responsive := newConn(&fakeTransport{}, h)
	silent := newConn(&fakeTransport{}, h)
	h.registry.Register(responsive)
	h.registry.Register(silent)

	h.sweepLiveness()
	// Only one of the two answers its ping.
	h.registry.SetAlive(responsive, true)
	h.sweepLiveness()

	if _, ok := h.registry.Meta(responsive); !ok {
		t.Fatal("responsive connection evicted")
	}
	if _, ok := h.registry.Meta(silent); ok {
		t.Fatal("silent connection survived two sweeps")
	}
	if !silent.ws.(*fakeTransport).isClosed() {
		t.Fatal("evicted connection's transport left open")
	}
}

func TestSweepEvictsImmediatelyWhenPingCannotBeWritten(t *testing.T) {
	h := NewHub(testRealtimeConfig(), newFakeStore())
	ft := &fakeTransport{failPing: true}
	c := newConn(ft, h)
	h.registry.Register(c)

	h.sweepLiveness()

	if _, ok := h.registry.Meta(c); ok {
		t.Fatal("connection with dead socket survived the sweep")
	}
	if !ft.isClosed() {
		t.Fatal("transport left open after failed ping")
	}
}

func TestBroadcastEvictsSlowConsumerWithoutBlockingOthers(t *testing.T) {
	store := newFakeStore()
	h := startHub(t, store)
	healthy, _ := addConn(t, h, 1, 10)
	slow, slowFT := addConn(t, h, 2, 10)

	// Fill the slow consumer's buffer so the next fan-out cannot enqueue.
	for i := 0; i < cap(slow.send); i++ {
		if !slow.enqueue([]byte("{}")) {
			t.Fatal("failed to fill send buffer")
		}
	}

	h.BroadcastToTrip(10, EventTypingIndicator, TypingIndicatorPayload{TripID: 10, UserID: 1})

	if env := recvFrame(t, healthy); env.Type != EventTypingIndicator {
		t.Fatalf("healthy frame type = %s", env.Type)
	}
	waitFor(t, func() bool {
		_, ok := h.registry.Meta(slow)
		return !ok
	}, "slow consumer was not evicted")
	waitFor(t, slowFT.isClosed, "slow consumer's transport was not closed")
}

func TestHubShutdownClosesAllConnections(t *testing.T) {
	store := newFakeStore()
	h := NewHub(testRealtimeConfig(), store)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		_ = h.RunWithContext(ctx)
	}()

	ft := &fakeTransport{}
	c := newConn(ft, h)
	h.register <- c
	waitFor(t, func() bool {
		_, ok := h.registry.Meta(c)
		return ok
	}, "connection was not registered")

	cancel()
	<-done
	if h.registry.Len() != 0 {
		t.Fatalf("registry len = %d after shutdown, want 0", h.registry.Len())
	}
	if c.enqueue([]byte("{}")) {
		t.Fatal("send channel accepted a frame after shutdown")
	}
}

func TestEnqueueAfterShutdownIsSafe(t *testing.T) {
	h := NewHub(testRealtimeConfig(), newFakeStore())
	c := newConn(&fakeTransport{}, h)
	c.shutdownSend()
	if c.enqueue([]byte("{}")) {
		t.Fatal("enqueue succeeded on a shut down connection")
	}
	c.shutdownSend() // second shutdown must not panic
}
