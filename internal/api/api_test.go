// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/tripsync/internal/auth"
	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/database"
	"github.com/tomtom215/tripsync/internal/middleware"
	"github.com/tomtom215/tripsync/internal/models"
	"github.com/tomtom215/tripsync/internal/realtime"
)

type testServer struct {
	srv *httptest.Server
	db  *database.DB
	hub *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Security: config.SecurityConfig{
			JWTSecret:       "0123456789abcdef0123456789abcdef",
			SessionTimeout:  time.Hour,
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Realtime: config.RealtimeConfig{
			SweepInterval:    time.Hour,
			HandshakeTimeout: 5 * time.Second,
			WriteWait:        time.Second,
			SendBuffer:       64,
			MaxMessageSize:   1 << 19,
			InboundRate:      1000,
			InboundBurst:     1000,
		},
	}

	db, err := database.NewInMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sessions, err := auth.NewBadgerSessionStore("")
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	jwt, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	hub := realtime.NewHub(cfg.Realtime, db)
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-hubDone
	})

	handler := NewHandler(db, hub, jwt, sessions, cfg)
	router := NewRouter(handler, middleware.NewAuthenticator(jwt, sessions), cfg)
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, db: db, hub: hub}
}

// doJSON performs a request and decodes the response envelope.
func (ts *testServer) doJSON(t *testing.T, method, path, token string, body interface{}) (int, *models.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response for %s %s: %v", method, path, err)
	}
	return resp.StatusCode, &envelope
}

func decodeData(t *testing.T, envelope *models.APIResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

// signup registers and logs a user in, returning their token and ID.
func (ts *testServer) signup(t *testing.T, username string) (string, int64) {
	t.Helper()
	status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "displayName": username, "password": "swordfish123",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, status)
	}
	status, envelope := ts.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username, "password": "swordfish123",
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d", username, status)
	}
	var login models.LoginResponse
	decodeData(t, envelope, &login)
	if login.Token == "" {
		t.Fatal("login returned empty token")
	}
	return login.Token, login.UserID
}

func (ts *testServer) createTrip(t *testing.T, token, name string) *models.Trip {
	t.Helper()
	status, envelope := ts.doJSON(t, http.MethodPost, "/api/v1/trips", token, map[string]string{
		"name": name, "destination": "Lisbon",
	})
	if status != http.StatusCreated {
		t.Fatalf("create trip: status %d", status)
	}
	var trip models.Trip
	decodeData(t, envelope, &trip)
	return &trip
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	status, envelope := ts.doJSON(t, http.MethodGet, "/api/v1/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if envelope.Status != "success" {
		t.Fatalf("envelope status = %q", envelope.Status)
	}
}

func TestProbeEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/live", "/ready"} {
		if status, _ := ts.doJSON(t, http.MethodGet, path, "", nil); status != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, status)
		}
	}
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	ts := newTestServer(t)
	token, userID := ts.signup(t, "alice")
	if userID == 0 {
		t.Fatal("no user ID from login")
	}

	// Authenticated request works.
	if status, _ := ts.doJSON(t, http.MethodGet, "/api/v1/trips", token, nil); status != http.StatusOK {
		t.Fatalf("list trips: status %d", status)
	}

	// Logout revokes the session; the same token is now rejected.
	if status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/auth/logout", token, nil); status != http.StatusOK {
		t.Fatalf("logout: status %d", status)
	}
	if status, _ := ts.doJSON(t, http.MethodGet, "/api/v1/trips", token, nil); status != http.StatusUnauthorized {
		t.Fatalf("post-logout list trips: status %d, want 401", status)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "carol")
	status, envelope := ts.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "carol", "password": "swordfish123",
	})
	if status != http.StatusConflict {
		t.Fatalf("status = %d, want 409", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "USERNAME_TAKEN" {
		t.Fatalf("error = %+v", envelope.Error)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "dave")
	status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "dave", "password": "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
}

func TestTripLifecycleAndMembership(t *testing.T) {
	ts := newTestServer(t)
	ownerToken, ownerID := ts.signup(t, "owner")
	guestToken, _ := ts.signup(t, "guest")

	trip := ts.createTrip(t, ownerToken, "Surf week")
	if trip.OwnerID != ownerID || len(trip.InviteCode) != 8 {
		t.Fatalf("trip = %+v", trip)
	}

	// Non-members cannot read the trip.
	if status, _ := ts.doJSON(t, http.MethodGet, tripPath(trip.ID), guestToken, nil); status != http.StatusForbidden {
		t.Fatalf("non-member get trip: status %d, want 403", status)
	}

	// Joining by invite code grants access.
	status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/trips/join", guestToken, map[string]string{
		"inviteCode": trip.InviteCode,
	})
	if status != http.StatusOK {
		t.Fatalf("join: status %d", status)
	}
	if status, _ := ts.doJSON(t, http.MethodGet, tripPath(trip.ID), guestToken, nil); status != http.StatusOK {
		t.Fatalf("member get trip: status %d", status)
	}

	// Both members appear on the roster.
	status, envelope := ts.doJSON(t, http.MethodGet, tripPath(trip.ID)+"/members", ownerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("members: status %d", status)
	}
	var members []models.TripMember
	decodeData(t, envelope, &members)
	if len(members) != 2 {
		t.Fatalf("members = %+v, want 2", members)
	}

	// Joining twice is idempotent.
	if status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/trips/join", guestToken, map[string]string{
		"inviteCode": trip.InviteCode,
	}); status != http.StatusOK {
		t.Fatalf("second join: status %d", status)
	}
}

func TestJoinRejectsUnknownInviteCode(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signup(t, "erin")
	status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/trips/join", token, map[string]string{
		"inviteCode": "ZZZZZZZZ",
	})
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
}

func TestGroceryItemsEmitRealtimeEvents(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signup(t, "frank")
	trip := ts.createTrip(t, token, "Camping")

	ws := ts.dialWS(t, token, trip.ID)

	status, envelope := ts.doJSON(t, http.MethodPost, tripPath(trip.ID)+"/grocery", token, map[string]string{
		"name": "marshmallows", "quantity": "2 bags",
	})
	if status != http.StatusCreated {
		t.Fatalf("add item: status %d", status)
	}
	var item models.GroceryItem
	decodeData(t, envelope, &item)
	if item.Name != "marshmallows" {
		t.Fatalf("item = %+v", item)
	}

	env := readEvent(t, ws)
	if env.Type != realtime.EventItemUpdated {
		t.Fatalf("event = %s, want %s", env.Type, realtime.EventItemUpdated)
	}
	if env := readEvent(t, ws); env.Type != realtime.EventNotification {
		t.Fatalf("second event = %s, want %s", env.Type, realtime.EventNotification)
	}

	// Toggling marks the item done and emits again.
	itemPath := tripPath(trip.ID) + "/grocery/" + int64String(item.ID)
	if status, _ := ts.doJSON(t, http.MethodPatch, itemPath, token, map[string]bool{"done": true}); status != http.StatusOK {
		t.Fatalf("toggle: status %d", status)
	}
	if env := readEvent(t, ws); env.Type != realtime.EventItemUpdated {
		t.Fatalf("toggle event = %s", env.Type)
	}
}

func TestExpensesEmitExpenseAdded(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signup(t, "grace")
	trip := ts.createTrip(t, token, "Road trip")
	ws := ts.dialWS(t, token, trip.ID)

	status, _ := ts.doJSON(t, http.MethodPost, tripPath(trip.ID)+"/expenses", token, map[string]interface{}{
		"description": "fuel", "amountCents": 5400, "currency": "EUR",
	})
	if status != http.StatusCreated {
		t.Fatalf("add expense: status %d", status)
	}

	if env := readEvent(t, ws); env.Type != realtime.EventExpenseAdded {
		t.Fatalf("event = %s, want %s", env.Type, realtime.EventExpenseAdded)
	}
}

func TestWebSocketChatMessageRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, aliceID := ts.signup(t, "walice")
	bobToken, _ := ts.signup(t, "wbob")
	trip := ts.createTrip(t, aliceToken, "Ski trip")

	status, _ := ts.doJSON(t, http.MethodPost, "/api/v1/trips/join", bobToken, map[string]string{
		"inviteCode": trip.InviteCode,
	})
	if status != http.StatusOK {
		t.Fatalf("join: status %d", status)
	}

	alice := ts.dialWS(t, aliceToken, trip.ID)
	bob := ts.dialWS(t, bobToken, trip.ID)

	sendEvent(t, alice, realtime.EventChatMessage, map[string]interface{}{
		"tripId": trip.ID, "userId": aliceID, "message": "first lift at nine",
	})

	env := readEvent(t, bob)
	if env.Type != realtime.EventChatMessage {
		t.Fatalf("event = %s, want %s", env.Type, realtime.EventChatMessage)
	}
	var msg models.ChatMessage
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Message != "first lift at nine" || msg.UserID != aliceID {
		t.Fatalf("message = %+v", msg)
	}

	// History is served over REST.
	status, envelope := ts.doJSON(t, http.MethodGet, tripPath(trip.ID)+"/messages", bobToken, nil)
	if status != http.StatusOK {
		t.Fatalf("messages: status %d", status)
	}
	var page struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	decodeData(t, envelope, &page)
	if len(page.Messages) != 1 || page.Messages[0].Message != "first lift at nine" {
		t.Fatalf("history = %+v", page.Messages)
	}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %+v, want 401", resp)
	}
}

// dialWS opens an authenticated socket subscribed to a trip.
func (ts *testServer) dialWS(t *testing.T, token string, tripID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })

	sendEvent(t, ws, realtime.EventJoinTrip, map[string]int64{"tripId": tripID})
	// The probe reply confirms join_trip was processed, so later REST
	// mutations cannot race the subscription.
	sendEvent(t, ws, realtime.EventConnected, map[string]string{})
	if env := readEvent(t, ws); env.Type != realtime.EventConnected {
		t.Fatalf("probe reply = %s, want %s", env.Type, realtime.EventConnected)
	}
	return ws
}

func sendEvent(t *testing.T, ws *websocket.Conn, eventType realtime.EventType, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame, err := json.Marshal(realtime.Envelope{Type: eventType, Payload: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readEvent(t *testing.T, ws *websocket.Conn) realtime.Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var env realtime.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return env
}

func tripPath(id int64) string {
	return "/api/v1/trips/" + int64String(id)
}

func int64String(v int64) string {
	return strconv.FormatInt(v, 10)
}
