package events_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	eventsfeature "github.com/parishhub/parishhub/internal/app/features/events"
	eventstore "github.com/parishhub/parishhub/internal/app/store/events"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	"github.com/parishhub/parishhub/internal/app/system/broadcast"
	"github.com/parishhub/parishhub/internal/domain/models"
	"github.com/parishhub/parishhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*eventsfeature.Handler, *mongo.Database) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	hub := broadcast.NewHub(zap.NewNop(), nil)
	t.Cleanup(hub.Close)

	return &eventsfeature.Handler{
		Log:    zap.NewNop(),
		Events: eventstore.New(db),
		Users:  userstore.New(db),
		Hub:    hub,
	}, db
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(u models.User) testutil.TestUser {
	return testutil.TestUser{ID: u.ID.Hex(), Email: u.Email, Role: u.Role}
}

func TestCreate(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark", "stmark@example.com", "STMARK01")
	admin := f.CreateChurchAdmin(ctx, "Pastor", "stmark@example.com", church.ID)

	req := testutil.WithUser(jsonRequest(t, "POST", "/", map[string]string{
		"title":    "Harvest Service",
		"time":     "10:00 AM",
		"location": "Main Hall",
		"date":     "2026-10-04",
	}), asUser(admin))

	rec := httptest.NewRecorder()
	h.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body)
	}

	events, err := h.Events.ListByChurch(ctx, church.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1", len(events))
	}
	if events[0].Title != "Harvest Service" {
		t.Errorf("title: got %q", events[0].Title)
	}
}

func TestCreate_BadDate(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark", "stmark@example.com", "STMARK01")
	admin := f.CreateChurchAdmin(ctx, "Pastor", "stmark@example.com", church.ID)

	req := testutil.WithUser(jsonRequest(t, "POST", "/", map[string]string{
		"title": "Harvest Service",
		"date":  "04/10/2026",
	}), asUser(admin))

	rec := httptest.NewRecorder()
	h.HandleCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestList_DefaultsToOwnChurch(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark", "stmark@example.com", "STMARK01")
	other := f.CreateApprovedChurch(ctx, "Grace Chapel", "grace@example.com", "GRACE002")
	member := f.CreateMember(ctx, "Member", "member@example.com", church.ID)

	f.CreateEvent(ctx, church.ID, "Sunday Service", time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC))
	f.CreateEvent(ctx, other.ID, "Grace Picnic", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))

	req := testutil.NewAuthenticatedRequest("GET", "/", asUser(member))
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	var resp struct {
		Events []models.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Fatalf("events: got %d, want only the caller's church", len(resp.Events))
	}
	if resp.Events[0].Title != "Sunday Service" {
		t.Errorf("title: got %q", resp.Events[0].Title)
	}
}

func TestList_ExplicitChurchParam(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark", "stmark@example.com", "STMARK01")
	other := f.CreateApprovedChurch(ctx, "Grace Chapel", "grace@example.com", "GRACE002")
	member := f.CreateMember(ctx, "Member", "member@example.com", church.ID)

	f.CreateEvent(ctx, other.ID, "Grace Picnic", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))

	req := testutil.NewAuthenticatedRequest("GET", "/?church="+other.ID.Hex(), asUser(member))
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	var resp struct {
		Events []models.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Title != "Grace Picnic" {
		t.Error("expected the named church's events")
	}
}

func TestUpdate(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark", "stmark@example.com", "STMARK01")
	admin := f.CreateChurchAdmin(ctx, "Pastor", "stmark@example.com", church.ID)
	ev := f.CreateEvent(ctx, church.ID, "Harvest Service", time.Date(2026, 10, 4, 0, 0, 0, 0, time.UTC))

	req := testutil.WithUser(jsonRequest(t, "PATCH", "/"+ev.ID.Hex(), map[string]string{
		"location": "Garden Grounds",
	}), asUser(admin))
	req = testutil.WithChiURLParam(req, "id", ev.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	got, err := h.Events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.Location != "Garden Grounds" {
		t.Errorf("location: got %q", got.Location)
	}
	if got.Title != "Harvest Service" {
		t.Errorf("unpatched field changed: %q", got.Title)
	}
}

func TestUpdate_OtherChurchNotFound(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark", "stmark@example.com", "STMARK01")
	other := f.CreateApprovedChurch(ctx, "Grace Chapel", "grace@example.com", "GRACE002")
	admin := f.CreateChurchAdmin(ctx, "Grace Admin", "grace@example.com", other.ID)
	ev := f.CreateEvent(ctx, church.ID, "Harvest Service", time.Date(2026, 10, 4, 0, 0, 0, 0, time.UTC))

	req := testutil.WithUser(jsonRequest(t, "PATCH", "/"+ev.ID.Hex(), map[string]string{
		"title": "Takeover",
	}), asUser(admin))
	req = testutil.WithChiURLParam(req, "id", ev.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleUpdate(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSubscriberSeesCreateAndDelete(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark", "stmark@example.com", "STMARK01")
	admin := f.CreateChurchAdmin(ctx, "Pastor", "stmark@example.com", church.ID)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleSubscribe(w, testutil.WithChiURLParam(r, "churchID", church.ID.Hex()))
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	readUntil := func(msgType string) broadcast.Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("no %q message before deadline: %v", msgType, err)
			}
			var msg broadcast.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if msg.Type == msgType {
				return msg
			}
		}
	}

	// Room registration can lag the dial returning, so ping the room until
	// the subscription proves live.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			h.Hub.Publish(church.ID.Hex(), broadcast.EventUpdated, nil)
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
	readUntil(broadcast.EventUpdated)

	req := testutil.WithUser(jsonRequest(t, "POST", "/", map[string]string{
		"title":    "Harvest Service",
		"time":     "10:00 AM",
		"location": "Main Hall",
		"date":     "2026-10-04",
	}), asUser(admin))
	rec := httptest.NewRecorder()
	h.HandleCreate(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d (body %s)", rec.Code, rec.Body)
	}

	msg := readUntil(broadcast.EventNew)
	if msg.Church != church.ID.Hex() {
		t.Errorf("church: got %q, want %q", msg.Church, church.ID.Hex())
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["title"] != "Harvest Service" {
		t.Errorf("payload title: got %v", payload["title"])
	}

	events, err := h.Events.ListByChurch(ctx, church.ID)
	if err != nil || len(events) != 1 {
		t.Fatalf("list: %v (%d events)", err, len(events))
	}
	ev := events[0]

	req = testutil.NewAuthenticatedRequest("DELETE", "/"+ev.ID.Hex(), asUser(admin))
	req = testutil.WithChiURLParam(req, "id", ev.ID.Hex())
	rec = httptest.NewRecorder()
	h.HandleDelete(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: got %d (body %s)", rec.Code, rec.Body)
	}

	msg = readUntil(broadcast.EventDeleted)
	payload, _ = msg.Payload.(map[string]any)
	if payload["id"] != ev.ID.Hex() {
		t.Errorf("payload id: got %v, want %q", payload["id"], ev.ID.Hex())
	}
}

func TestDelete(t *testing.T) {
	h, db := newTestHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	church := f.CreateApprovedChurch(ctx, "St. Mark", "stmark@example.com", "STMARK01")
	admin := f.CreateChurchAdmin(ctx, "Pastor", "stmark@example.com", church.ID)
	ev := f.CreateEvent(ctx, church.ID, "Harvest Service", time.Date(2026, 10, 4, 0, 0, 0, 0, time.UTC))

	req := testutil.NewAuthenticatedRequest("DELETE", "/"+ev.ID.Hex(), asUser(admin))
	req = testutil.WithChiURLParam(req, "id", ev.ID.Hex())

	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	// Deleting again reports not found.
	req = testutil.NewAuthenticatedRequest("DELETE", "/"+ev.ID.Hex(), asUser(admin))
	req = testutil.WithChiURLParam(req, "id", ev.ID.Hex())
	rec = httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}
