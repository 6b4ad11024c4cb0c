package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/livefeeds/feedwatch/internal/config"
)

// baseTime is a fixed reference point so all test timings are deterministic.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testEvent() Event {
	return Event{
		EntityID: "feed-a",
		Title:    "Feed A",
		Code:     "500",
		Comment:  "Feed service is down.",
		At:       baseTime,
	}
}

// newTestNotifier wires a notifier at a fixed clock against one target.
func newTestNotifier(t *testing.T, url, targetType string) *Notifier {
	t.Helper()
	t.Setenv("NOTIFY_TEST_URL", url)

	n := New([]config.WebhookConfig{{
		Type:     targetType,
		URLEnv:   "NOTIFY_TEST_URL",
		Cooldown: 15 * time.Minute,
	}})
	n.now = func() time.Time { return baseTime }
	return n
}

func TestStatusChanged_SlackPayload(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, "slack")
	n.StatusChanged(context.Background(), testEvent())

	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	want := "Feed A (feed-a): status 500: Feed service is down."
	if payload["text"] != want {
		t.Errorf("text = %q, want %q", payload["text"], want)
	}
}

func TestStatusChanged_TeamsPayload(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, "teams")
	n.StatusChanged(context.Background(), testEvent())

	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload["@type"] != "MessageCard" {
		t.Errorf("@type = %q, want MessageCard", payload["@type"])
	}
}

func TestStatusChanged_HTTPTargetReceivesRawEvent(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, "http")
	n.StatusChanged(context.Background(), testEvent())

	var got Event
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got.EntityID != "feed-a" || got.Code != "500" {
		t.Errorf("event = %+v", got)
	}
}

func TestStatusChanged_CooldownSuppressesRepeats(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, "slack")

	clock := baseTime
	n.now = func() time.Time { return clock }

	n.StatusChanged(context.Background(), testEvent())
	clock = clock.Add(5 * time.Minute)
	n.StatusChanged(context.Background(), testEvent())

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("deliveries = %d, want 1 within cooldown", got)
	}

	clock = clock.Add(15 * time.Minute)
	n.StatusChanged(context.Background(), testEvent())
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("deliveries = %d, want 2 after cooldown lapsed", got)
	}
}

func TestStatusChanged_CooldownIsPerEntity(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, "slack")

	n.StatusChanged(context.Background(), testEvent())
	other := testEvent()
	other.EntityID = "feed-b"
	n.StatusChanged(context.Background(), other)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("deliveries = %d, want 2 for distinct entities", got)
	}
}

func TestStatusChanged_FailedDeliveryDoesNotStartCooldown(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL, "slack")

	clock := baseTime
	n.now = func() time.Time { return clock }

	n.StatusChanged(context.Background(), testEvent())
	clock = clock.Add(time.Minute)
	n.StatusChanged(context.Background(), testEvent())

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("deliveries = %d, want retry after failed attempt", got)
	}
}

func TestStatusChanged_NoTargetsIsNoOp(t *testing.T) {
	n := New(nil)
	n.StatusChanged(context.Background(), testEvent())
}
