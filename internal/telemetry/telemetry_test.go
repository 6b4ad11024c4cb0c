package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/livefeeds/feedwatch/internal/probe"
)

const snapshotJSON = `{
  "lastUpdateTimestamp": 1767225000,
  "lastRunTimestamp": 1767225300,
  "avgUpdateIntervalMins": 10,
  "avgFeedIntervalMins": 5,
  "consecutiveFailures": 2,
  "lastStatus": {"code": 2}
}`

func newTestFetcher(base string) *Fetcher {
	return NewFetcher(base, probe.NewChecker(), 1, time.Second)
}

func TestFetch_DecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed-a.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(snapshotJSON))
	}))
	defer srv.Close()

	snap, err := newTestFetcher(srv.URL).Fetch(context.Background(), "feed-a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.LastUpdateTimestamp != 1767225000 {
		t.Errorf("LastUpdateTimestamp = %d", snap.LastUpdateTimestamp)
	}
	if snap.AvgUpdateIntervalMins != 10 {
		t.Errorf("AvgUpdateIntervalMins = %v", snap.AvgUpdateIntervalMins)
	}
	if snap.LastStatus.Code != ProcessorNoDataUpdate {
		t.Errorf("LastStatus.Code = %d, want %d", snap.LastStatus.Code, ProcessorNoDataUpdate)
	}
}

func TestFetch_MissingSnapshotIsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := newTestFetcher(srv.URL).Fetch(context.Background(), "feed-a"); err == nil {
		t.Error("Fetch succeeded for a 404 snapshot")
	}
}

func TestFetch_MalformedSnapshotIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if _, err := newTestFetcher(srv.URL).Fetch(context.Background(), "feed-a"); err == nil {
		t.Error("Fetch succeeded for a malformed body")
	}
}

func TestFetchAll_AbsentEntitiesAreOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/feed-a.json" {
			w.Write([]byte(snapshotJSON))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	out := newTestFetcher(srv.URL).FetchAll(context.Background(), []string{"feed-a", "feed-b"})
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if out["feed-a"] == nil {
		t.Error("feed-a missing from results")
	}
	if _, ok := out["feed-b"]; ok {
		t.Error("feed-b present despite fetch failure")
	}
}

func TestFetchAll_NoIDs(t *testing.T) {
	out := newTestFetcher("http://127.0.0.1:1").FetchAll(context.Background(), nil)
	if len(out) != 0 {
		t.Errorf("len = %d, want 0", len(out))
	}
}
