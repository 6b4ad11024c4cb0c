package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestCheck_SuccessFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	out := NewChecker().Check(context.Background(), srv.URL, nil, Options{Retries: 2, Timeout: time.Second})
	if !out.Success {
		t.Fatalf("Success = false: %s", out.ErrMessage)
	}
	if out.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", out.RetryCount)
	}
	if string(out.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", out.Body)
	}
	if out.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want > 0", out.Elapsed)
	}
}

func TestCheck_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	out := NewChecker().Check(context.Background(), srv.URL, nil, Options{Retries: 3, Timeout: time.Second})
	if !out.Success {
		t.Fatalf("Success = false: %s", out.ErrMessage)
	}
	if out.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", out.RetryCount)
	}
}

func TestCheck_DoesNotRetryClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out := NewChecker().Check(context.Background(), srv.URL, nil, Options{Retries: 3, Timeout: time.Second})
	if out.Success {
		t.Fatal("Success = true for 404")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
	if out.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", out.StatusCode)
	}
}

func TestCheck_ExhaustsRetryBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	out := NewChecker().Check(context.Background(), srv.URL, nil, Options{Retries: 2, Timeout: time.Second})
	if out.Success {
		t.Fatal("Success = true after persistent 500s")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, want 3 (first try + 2 retries)", got)
	}
	if out.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", out.RetryCount)
	}
	if out.ErrMessage == "" {
		t.Error("ErrMessage empty on failure")
	}
}

func TestCheck_AppendsQueryOptions(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	params := url.Values{"where": {"1=1"}}
	out := NewChecker().Check(context.Background(), srv.URL, params, Options{
		TryJSON: true,
		Token:   "secret",
		Retries: 1,
		Timeout: time.Second,
	})
	if !out.Success {
		t.Fatalf("Success = false: %s", out.ErrMessage)
	}
	if gotQuery.Get("f") != "json" {
		t.Errorf("f = %q, want json", gotQuery.Get("f"))
	}
	if gotQuery.Get("token") != "secret" {
		t.Errorf("token = %q, want secret", gotQuery.Get("token"))
	}
	if gotQuery.Get("where") != "1=1" {
		t.Errorf("where = %q, want 1=1", gotQuery.Get("where"))
	}
}

func TestCheck_UnreachableHostFoldsIntoOutcome(t *testing.T) {
	out := NewChecker().Check(context.Background(), "http://127.0.0.1:1", nil, Options{
		Retries: 1,
		Timeout: 200 * time.Millisecond,
	})
	if out.Success {
		t.Fatal("Success = true for unreachable host")
	}
	if out.ErrMessage == "" {
		t.Error("ErrMessage empty for unreachable host")
	}
}
