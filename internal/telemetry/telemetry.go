package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/livefeeds/feedwatch/internal/probe"
)

// Processor status codes reported in a snapshot's lastStatus field. These
// are the feed processor's own enumeration, not HTTP statuses.
const (
	ProcessorCritical     = -1
	ProcessorFailure      = 1
	ProcessorNoDataUpdate = 2
	ProcessorAltFailure   = 3
)

// StatusRef is the processor's last-status envelope.
type StatusRef struct {
	Code int `json:"code"`
}

// Snapshot is the feed processor's health record for one entity.
type Snapshot struct {
	// LastUpdateTimestamp is the epoch time of the last successful run that
	// updated the service.
	LastUpdateTimestamp int64 `json:"lastUpdateTimestamp"`

	// LastRunTimestamp is the epoch time of the last run of any outcome.
	LastRunTimestamp int64 `json:"lastRunTimestamp"`

	// AvgUpdateIntervalMins is the average minutes between successful runs.
	AvgUpdateIntervalMins float64 `json:"avgUpdateIntervalMins"`

	// AvgFeedIntervalMins is the average minutes between runs.
	AvgFeedIntervalMins float64 `json:"avgFeedIntervalMins"`

	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastStatus          StatusRef `json:"lastStatus"`
}

// Fetcher retrieves snapshots from the processor's per-entity JSON feed.
type Fetcher struct {
	base    string
	checker *probe.Checker
	retries int
	timeout time.Duration
}

// NewFetcher returns a Fetcher rooted at base; snapshots live at
// <base>/<id>.json.
func NewFetcher(base string, checker *probe.Checker, retries int, timeout time.Duration) *Fetcher {
	return &Fetcher{
		base:    strings.TrimRight(base, "/"),
		checker: checker,
		retries: retries,
		timeout: timeout,
	}
}

// FetchAll fetches snapshots for all ids in parallel. Entities whose fetch
// or decode failed are absent from the returned map.
func (f *Fetcher) FetchAll(ctx context.Context, ids []string) map[string]*Snapshot {
	out := make(map[string]*Snapshot, len(ids))
	if len(ids) == 0 {
		return out
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			snap, err := f.Fetch(ctx, id)
			if err != nil {
				slog.Warn("telemetry: no processor data on record", "entity", id, "err", err)
				return
			}
			mu.Lock()
			out[id] = snap
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}

// Fetch retrieves and decodes the snapshot for a single entity.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*Snapshot, error) {
	target := f.base + "/" + id + ".json"
	res := f.checker.Check(ctx, target, nil, probe.Options{
		Retries: f.retries,
		Timeout: f.timeout,
	})
	if !res.Success {
		return nil, fmt.Errorf("telemetry: fetch %s: %s", id, res.ErrMessage)
	}

	var snap Snapshot
	if err := json.Unmarshal(res.Body, &snap); err != nil {
		return nil, fmt.Errorf("telemetry: decode %s: %w", id, err)
	}
	return &snap, nil
}
