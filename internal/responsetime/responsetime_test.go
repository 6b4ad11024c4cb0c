package responsetime

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestObserve_FirstObservationIsBaseline(t *testing.T) {
	s := newTestStore(t)

	avg, err := s.Observe("feed-a", 2.0, false)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !almostEqual(avg, 2.0) {
		t.Errorf("avg = %v, want 2.0", avg)
	}
}

func TestObserve_AverageExcludesCurrentSample(t *testing.T) {
	s := newTestStore(t)

	s.Observe("feed-a", 2.0, false)
	avg, err := s.Observe("feed-a", 10.0, false)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	// The returned average covers prior observations only.
	if !almostEqual(avg, 2.0) {
		t.Errorf("avg = %v, want 2.0", avg)
	}

	avg, _ = s.Observe("feed-a", 0, true)
	if !almostEqual(avg, 6.0) {
		t.Errorf("avg after two samples = %v, want 6.0", avg)
	}
}

func TestObserve_AccumulatesExactly(t *testing.T) {
	s := newTestStore(t)

	samples := []float64{1.5, 2.5, 3.0, 5.0}
	for _, v := range samples {
		if _, err := s.Observe("feed-a", v, false); err != nil {
			t.Fatalf("Observe(%v): %v", v, err)
		}
	}

	avg, err := s.Observe("feed-a", 0, true)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !almostEqual(avg, 3.0) {
		t.Errorf("avg = %v, want 3.0", avg)
	}
}

func TestObserve_SkipWriteLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	avg, err := s.Observe("feed-a", 4.0, true)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !almostEqual(avg, 4.0) {
		t.Errorf("avg = %v, want 4.0", avg)
	}
	if _, err := os.Stat(filepath.Join(dir, "feed-a.json")); !os.IsNotExist(err) {
		t.Error("record file written despite skipWrite")
	}
}

func TestObserve_SkipWriteDoesNotAdvanceAccumulator(t *testing.T) {
	s := newTestStore(t)

	s.Observe("feed-a", 2.0, false)
	s.Observe("feed-a", 100.0, true)

	avg, _ := s.Observe("feed-a", 0, true)
	if !almostEqual(avg, 2.0) {
		t.Errorf("avg = %v, want 2.0 (skipped sample must not count)", avg)
	}
}

func TestObserve_EntitiesAreIndependent(t *testing.T) {
	s := newTestStore(t)

	s.Observe("feed-a", 1.0, false)
	s.Observe("feed-b", 9.0, false)

	avgA, _ := s.Observe("feed-a", 0, true)
	avgB, _ := s.Observe("feed-b", 0, true)
	if !almostEqual(avgA, 1.0) || !almostEqual(avgB, 9.0) {
		t.Errorf("avgA = %v, avgB = %v, want 1.0 and 9.0", avgA, avgB)
	}
}
