package responsetime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is the on-file accumulator for one entity. The average is always
// ElapsedSums / ElapsedCount once the record exists.
type Record struct {
	ID           string  `json:"id"`
	ElapsedSums  float64 `json:"elapsed_sums"`
	ElapsedCount int     `json:"elapsed_count"`
}

// Store persists records under one directory, one <id>.json per entity.
type Store struct {
	dir string
}

// NewStore ensures dir exists and returns a Store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("responsetime: ensure directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Observe folds a newly measured elapsed time (seconds) into the entity's
// record and returns the rolling average to use for this tick.
//
// With no record on file the observation itself is the baseline average.
// skipWrite suppresses persistence only; the returned average is unaffected.
func (s *Store) Observe(id string, elapsed float64, skipWrite bool) (float64, error) {
	path := s.path(id)

	rec, exists, err := s.load(path)
	if err != nil {
		return elapsed, err
	}

	if !exists {
		if !skipWrite {
			err = s.save(path, Record{ID: id, ElapsedSums: elapsed, ElapsedCount: 1})
		}
		return elapsed, err
	}

	avg := rec.ElapsedSums / float64(rec.ElapsedCount)
	if !skipWrite {
		err = s.save(path, Record{
			ID:           id,
			ElapsedSums:  rec.ElapsedSums + elapsed,
			ElapsedCount: rec.ElapsedCount + 1,
		})
	}
	return avg, err
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) load(path string) (Record, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("responsetime: read %s: %w", path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("responsetime: parse %s: %w", path, err)
	}
	if rec.ElapsedCount < 1 {
		return Record{}, false, fmt.Errorf("responsetime: %s has no observations", path)
	}
	return rec, true, nil
}

func (s *Store) save(path string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("responsetime: encode: %w", err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("responsetime: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("responsetime: replace %s: %w", path, err)
	}
	return nil
}
