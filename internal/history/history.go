package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/livefeeds/feedwatch/internal/catalog"
	"github.com/livefeeds/feedwatch/internal/usage"
)

// EventRecord is one status snapshot appended per tick.
type EventRecord struct {
	// PubDate is the human-readable publication time (RFC1123-style).
	PubDate string `json:"pubDate"`

	// PubEventDate is the tick timestamp in epoch seconds; retention
	// pruning keys off this field.
	PubEventDate int64 `json:"pubEventDate"`

	Title         string                 `json:"title"`
	Snippet       string                 `json:"snippet"`
	Comments      []catalog.AdminComment `json:"comments"`
	LastBuildTime string                 `json:"lastBuildTime"`
	UpdateRate    float64                `json:"updateRate"`
	FeatureCount  int                    `json:"featureCount"`
	Usage         usage.Stats            `json:"usage"`
	Status        catalog.Code           `json:"status"`
}

// Document is one entity's full history file.
type Document struct {
	ID      string        `json:"id"`
	History []EventRecord `json:"history"`
}

// Limits bound a document's size per entity.
type Limits struct {
	// MaxEvents caps the history length after an append.
	MaxEvents int

	// RetentionDays bounds the age of retained events.
	RetentionDays int
}

// Store persists history documents under one directory.
type Store struct {
	dir string
	now func() time.Time // injectable for deterministic tests
}

// NewStore ensures dir exists and returns a Store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: ensure directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Append adds rec to the entity's history, pruning first so the document
// stays within lim. Every tick appends exactly one record; identical
// consecutive records are not deduplicated.
func (s *Store) Append(id string, rec EventRecord, lim Limits) error {
	path := s.path(id)

	doc, err := s.loadOrInit(id, path)
	if err != nil {
		return err
	}

	doc.History = s.prune(doc.History, lim)
	doc.History = append(doc.History, rec)

	return s.save(path, doc)
}

// Load reads the entity's history document. A missing file returns an empty
// document so feed rendering always has something to work from.
func (s *Store) Load(id string) (*Document, error) {
	return s.loadOrInit(id, s.path(id))
}

// prune drops events older than the retention window, then drops from the
// oldest end until there is room for one more record under MaxEvents.
func (s *Store) prune(events []EventRecord, lim Limits) []EventRecord {
	cutoff := s.now().AddDate(0, 0, -lim.RetentionDays)

	kept := events[:0]
	for _, ev := range events {
		if !time.Unix(ev.PubEventDate, 0).Before(cutoff) {
			kept = append(kept, ev)
		}
	}

	if lim.MaxEvents > 0 && len(kept) >= lim.MaxEvents {
		kept = kept[len(kept)-(lim.MaxEvents-1):]
	}
	return kept
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, "status_history_"+id+".json")
}

func (s *Store) loadOrInit(id, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{ID: id}, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("history: parse %s: %w", path, err)
	}
	if doc.ID == "" {
		doc.ID = id
	}
	return &doc, nil
}

func (s *Store) save(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("history: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("history: replace %s: %w", path, err)
	}
	return nil
}
