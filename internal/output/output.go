package output

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/livefeeds/feedwatch/internal/catalog"
	"github.com/livefeeds/feedwatch/internal/usage"
)

// ItemStatus is one entity's reduced public projection inside status.json.
type ItemStatus struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Snippet        string                 `json:"snippet"`
	Comments       []catalog.AdminComment `json:"comments"`
	LastUpdateTime int64                  `json:"lastUpdateTime"`
	UpdateRate     float64                `json:"updateRate"`
	FeatureCount   int                    `json:"featureCount"`
	Usage          usage.Stats            `json:"usage"`
	Status         catalog.Ref            `json:"status"`
}

// Document is the whole status.json payload.
type Document struct {
	StatusPreparedOn int64        `json:"statusPreparedOn"`
	Items            []ItemStatus `json:"items"`
}

// Find returns the item entry for id, if present.
func (d *Document) Find(id string) (ItemStatus, bool) {
	if d == nil {
		return ItemStatus{}, false
	}
	for _, it := range d.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ItemStatus{}, false
}

// Load reads the document at path. A missing file returns (nil, nil): the
// first tick has no previous run to seed from.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("output: read %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("output: parse %s: %w", path, err)
	}
	return &doc, nil
}

// Save writes the document to path via a temp file and rename so a crashed
// tick never leaves a truncated status.json behind.
func Save(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("output: encode: %w", err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("output: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("output: replace %s: %w", path, err)
	}
	return nil
}
