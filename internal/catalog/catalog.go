package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Normal is the baseline status code every evaluation starts from.
const Normal = "000"

// Details holds the operator-facing fields attached to one status code.
// Field names map 1:1 to the keys in statusCodes.json.
type Details struct {
	ServiceState string `json:"Service State"`
	FeedState    string `json:"Feed State"`
	Description  string `json:"Description of Condition"`
	Status       string `json:"Status"`
	Comment      string `json:"Comment"`
	Notes        string `json:"Definition/Notes"`
}

// Code pairs a 3-digit status code with its resolved catalog details.
// Details is nil when the code is not present in the catalog.
type Code struct {
	Code    string   `json:"code"`
	Details *Details `json:"statusDetails"`
}

// Ref is the reduced public projection of a status, just the code. This is
// what status.json and downstream consumers see.
type Ref struct {
	Code string `json:"code"`
}

// Catalog is the fixed set of status codes keyed by their 3-digit code.
type Catalog map[string]Details

// Load reads and parses the status-code catalog at path.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read status codes: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: parse status codes: %w", err)
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("catalog: status code file %q is empty", path)
	}
	return c, nil
}

// Resolve returns the Code for key. An unknown key yields a Code with nil
// Details rather than an error; callers decide how to degrade.
func (c Catalog) Resolve(key string) Code {
	if d, ok := c[key]; ok {
		return Code{Code: key, Details: &d}
	}
	return Code{Code: key}
}

// Comment returns the operator-facing comment for key, and whether the key
// exists in the catalog.
func (c Catalog) Comment(key string) (string, bool) {
	d, ok := c[key]
	if !ok {
		return "", false
	}
	return d.Comment, true
}

// AdminComment is one operator-posted note attached to an entity.
type AdminComment struct {
	Comment   string `json:"comment"`
	Timestamp int64  `json:"timestamp"`
}

// Comments maps entity IDs to their posted admin comments.
type Comments map[string][]AdminComment

// LoadComments reads and parses the admin comments file at path.
func LoadComments(path string) (Comments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read comments: %w", err)
	}
	var c Comments
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: parse comments: %w", err)
	}
	return c, nil
}

// For returns the admin comments for an entity, or an empty slice when none
// are on file.
func (c Comments) For(id string) []AdminComment {
	if cs, ok := c[id]; ok {
		return cs
	}
	return []AdminComment{}
}
