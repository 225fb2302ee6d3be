// Package models defines the form definitions the proof service reads.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Form is a published form definition. Definition is the raw form-builder
// schema ("components" tree) the mapping extractor walks.
type Form struct {
	ID         int64          `json:"id"`
	Slug       string         `json:"slug"`
	Name       string         `json:"name"`
	Definition map[string]any `json:"definition"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// DisplayName is the name used in proof requests, falling back to the slug
// and then the id for unnamed forms.
func (f *Form) DisplayName() string {
	if name := strings.TrimSpace(f.Name); name != "" {
		return name
	}
	if f.Slug != "" {
		return f.Slug
	}
	return fmt.Sprintf("form %d", f.ID)
}

// DecodeDefinition parses a stored JSON definition. An empty or null
// document yields an empty definition.
func DecodeDefinition(raw []byte) (map[string]any, error) {
	def := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return def, nil
	}
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode form definition: %w", err)
	}
	if def == nil {
		def = map[string]any{}
	}
	return def, nil
}
