package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/marksman/internal/markset"
	"github.com/starford/marksman/internal/models"
)

// FormatVersion is written into every saved file.
const FormatVersion = "1.0"

// Document is the on-disk shape of a marks file.
type Document struct {
	Marks     map[string]models.Mark `json:"marks"`
	MarkOrder []string               `json:"mark_order"`
	Version   string                 `json:"version,omitempty"`
	SavedAt   string                 `json:"saved_at,omitempty"`
	Project   string                 `json:"project,omitempty"`
}

// Encode serializes set into the canonical file shape.
func Encode(set *markset.Set, project string, now time.Time) ([]byte, error) {
	doc := Document{
		Marks:     set.Marks(),
		MarkOrder: set.Names(),
		Version:   FormatVersion,
		SavedAt:   now.UTC().Format(time.RFC3339),
		Project:   project,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	return data, nil
}

// Decode parses a marks file in either the canonical
// {"marks": {...}, "mark_order": [...]} shape or the legacy shape where the
// top-level object is the marks mapping. Every mark is validated; one bad
// mark fails the whole decode. The returned set is reconciled so its order
// mirrors its marks.
func Decode(data []byte) (*markset.Set, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return markset.FromParts(doc.Marks, doc.MarkOrder), nil
}

// DecodeDocument normalizes data into a Document without reconciling order.
func DecodeDocument(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("storage: parse: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("storage: parse: top-level value is not an object")
	}

	var doc Document
	if canonicalShape(raw) {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("storage: parse: %w", err)
		}
		if doc.Marks == nil {
			return nil, fmt.Errorf("storage: parse: marks is not an object")
		}
	} else {
		doc.Marks = make(map[string]models.Mark, len(raw))
		for name, msg := range raw {
			var m models.Mark
			if err := json.Unmarshal(msg, &m); err != nil {
				return nil, fmt.Errorf("storage: parse legacy mark %q: %w", name, err)
			}
			doc.Marks[name] = m
		}
	}

	for name, m := range doc.Marks {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("storage: invalid mark %q: %w", name, err)
		}
	}
	return &doc, nil
}

// canonicalShape reports whether raw is a {"marks": ..., "mark_order": ...}
// document rather than a legacy mapping that happens to hold a mark named
// "marks". Without mark_order, "marks" must be an object of objects.
func canonicalShape(raw map[string]json.RawMessage) bool {
	marks, ok := raw["marks"]
	if !ok {
		return false
	}
	if _, ok := raw["mark_order"]; ok {
		return true
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(marks, &inner); err != nil || inner == nil {
		return false
	}
	for _, v := range inner {
		if b := bytes.TrimSpace(v); len(b) == 0 || b[0] != '{' {
			return false
		}
	}
	return true
}
