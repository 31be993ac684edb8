// Package transfer exports a MarkSet to a portable file and reconciles an
// imported one into the live set.
package transfer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/starford/marksman/internal/apperr"
	"github.com/starford/marksman/internal/markset"
	"github.com/starford/marksman/internal/models"
	"github.com/starford/marksman/internal/storage"
)

// Strategy selects how an imported set combines with the live one.
type Strategy string

// Import strategies.
const (
	Replace Strategy = "replace"
	Merge   Strategy = "merge"
)

// ParseStrategy parses a strategy name, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case Replace:
		return Replace, nil
	case Merge, "":
		return Merge, nil
	default:
		return "", fmt.Errorf("transfer: unknown strategy %q (want replace or merge)", s)
	}
}

// Metadata summarizes an export.
type Metadata struct {
	TotalMarks  int    `json:"total_marks"`
	ProjectName string `json:"project_name"`
}

// Document is the export file shape: the storage document plus export
// metadata.
type Document struct {
	storage.Document
	ExportedAt string   `json:"exported_at"`
	Metadata   Metadata `json:"metadata"`
}

// Stats reports what an import changed.
type Stats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// Export serializes set with export metadata.
func Export(set *markset.Set, projectRoot string, now time.Time) ([]byte, error) {
	if set.Len() == 0 {
		return nil, apperr.New(apperr.ErrNothingToExport, "No marks to export")
	}
	doc := Document{
		Document: storage.Document{
			Marks:     set.Marks(),
			MarkOrder: set.Names(),
			Version:   storage.FormatVersion,
			SavedAt:   now.UTC().Format(time.RFC3339),
			Project:   projectRoot,
		},
		ExportedAt: now.UTC().Format(time.RFC3339),
		Metadata: Metadata{
			TotalMarks:  set.Len(),
			ProjectName: filepath.Base(projectRoot),
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("transfer: encode: %w", err)
	}
	return data, nil
}

// Decode parses an import payload into a set. Payloads may contain
// comments and trailing commas. A payload without a marks field, or with
// any invalid mark or name, fails with ErrInvalidFormat.
func Decode(data []byte, validator models.NameValidator) (*markset.Set, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidFormat, err, "Invalid import file")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(std, &raw); err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidFormat, err, "Invalid import file")
	}
	if _, ok := raw["marks"]; !ok {
		return nil, apperr.New(apperr.ErrInvalidFormat, "Invalid import file: missing marks field")
	}
	doc, err := storage.DecodeDocument(std)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidFormat, err, "Invalid import file")
	}
	if validator == nil {
		validator = models.DefaultNameValidator{}
	}
	for name := range doc.Marks {
		if err := validator.Validate(name); err != nil {
			return nil, apperr.Wrap(apperr.ErrInvalidFormat, err, "Invalid import file")
		}
	}
	return markset.FromParts(doc.Marks, doc.MarkOrder), nil
}

// Apply combines incoming with live under strategy and returns the new set.
// live is not modified.
//
// Replace returns incoming as is. Merge overwrites the fields of marks whose
// names already exist, keeping their positions, and appends new names in
// incoming order.
func Apply(live, incoming *markset.Set, strategy Strategy) (*markset.Set, Stats) {
	if strategy == Replace {
		out := incoming.Clone()
		return out, Stats{Added: out.Len(), Total: out.Len()}
	}
	out := live.Clone()
	var st Stats
	for _, e := range incoming.Entries() {
		if out.Has(e.Name) {
			st.Updated++
		} else {
			st.Added++
		}
		out.Put(e.Name, e.Mark)
	}
	st.Total = out.Len()
	return out, st
}

// Import decodes data and applies it to live.
func Import(data []byte, strategy Strategy, live *markset.Set, validator models.NameValidator) (*markset.Set, Stats, error) {
	incoming, err := Decode(data, validator)
	if err != nil {
		return nil, Stats{}, err
	}
	out, st := Apply(live, incoming, strategy)
	return out, st, nil
}
