// Package storage persists one project's MarkSet to a JSON file.
package storage

import "github.com/starford/marksman/internal/markset"

// Provider is the interface for mark persistence.
type Provider interface {
	// Load reads the persisted set. A missing file yields an empty set and
	// no error. When the file and its backup are both unusable, Load
	// returns an empty set together with an ErrLoadFailed error.
	Load() (*markset.Set, error)
	// Save atomically replaces the persisted set.
	Save(set *markset.Set) error
	// Path returns the file the provider writes to.
	Path() string
}

// Verify *Store satisfies Provider at compile time.
var _ Provider = (*Store)(nil)
