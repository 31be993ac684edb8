package index

import "github.com/starford/marksman/internal/models"

// MarkIndex defines the interface for cross-project mark indexing.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type MarkIndex interface {
	ReplaceProject(project string, entries []models.Entry) error
	DeleteProject(project string) error
	Projects() ([]ProjectRow, error)
	MarksInFile(file string) ([]MarkRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies MarkIndex at compile time.
var _ MarkIndex = (*DB)(nil)
