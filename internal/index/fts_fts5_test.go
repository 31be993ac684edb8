//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"

	"github.com/starford/marksman/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM marks_fts`).Scan(&count); err != nil {
		t.Fatalf("marks_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	if err := db.ReplaceProject("/p", []models.Entry{
		entry(1, "decode", "/p/codec.go", 12, "func decodeFrame(buf []byte) (Frame, error) {"),
	}); err != nil {
		t.Fatalf("ReplaceProject: %v", err)
	}

	results, err := db.Search("decodeFrame", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if !strings.Contains(results[0].Snippet, "<b>") {
		t.Errorf("snippet missing highlight: %q", results[0].Snippet)
	}
}

func TestFTS5_ReplaceClearsOldRows(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceProject("/p", []models.Entry{entry(1, "old", "/p/a.go", 1, "legacy handler")})
	_ = db.ReplaceProject("/p", []models.Entry{entry(1, "new", "/p/a.go", 1, "fresh handler")})

	results, err := db.Search("legacy", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("stale fts rows: %+v", results)
	}
}
