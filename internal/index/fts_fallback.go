//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/marksman/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the marks table.
	return nil
}

func ftsInsert(_ *sql.Tx, _ string, _ models.Entry) error {
	// Columns already live in the marks table; nothing extra to do.
	return nil
}

func ftsDeleteProject(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT project, name, file, line, substr(text, 1, 80)
		FROM marks
		WHERE name LIKE ? OR file LIKE ? OR text LIKE ? OR description LIKE ?
		ORDER BY project, position
		LIMIT ?
	`, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Project, &r.Name, &r.File, &r.Line, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
