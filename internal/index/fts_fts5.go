//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/marksman/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS marks_fts USING fts5(
			project UNINDEXED,
			name,
			file,
			text,
			description,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, project string, e models.Entry) error {
	_, err := tx.Exec(`INSERT INTO marks_fts (project, name, file, text, description) VALUES (?, ?, ?, ?, ?)`,
		project, e.Name, e.Mark.File, e.Mark.Text, e.Mark.Description)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsDeleteProject(tx *sql.Tx, project string) {
	_, _ = tx.Exec(`DELETE FROM marks_fts WHERE project = ?`, project)
}

// Search performs an FTS5 full-text search and returns matching marks with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.project,
		       f.name,
		       m.file,
		       m.line,
		       snippet(marks_fts, 3, '<b>', '</b>', '...', 16)
		FROM marks_fts f
		JOIN marks m ON m.project = f.project AND m.name = f.name
		WHERE marks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
