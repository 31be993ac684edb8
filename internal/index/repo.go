package index

import (
	"fmt"
	"time"

	"github.com/starford/marksman/internal/models"
	"github.com/starford/marksman/internal/project"
)

// MarkRow is one indexed mark.
type MarkRow struct {
	Project     string `json:"project"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Col         int    `json:"col"`
	Text        string `json:"text,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProjectRow summarizes one indexed project.
type ProjectRow struct {
	Project    string    `json:"project"`
	StorageKey string    `json:"storage_key"`
	MarkCount  int       `json:"mark_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Project string `json:"project"`
	Name    string `json:"name"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// ReplaceProject swaps every indexed mark of proj for entries within a
// transaction.
func (db *DB) ReplaceProject(proj string, entries []models.Entry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM marks WHERE project = ?`, proj); err != nil {
		return fmt.Errorf("index: clear project: %w", err)
	}
	ftsDeleteProject(tx, proj)

	if len(entries) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO marks (project, name, position, file, line, col, text, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("index: prepare mark insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			m := e.Mark
			if _, err := stmt.Exec(proj, e.Name, e.Index, m.File, m.Line, m.Col, m.Text, m.Description, m.CreatedAt); err != nil {
				return fmt.Errorf("index: insert mark: %w", err)
			}
			if err := ftsInsert(tx, proj, e); err != nil {
				return err
			}
		}
	}

	_, err = tx.Exec(`
		INSERT INTO projects (project, storage_key, mark_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project) DO UPDATE SET
			storage_key = excluded.storage_key,
			mark_count  = excluded.mark_count,
			updated_at  = excluded.updated_at
	`, proj, project.StorageKey(proj), len(entries), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert project: %w", err)
	}

	return tx.Commit()
}

// DeleteProject removes a project and all its marks.
func (db *DB) DeleteProject(proj string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDeleteProject(tx, proj)
	_, _ = tx.Exec(`DELETE FROM marks WHERE project = ?`, proj)
	_, _ = tx.Exec(`DELETE FROM projects WHERE project = ?`, proj)

	return tx.Commit()
}

// Projects returns every indexed project, most recently updated first.
func (db *DB) Projects() ([]ProjectRow, error) {
	rows, err := db.conn.Query(`
		SELECT project, storage_key, mark_count, updated_at
		FROM projects
		ORDER BY updated_at DESC, project
	`)
	if err != nil {
		return nil, fmt.Errorf("index: projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectRow
	for rows.Next() {
		var p ProjectRow
		if err := rows.Scan(&p.Project, &p.StorageKey, &p.MarkCount, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarksInFile returns every indexed mark pointing into file, across
// projects.
func (db *DB) MarksInFile(file string) ([]MarkRow, error) {
	rows, err := db.conn.Query(`
		SELECT project, name, position, file, line, col, text, description
		FROM marks
		WHERE file = ?
		ORDER BY project, position
	`, file)
	if err != nil {
		return nil, fmt.Errorf("index: marks in file: %w", err)
	}
	defer rows.Close()

	var out []MarkRow
	for rows.Next() {
		var r MarkRow
		if err := rows.Scan(&r.Project, &r.Name, &r.Position, &r.File, &r.Line, &r.Col, &r.Text, &r.Description); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
