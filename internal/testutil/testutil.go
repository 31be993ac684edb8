// Package testutil provides shared test helpers for setting up projects,
// source files and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/marksman/internal/index"
	"github.com/starford/marksman/internal/project"
	"github.com/starford/marksman/internal/registry"
	"github.com/starford/marksman/internal/workspace"
)

// ProjectMarker is the marker file TestProject drops into a project root.
const ProjectMarker = "go.mod"

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "marksman-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestProject creates a temporary project root containing ProjectMarker.
func TestProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ProjectMarker), []byte("module example.com/p\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

// WriteSource writes lines to dir/name and returns the absolute path.
func WriteSource(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Resolver returns a project resolver that skips version control and only
// recognises ProjectMarker.
func Resolver() *project.Resolver {
	return project.NewResolver(
		project.WithProbe(nil),
		project.WithMarkers([]string{ProjectMarker}),
	)
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestManager returns a workspace manager persisting into a temporary data
// directory with saves driven by the returned scheduler.
func TestManager(t *testing.T, opts ...workspace.Option) (*workspace.Manager, *ManualScheduler, string) {
	t.Helper()
	dataDir := t.TempDir()
	sched := &ManualScheduler{}
	cfg := registry.DefaultConfig()
	cfg.TrackAccess = true
	opts = append(opts, workspace.WithRegistryOptions(registry.WithScheduler(sched)))
	m := workspace.NewManager(Resolver(), workspace.Settings{
		DataDir:  dataDir,
		AutoSave: true,
		Backup:   true,
		Registry: cfg,
	}, Logger(), opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m, sched, dataDir
}

// ManualScheduler records scheduled callbacks and runs them on Fire.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*scheduled
}

type scheduled struct {
	fn        func()
	cancelled bool
}

// After implements registry.Scheduler.
func (s *ManualScheduler) After(_ time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &scheduled{fn: fn}
	s.pending = append(s.pending, job)
	return func() {
		s.mu.Lock()
		job.cancelled = true
		s.mu.Unlock()
	}
}

// Pending returns the number of callbacks that have not been cancelled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.pending {
		if !j.cancelled {
			n++
		}
	}
	return n
}

// Fire runs every live callback and clears the queue.
func (s *ManualScheduler) Fire() {
	s.mu.Lock()
	jobs := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, j := range jobs {
		s.mu.Lock()
		live := !j.cancelled
		s.mu.Unlock()
		if live {
			j.fn()
		}
	}
}
