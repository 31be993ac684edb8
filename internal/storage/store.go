package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/starford/marksman/internal/apperr"
	"github.com/starford/marksman/internal/markset"
	"github.com/starford/marksman/internal/project"
)

// Store binds one project's MarkSet to <dataDir>/marksman_<key>.json.
type Store struct {
	path     string
	project  string
	autoSave bool
	backup   bool
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithAutoSave enables or disables writes. Disabled stores treat Save as a
// successful no-op.
func WithAutoSave(on bool) StoreOption {
	return func(s *Store) { s.autoSave = on }
}

// WithBackup enables or disables the .backup copy taken before each write.
func WithBackup(on bool) StoreOption {
	return func(s *Store) { s.backup = on }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the time source used for saved_at.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store for the project rooted at projectRoot.
func NewStore(dataDir, projectRoot string, opts ...StoreOption) *Store {
	s := &Store{
		path:     filepath.Join(dataDir, project.StorageFileName(projectRoot)),
		project:  projectRoot,
		autoSave: true,
		backup:   true,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the primary file path.
func (s *Store) Path() string { return s.path }

func (s *Store) backupPath() string { return s.path + ".backup" }
func (s *Store) tmpPath() string    { return s.path + ".tmp" }

// Load reads the persisted set, recovering from the backup once when the
// primary file is corrupt.
func (s *Store) Load() (*markset.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		// First use, or unreadable: start empty.
		return markset.New(), nil
	}
	set, decodeErr := Decode(data)
	if decodeErr == nil {
		return set, nil
	}

	s.logger.Warn("storage: marks file corrupt, trying backup",
		slog.String("path", s.path),
		slog.String("error", decodeErr.Error()))

	if err := s.restoreBackup(); err != nil {
		s.logger.Warn("storage: backup restore failed",
			slog.String("path", s.backupPath()),
			slog.String("error", err.Error()))
		return markset.New(), apperr.Wrap(apperr.ErrLoadFailed, decodeErr, "Failed to load marks from %s", s.path)
	}

	data, err = os.ReadFile(s.path)
	if err != nil {
		return markset.New(), apperr.Wrap(apperr.ErrLoadFailed, err, "Failed to load marks from %s", s.path)
	}
	set, err = Decode(data)
	if err != nil {
		return markset.New(), apperr.Wrap(apperr.ErrLoadFailed, err, "Failed to load marks from %s", s.path)
	}
	s.logger.Info("storage: marks restored from backup", slog.String("path", s.path))
	return set, nil
}

// Save writes set via <file>.tmp and an atomic rename, after copying the
// previous file to <file>.backup.
func (s *Store) Save(set *markset.Set) error {
	if !s.autoSave {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	if s.backup {
		if err := s.writeBackup(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("storage: backup failed",
				slog.String("path", s.backupPath()),
				slog.String("error", err.Error()))
		}
	}

	data, err := Encode(set, s.project, s.now())
	if err != nil {
		return apperr.Wrap(apperr.ErrSaveFailed, err, "Failed to save marks to %s", s.path)
	}

	if err := s.writeAtomic(data); err != nil {
		if !s.primaryValid() {
			if rerr := s.restoreBackup(); rerr != nil {
				s.logger.Warn("storage: backup restore after failed save",
					slog.String("path", s.path),
					slog.String("error", rerr.Error()))
			}
		}
		return apperr.Wrap(apperr.ErrSaveFailed, err, "Failed to save marks to %s", s.path)
	}
	return nil
}

// writeAtomic writes data to the tmp sibling, syncs it and renames it over
// the primary path.
func (s *Store) writeAtomic(data []byte) error {
	tmpName := s.tmpPath()
	tmp, err := os.OpenFile(tmpName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := atomic.ReplaceFile(tmpName, s.path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// writeBackup copies the current primary file to the backup path. A
// primary that does not decode is not copied, so a good backup survives.
func (s *Store) writeBackup() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if _, err := Decode(data); err != nil {
		return fmt.Errorf("storage: primary unusable, backup kept: %w", err)
	}
	return atomic.WriteFile(s.backupPath(), bytes.NewReader(data))
}

// restoreBackup copies a decodable backup over the primary file.
func (s *Store) restoreBackup() error {
	data, err := os.ReadFile(s.backupPath())
	if err != nil {
		return fmt.Errorf("storage: read backup: %w", err)
	}
	if _, err := Decode(data); err != nil {
		return fmt.Errorf("storage: backup unusable: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("storage: restore backup: %w", err)
	}
	return nil
}

func (s *Store) primaryValid() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	_, err = Decode(data)
	return err == nil
}
