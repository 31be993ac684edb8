package storage

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/marksman/internal/apperr"
	"github.com/starford/marksman/internal/markset"
	"github.com/starford/marksman/internal/models"
	"github.com/starford/marksman/internal/project"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	opts = append([]StoreOption{
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	}, opts...)
	return NewStore(t.TempDir(), "/work/project", opts...)
}

func sampleSet(names ...string) *markset.Set {
	s := markset.New()
	for i, n := range names {
		s.Append(n, models.Mark{File: "/work/project/main.go", Line: i + 1, Col: 1, CreatedAt: 1})
	}
	return s
}

func TestStore_Path(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "/work/project")
	want := filepath.Join(dir, "marksman_"+project.StorageKey("/work/project")+".json")
	if s.Path() != want {
		t.Errorf("Path = %q, want %q", s.Path(), want)
	}
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	s := testStore(t)
	set, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Len = %d", set.Len())
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	want := sampleSet("c", "a", "b")
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want.Entries(), got.Entries()); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(s.tmpPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("tmp file left behind: %v", err)
	}
}

func TestStore_SaveCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	s := NewStore(dir, "/work/project", WithLogger(quietLogger()))
	if err := s.Save(sampleSet("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("file missing: %v", err)
	}
}

func TestStore_AutoSaveDisabled(t *testing.T) {
	s := testStore(t, WithAutoSave(false))
	if err := s.Save(sampleSet("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file written with auto-save off: %v", err)
	}
}

func TestStore_BackupWrittenBeforeOverwrite(t *testing.T) {
	s := testStore(t)
	_ = s.Save(sampleSet("first"))
	if _, err := os.Stat(s.backupPath()); !errors.Is(err, os.ErrNotExist) {
		t.Error("backup should not exist after the first save")
	}
	_ = s.Save(sampleSet("second"))

	data, err := os.ReadFile(s.backupPath())
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	backup, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"first"}, backup.Names()); diff != "" {
		t.Errorf("backup content (-want +got):\n%s", diff)
	}
}

func TestStore_BackupDisabled(t *testing.T) {
	s := testStore(t, WithBackup(false))
	_ = s.Save(sampleSet("first"))
	_ = s.Save(sampleSet("second"))
	if _, err := os.Stat(s.backupPath()); !errors.Is(err, os.ErrNotExist) {
		t.Error("backup written while disabled")
	}
}

func TestStore_LoadRecoversFromBackup(t *testing.T) {
	s := testStore(t)
	_ = s.Save(sampleSet("good"))
	_ = s.Save(sampleSet("good", "newer"))

	if err := os.WriteFile(s.Path(), []byte("{corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"good"}, set.Names()); diff != "" {
		t.Errorf("recovered (-want +got):\n%s", diff)
	}

	// The restored file is the primary again.
	data, _ := os.ReadFile(s.Path())
	if _, err := Decode(data); err != nil {
		t.Errorf("primary not restored: %v", err)
	}
}

func TestStore_LoadCorruptWithoutBackup(t *testing.T) {
	s := testStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte(`{"a": {"line": 1}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := s.Load()
	if !errors.Is(err, apperr.ErrLoadFailed) {
		t.Fatalf("err = %v, want ErrLoadFailed", err)
	}
	if set == nil || set.Len() != 0 {
		t.Errorf("expected empty set, got %v", set)
	}
}

func TestStore_CorruptPrimaryDoesNotClobberBackup(t *testing.T) {
	s := testStore(t)
	_ = s.Save(sampleSet("one"))
	_ = s.Save(sampleSet("two"))
	if err := os.WriteFile(s.Path(), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(sampleSet("three")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(s.backupPath())
	backup, err := Decode(data)
	if err != nil {
		t.Fatalf("backup clobbered: %v", err)
	}
	if diff := cmp.Diff([]string{"one"}, backup.Names()); diff != "" {
		t.Errorf("backup (-want +got):\n%s", diff)
	}
}

// occupy puts a non-empty directory at path so no file can be created or
// renamed there.
func occupy(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "keep"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStore_SaveRenameFailure(t *testing.T) {
	s := testStore(t)
	occupy(t, s.Path())

	err := s.Save(sampleSet("a"))
	if !errors.Is(err, apperr.ErrSaveFailed) {
		t.Fatalf("err = %v, want ErrSaveFailed", err)
	}
	if _, err := os.Stat(s.tmpPath()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file left behind: %v", err)
	}
	if info, err := os.Stat(s.Path()); err != nil || !info.IsDir() {
		t.Errorf("target changed: %v", err)
	}
}

func TestStore_SaveFailureKeepsPrimary(t *testing.T) {
	s := testStore(t)
	if err := s.Save(sampleSet("kept")); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(s.Path())
	occupy(t, s.tmpPath())

	if err := s.Save(sampleSet("lost")); !errors.Is(err, apperr.ErrSaveFailed) {
		t.Fatalf("err = %v, want ErrSaveFailed", err)
	}
	after, _ := os.ReadFile(s.Path())
	if diff := cmp.Diff(string(before), string(after)); diff != "" {
		t.Errorf("primary changed (-before +after):\n%s", diff)
	}
}

func TestStore_SaveFailureRestoresBackup(t *testing.T) {
	s := testStore(t)
	_ = s.Save(sampleSet("one"))
	_ = s.Save(sampleSet("one", "two"))
	if err := os.WriteFile(s.Path(), []byte("{corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	occupy(t, s.tmpPath())

	if err := s.Save(sampleSet("three")); !errors.Is(err, apperr.ErrSaveFailed) {
		t.Fatalf("err = %v, want ErrSaveFailed", err)
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	set, err := Decode(data)
	if err != nil {
		t.Fatalf("primary not restored: %v", err)
	}
	if diff := cmp.Diff([]string{"one"}, set.Names()); diff != "" {
		t.Errorf("restored (-want +got):\n%s", diff)
	}
}
