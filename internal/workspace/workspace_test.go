package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/marksman/internal/models"
	"github.com/starford/marksman/internal/project"
	"github.com/starford/marksman/internal/registry"
	"github.com/starford/marksman/internal/storage"
	"github.com/starford/marksman/internal/testutil"
	"github.com/starford/marksman/internal/workspace"
)

func addMark(t *testing.T, reg *registry.Registry, name, file string, line int) {
	t.Helper()
	if _, err := reg.Add(registry.AddRequest{Name: &name, Location: locationOf(file, line)}); err != nil {
		t.Fatalf("Add(%q): %v", name, err)
	}
}

func TestForPath_FileAndDirShareRegistry(t *testing.T) {
	m, _, _ := testutil.TestManager(t)
	root := testutil.TestProject(t)
	src := testutil.WriteSource(t, root, "pkg/a.go", "package pkg")
	ctx := context.Background()

	byFile, err := m.ForPath(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	byDir, err := m.ForPath(ctx, filepath.Join(root, "pkg"))
	if err != nil {
		t.Fatal(err)
	}
	byRoot, err := m.ForPath(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if byFile != byDir || byDir != byRoot {
		t.Error("expected a single cached registry for the project")
	}
	if byFile.Project() != root {
		t.Errorf("Project = %q, want %q", byFile.Project(), root)
	}
}

func TestForPath_ProjectsAreIsolated(t *testing.T) {
	m, _, _ := testutil.TestManager(t)
	ctx := context.Background()
	a := testutil.TestProject(t)
	b := testutil.TestProject(t)
	srcA := testutil.WriteSource(t, a, "a.go", "package a")

	regA, _ := m.ForPath(ctx, a)
	regB, _ := m.ForPath(ctx, b)
	addMark(t, regA, "only_a", srcA, 1)

	if regB.Count() != 0 {
		t.Errorf("project b sees %d marks", regB.Count())
	}
	got := m.Projects()
	sort.Strings(got)
	want := []string{a, b}
	sort.Strings(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Projects (-want +got):\n%s", diff)
	}
}

func TestFlushAll_PersistsToDataDir(t *testing.T) {
	m, sched, dataDir := testutil.TestManager(t)
	root := testutil.TestProject(t)
	src := testutil.WriteSource(t, root, "main.go", "package main", "", "func main() {}")

	reg, err := m.ForPath(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	addMark(t, reg, "entry", src, 3)
	if sched.Pending() != 1 {
		t.Errorf("pending saves = %d, want 1", sched.Pending())
	}

	path := filepath.Join(dataDir, project.StorageFileName(root))
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file written before flush: %v", err)
	}
	if err := m.FlushAll(); err != nil {
		t.Fatal(err)
	}

	set, err := storage.NewStore(dataDir, root).Load()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"entry"}, set.Names()); diff != "" {
		t.Errorf("saved names (-want +got):\n%s", diff)
	}
}

func TestClose_ReopenLoadsFromDisk(t *testing.T) {
	m, _, _ := testutil.TestManager(t)
	root := testutil.TestProject(t)
	src := testutil.WriteSource(t, root, "main.go", "package main")
	ctx := context.Background()

	reg, _ := m.ForPath(ctx, root)
	addMark(t, reg, "a", src, 1)
	addMark(t, reg, "b", src, 1)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if len(m.Projects()) != 0 {
		t.Error("Close should drop open projects")
	}

	again, err := m.ForPath(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if again == reg {
		t.Error("expected a fresh registry after Close")
	}
	if diff := cmp.Diff([]string{"a", "b"}, again.Names()); diff != "" {
		t.Errorf("reloaded names (-want +got):\n%s", diff)
	}
}

func TestOpen_CorruptFileStartsEmpty(t *testing.T) {
	m, _, dataDir := testutil.TestManager(t)
	root := testutil.TestProject(t)
	path := filepath.Join(dataDir, project.StorageFileName(root))
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := m.Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count = %d, want 0", reg.Count())
	}
}

func TestWithListener_AttachedToEveryProject(t *testing.T) {
	var projects []string
	m, _, _ := testutil.TestManager(t, workspace.WithListener(func(_ *registry.Registry, ev registry.Event) {
		projects = append(projects, ev.Project)
	}))
	ctx := context.Background()
	a := testutil.TestProject(t)
	b := testutil.TestProject(t)
	srcA := testutil.WriteSource(t, a, "a.go", "package a")
	srcB := testutil.WriteSource(t, b, "b.go", "package b")

	regA, _ := m.ForPath(ctx, srcA)
	regB, _ := m.ForPath(ctx, srcB)
	addMark(t, regA, "x", srcA, 1)
	addMark(t, regB, "y", srcB, 1)

	if diff := cmp.Diff([]string{a, b}, projects); diff != "" {
		t.Errorf("event projects (-want +got):\n%s", diff)
	}
}

func locationOf(file string, line int) models.Location {
	return models.Location{File: file, Line: line, Col: 1}
}
