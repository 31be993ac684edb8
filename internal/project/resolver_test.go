package project

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
)

type fakeProbe struct {
	root  string
	ok    bool
	calls atomic.Int32
}

func (p *fakeProbe) Root(_ context.Context, _ string) (string, bool) {
	p.calls.Add(1)
	return p.root, p.ok
}

func mkdirs(t *testing.T, parts ...string) string {
	t.Helper()
	dir := filepath.Join(parts...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_ProbeWins(t *testing.T) {
	base := t.TempDir()
	probe := &fakeProbe{root: "/repo", ok: true}
	r := NewResolver(WithProbe(probe))

	root, err := r.Resolve(context.Background(), base)
	if err != nil {
		t.Fatal(err)
	}
	if root != "/repo" {
		t.Errorf("root = %q, want /repo", root)
	}
}

func TestResolve_MarkerWalkUp(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "go.mod"))
	deep := mkdirs(t, base, "internal", "pkg", "sub")

	r := NewResolver(WithProbe(&fakeProbe{}), WithMarkers([]string{"go.mod"}))
	root, err := r.Resolve(context.Background(), deep)
	if err != nil {
		t.Fatal(err)
	}
	if root != base {
		t.Errorf("root = %q, want %q", root, base)
	}
}

func TestResolve_NearestMarker(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "go.mod"))
	inner := mkdirs(t, base, "tools")
	touch(t, filepath.Join(inner, "package.json"))

	r := NewResolver(WithProbe(nil), WithMarkers([]string{"go.mod", "package.json"}))
	root, _ := r.Resolve(context.Background(), inner)
	if root != inner {
		t.Errorf("root = %q, want nearest %q", root, inner)
	}
}

func TestResolve_FallsBackToWorkingDir(t *testing.T) {
	base := t.TempDir()
	wd := mkdirs(t, base, "wd")
	r := NewResolver(
		WithProbe(nil),
		WithMarkers([]string{"no-such-marker-file"}),
		WithWorkingDir(func() (string, error) { return wd, nil }),
	)
	root, err := r.Resolve(context.Background(), base)
	if err != nil {
		t.Fatal(err)
	}
	if root != wd {
		t.Errorf("root = %q, want %q", root, wd)
	}
}

func TestResolve_EmptyDirUsesWorkingDir(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "go.mod"))
	r := NewResolver(
		WithProbe(nil),
		WithMarkers([]string{"go.mod"}),
		WithWorkingDir(func() (string, error) { return base, nil }),
	)
	root, _ := r.Resolve(context.Background(), "")
	if root != base {
		t.Errorf("root = %q, want %q", root, base)
	}
}

func TestResolve_CacheTTL(t *testing.T) {
	base := t.TempDir()
	now := time.Unix(1000, 0)
	probe := &fakeProbe{root: "/repo", ok: true}
	r := NewResolver(
		WithProbe(probe),
		WithCacheTTL(30*time.Second),
		WithClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	_, _ = r.Resolve(ctx, base)
	_, _ = r.Resolve(ctx, base)
	if n := probe.calls.Load(); n != 1 {
		t.Errorf("probe calls within TTL = %d, want 1", n)
	}

	now = now.Add(31 * time.Second)
	_, _ = r.Resolve(ctx, base)
	if n := probe.calls.Load(); n != 2 {
		t.Errorf("probe calls after TTL = %d, want 2", n)
	}
}

func TestStorageKey(t *testing.T) {
	k := StorageKey("/home/u/project")
	if len(k) != StorageKeyLength {
		t.Fatalf("key length = %d", len(k))
	}
	if k != StorageKey("/home/u/project") {
		t.Error("key not deterministic")
	}
	if k == StorageKey("/home/u/other") {
		t.Error("different roots share a key")
	}
	if got := StorageFileName("/home/u/project"); got != "marksman_"+k+".json" {
		t.Errorf("StorageFileName = %q", got)
	}
}

func TestGitProbe_FindsWorktreeRoot(t *testing.T) {
	base, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := git.PlainInit(base, false); err != nil {
		t.Fatal(err)
	}
	deep := mkdirs(t, base, "cmd", "tool")

	root, ok := GitProbe{}.Root(context.Background(), deep)
	if !ok {
		t.Fatal("expected a repository root")
	}
	if root != base {
		t.Errorf("root = %q, want %q", root, base)
	}
}

func TestGitProbe_OutsideRepository(t *testing.T) {
	base := t.TempDir()
	if root, ok := (GitProbe{}).Root(context.Background(), base); ok {
		t.Errorf("root = %q, want none", root)
	}
}

func TestResolve_GitBeforeMarkers(t *testing.T) {
	base, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := git.PlainInit(base, false); err != nil {
		t.Fatal(err)
	}
	nested := mkdirs(t, base, "tools", "gen")
	touch(t, filepath.Join(nested, "go.mod"))

	r := NewResolver(WithMarkers([]string{"go.mod"}))
	root, err := r.Resolve(context.Background(), nested)
	if err != nil {
		t.Fatal(err)
	}
	if root != base {
		t.Errorf("root = %q, want %q", root, base)
	}
}
