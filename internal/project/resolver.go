// Package project resolves the project a file belongs to and derives the
// storage key that partitions persisted marks per project.
package project

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/starford/marksman/internal/checksum"
)

// DefaultCacheTTL bounds how long a resolved root is reused.
const DefaultCacheTTL = 30 * time.Second

// StorageKeyLength is the number of hex characters in a storage key.
const StorageKeyLength = 8

// DefaultMarkers are the files whose presence marks a project root.
var DefaultMarkers = []string{
	".git",
	".hg",
	".svn",
	"package.json",
	"Cargo.toml",
	"go.mod",
	"pyproject.toml",
	"setup.py",
	"composer.json",
	"Gemfile",
	"pom.xml",
	"build.gradle",
	"Makefile",
}

// VcsProbe asks version control for the repository root containing dir.
// ok is false when dir is not inside a repository.
type VcsProbe interface {
	Root(ctx context.Context, dir string) (root string, ok bool)
}

// GitProbe finds the enclosing git worktree by walking up to its .git.
type GitProbe struct{}

// Root implements VcsProbe.
func (GitProbe) Root(_ context.Context, dir string) (string, bool) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", false
	}
	wt, err := repo.Worktree()
	if err != nil {
		// bare repository
		return "", false
	}
	root := wt.Filesystem.Root()
	if root == "" {
		return "", false
	}
	return filepath.Clean(root), true
}

type cacheEntry struct {
	root    string
	expires time.Time
}

// Resolver maps a directory to its project root.
type Resolver struct {
	probe   VcsProbe
	markers []string
	ttl     time.Duration
	getwd   func() (string, error)
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProbe sets the version-control probe. A nil probe skips that step.
func WithProbe(p VcsProbe) Option {
	return func(r *Resolver) { r.probe = p }
}

// WithMarkers overrides the marker-file set.
func WithMarkers(markers []string) Option {
	return func(r *Resolver) {
		if len(markers) > 0 {
			r.markers = markers
		}
	}
}

// WithCacheTTL sets the cache expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithWorkingDir replaces the working-directory fallback.
func WithWorkingDir(getwd func() (string, error)) Option {
	return func(r *Resolver) { r.getwd = getwd }
}

// NewResolver returns a Resolver probing git, then markers, then the
// working directory.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		probe:   GitProbe{},
		markers: DefaultMarkers,
		ttl:     DefaultCacheTTL,
		getwd:   os.Getwd,
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the absolute project root for dir. An empty dir means the
// working directory.
func (r *Resolver) Resolve(ctx context.Context, dir string) (string, error) {
	if dir == "" {
		wd, err := r.getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	now := r.now()
	r.mu.Lock()
	if e, ok := r.cache[abs]; ok && now.Before(e.expires) {
		r.mu.Unlock()
		return e.root, nil
	}
	r.mu.Unlock()

	root, err := r.resolve(ctx, abs)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[abs] = cacheEntry{root: root, expires: now.Add(r.ttl)}
	r.mu.Unlock()
	return root, nil
}

func (r *Resolver) resolve(ctx context.Context, dir string) (string, error) {
	if r.probe != nil {
		if root, ok := r.probe.Root(ctx, dir); ok {
			return root, nil
		}
	}
	if root, ok := FindMarkerRoot(dir, r.markers); ok {
		return root, nil
	}
	wd, err := r.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Abs(wd)
}

// FindMarkerRoot walks upward from dir and returns the first directory that
// contains any of markers.
func FindMarkerRoot(dir string, markers []string) (string, bool) {
	cur := filepath.Clean(dir)
	for {
		for _, m := range markers {
			if _, err := os.Stat(filepath.Join(cur, m)); err == nil {
				return cur, true
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		cur = parent
	}
}

// StorageKey returns the short deterministic hash of a project root.
func StorageKey(root string) string {
	return checksum.Short([]byte(root), StorageKeyLength)
}

// StorageFileName returns the marks file name for a project root.
func StorageFileName(root string) string {
	return "marksman_" + StorageKey(root) + ".json"
}
