// Package workspace owns one registry per project and routes callers to the
// registry of the project their directory or file belongs to.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/marksman/internal/project"
	"github.com/starford/marksman/internal/registry"
	"github.com/starford/marksman/internal/storage"
)

// Resolver maps a directory to a project root.
type Resolver interface {
	Resolve(ctx context.Context, dir string) (string, error)
}

// Settings configure the registries the manager opens.
type Settings struct {
	DataDir  string
	AutoSave bool
	Backup   bool
	Registry registry.Config
}

// Manager lazily opens and caches project registries.
type Manager struct {
	resolver  Resolver
	settings  Settings
	logger    *slog.Logger
	listeners []registry.Listener
	regOpts   []registry.Option

	mu         sync.Mutex
	registries map[string]*registry.Registry
}

// Option configures a Manager.
type Option func(*Manager)

// WithListener adds a listener to every registry the manager opens.
func WithListener(l registry.Listener) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, l) }
}

// WithRegistryOptions passes extra options to every registry.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(m *Manager) { m.regOpts = append(m.regOpts, opts...) }
}

// NewManager creates a Manager.
func NewManager(resolver Resolver, settings Settings, logger *slog.Logger, opts ...Option) *Manager {
	if resolver == nil {
		resolver = project.NewResolver()
	}
	m := &Manager{
		resolver:   resolver,
		settings:   settings,
		logger:     logger,
		registries: make(map[string]*registry.Registry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ForPath returns the registry of the project containing path, which may be
// a file or a directory. An empty path means the working directory.
func (m *Manager) ForPath(ctx context.Context, path string) (*registry.Registry, error) {
	dir := path
	if path != "" {
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			dir = filepath.Dir(path)
		}
	}
	root, err := m.resolver.Resolve(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve project: %w", err)
	}
	return m.Open(root)
}

// Open returns the cached registry for root, loading it on first use. A
// corrupt marks file is logged and the project starts empty.
func (m *Manager) Open(root string) (*registry.Registry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reg, ok := m.registries[root]; ok {
		return reg, nil
	}

	store := storage.NewStore(m.settings.DataDir, root,
		storage.WithAutoSave(m.settings.AutoSave),
		storage.WithBackup(m.settings.Backup),
		storage.WithLogger(m.logger),
	)

	opts := []registry.Option{
		registry.WithConfig(m.settings.Registry),
		registry.WithLogger(m.logger),
	}
	for _, l := range m.listeners {
		opts = append(opts, registry.WithListener(l))
	}
	opts = append(opts, m.regOpts...)

	reg, err := registry.Open(root, store, opts...)
	if err != nil {
		m.logger.Warn("workspace: project loaded empty after error",
			slog.String("project", root),
			slog.String("path", store.Path()),
			slog.String("error", err.Error()))
	}
	m.registries[root] = reg
	m.logger.Info("workspace: project opened",
		slog.String("project", root),
		slog.String("path", store.Path()),
		slog.Int("marks", reg.Count()))
	return reg, nil
}

// Projects returns the roots of every open project.
func (m *Manager) Projects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.registries))
	for root := range m.registries {
		out = append(out, root)
	}
	return out
}

// FlushAll writes every open project.
func (m *Manager) FlushAll() error {
	m.mu.Lock()
	regs := make([]*registry.Registry, 0, len(m.registries))
	for _, r := range m.registries {
		regs = append(regs, r)
	}
	m.mu.Unlock()

	var errs []error
	for _, r := range regs {
		if err := r.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes and tears down every open project. Files stay on disk.
func (m *Manager) Close() error {
	m.mu.Lock()
	regs := m.registries
	m.registries = make(map[string]*registry.Registry)
	m.mu.Unlock()

	var errs []error
	for root, r := range regs {
		if err := r.Close(); err != nil {
			m.logger.Error("workspace: flush on close failed",
				slog.String("project", root),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
