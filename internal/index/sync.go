package index

import (
	"log/slog"

	"github.com/starford/marksman/internal/registry"
)

// Sync mirrors the registry's current marks into the index. A project
// without marks is dropped from the index.
func Sync(db MarkIndex, reg *registry.Registry, logger *slog.Logger) error {
	entries := reg.List()
	if len(entries) == 0 {
		if err := db.DeleteProject(reg.Project()); err != nil {
			return err
		}
		logger.Debug("sync: dropped empty project", slog.String("project", reg.Project()))
		return nil
	}
	if err := db.ReplaceProject(reg.Project(), entries); err != nil {
		return err
	}
	logger.Debug("sync: indexed project",
		slog.String("project", reg.Project()),
		slog.Int("marks", len(entries)))
	return nil
}

// Listener returns a registry listener that re-syncs the project after
// every change. Failures are logged; the index is advisory.
func Listener(db MarkIndex, logger *slog.Logger) registry.Listener {
	return func(reg *registry.Registry, ev registry.Event) {
		if err := Sync(db, reg, logger); err != nil {
			logger.Warn("sync: index update failed",
				slog.String("project", ev.Project),
				slog.String("event", ev.Kind),
				slog.String("error", err.Error()))
		}
	}
}
