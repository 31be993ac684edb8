package registry

import (
	"log/slog"
	"time"
)

// Scheduler runs fn once after d. The returned function cancels the run if
// it has not started.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

// After implements Scheduler.
func (TimerScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// scheduleSaveLocked replaces any pending save with a new one. Callers hold r.mu.
func (r *Registry) scheduleSaveLocked() {
	r.dirty = true
	if r.cancelPending != nil {
		r.cancelPending()
	}
	r.cancelPending = r.scheduler.After(r.cfg.Debounce, r.flushScheduled)
}

func (r *Registry) flushScheduled() {
	if err := r.save(); err != nil {
		r.logger.Warn("registry: debounced save failed",
			slog.String("project", r.project),
			slog.String("error", err.Error()))
	}
}

// Flush cancels any pending debounced save and writes the current set now.
func (r *Registry) Flush() error {
	return r.save()
}

// save writes the latest in-memory set. saveMu is taken before the snapshot
// so that concurrent saves complete in snapshot order.
func (r *Registry) save() error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	if r.cancelPending != nil {
		r.cancelPending()
		r.cancelPending = nil
	}
	if !r.dirty {
		r.mu.Unlock()
		return nil
	}
	snap := r.set.Clone()
	r.dirty = false
	r.mu.Unlock()

	if err := r.store.Save(snap); err != nil {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
		return err
	}
	r.logger.Debug("registry: saved",
		slog.String("project", r.project),
		slog.Int("marks", snap.Len()))
	return nil
}
