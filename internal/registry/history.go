package registry

import (
	"time"

	"github.com/starford/marksman/internal/models"
)

// Deletion is a removed mark kept for undo.
type Deletion struct {
	Name      string      `json:"name"`
	Mark      models.Mark `json:"mark"`
	DeletedAt time.Time   `json:"deleted_at"`
}

// history is a bounded ring of recent deletions. The oldest entry is
// evicted when full.
type history struct {
	buf   []Deletion
	start int
	n     int
}

func newHistory(size int) *history {
	if size <= 0 {
		return &history{}
	}
	return &history{buf: make([]Deletion, size)}
}

func (h *history) push(d Deletion) {
	if len(h.buf) == 0 {
		return
	}
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = d
		h.n++
		return
	}
	h.buf[h.start] = d
	h.start = (h.start + 1) % len(h.buf)
}

// pop removes and returns the most recent deletion.
func (h *history) pop() (Deletion, bool) {
	if h.n == 0 {
		return Deletion{}, false
	}
	i := (h.start + h.n - 1) % len(h.buf)
	d := h.buf[i]
	h.buf[i] = Deletion{}
	h.n--
	return d, true
}

// list returns deletions newest first.
func (h *history) list() []Deletion {
	out := make([]Deletion, 0, h.n)
	for k := h.n - 1; k >= 0; k-- {
		out = append(out, h.buf[(h.start+k)%len(h.buf)])
	}
	return out
}

// UndoLastDeletion restores the most recently deleted mark at the end of the
// order. If its name has been reused meanwhile, a numeric suffix is added.
// ok is false when there is nothing to undo.
func (r *Registry) UndoLastDeletion() (name string, ok bool, err error) {
	r.mu.Lock()
	d, found := r.history.pop()
	if !found {
		r.mu.Unlock()
		return "", false, nil
	}
	if r.set.Len() >= r.cfg.MaxMarks {
		r.history.push(d)
		r.mu.Unlock()
		return "", false, r.limitError()
	}
	name = r.uniqueNameLocked(d.Name)
	r.set.Append(name, d.Mark)
	r.scheduleSaveLocked()
	r.mu.Unlock()

	r.emit(Event{Kind: EventRestored, Name: name})
	return name, true, nil
}

// Deletions returns the undo history, newest first.
func (r *Registry) Deletions() []Deletion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.list()
}
