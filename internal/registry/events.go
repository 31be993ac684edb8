package registry

// Event kinds.
const (
	EventAdded    = "added"
	EventDeleted  = "deleted"
	EventRenamed  = "renamed"
	EventMoved    = "moved"
	EventCleared  = "cleared"
	EventImported = "imported"
	EventRestored = "restored"
)

// Event describes a committed change to a project's marks.
type Event struct {
	Kind    string `json:"kind"`
	Project string `json:"project"`
	Name    string `json:"name,omitempty"`
	OldName string `json:"old_name,omitempty"`
}

// Listener is called after a mutation, outside the registry lock.
type Listener func(reg *Registry, ev Event)

func (r *Registry) emit(ev Event) {
	ev.Project = r.project
	for _, l := range r.listeners {
		l(r, ev)
	}
}
