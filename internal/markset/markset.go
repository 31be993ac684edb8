// Package markset implements the ordered, uniquely named collection of marks
// belonging to one project.
//
// A Set keeps a name→mark mapping and an explicit order sequence. Every
// structural mutation updates both in the same call, so the order always
// holds exactly the mapping's keys, each once.
package markset

import (
	"sort"

	"github.com/starford/marksman/internal/models"
)

// Set is the MarkSet of one project. The zero value is not usable; call New.
type Set struct {
	byName map[string]models.Mark
	order  []string
}

// New returns an empty set.
func New() *Set {
	return &Set{byName: make(map[string]models.Mark)}
}

// FromParts builds a set from a mapping and an order sequence, reconciling
// the two: names in order without a mark are dropped, duplicates keep their
// first position, and marks missing from order are appended in sorted name
// order.
func FromParts(marks map[string]models.Mark, order []string) *Set {
	s := New()
	for _, name := range order {
		m, ok := marks[name]
		if !ok {
			continue
		}
		if _, dup := s.byName[name]; dup {
			continue
		}
		s.byName[name] = m
		s.order = append(s.order, name)
	}
	var missing []string
	for name := range marks {
		if _, ok := s.byName[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	for _, name := range missing {
		s.byName[name] = marks[name]
		s.order = append(s.order, name)
	}
	return s
}

// Len returns the number of marks.
func (s *Set) Len() int {
	return len(s.order)
}

// Has reports whether name is present.
func (s *Set) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Get returns the mark stored under name.
func (s *Set) Get(name string) (models.Mark, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// At returns the name and mark at the 1-based index.
func (s *Set) At(index int) (string, models.Mark, bool) {
	if index < 1 || index > len(s.order) {
		return "", models.Mark{}, false
	}
	name := s.order[index-1]
	return name, s.byName[name], true
}

// IndexOf returns the 1-based position of name, or 0 when absent.
func (s *Set) IndexOf(name string) int {
	for i, n := range s.order {
		if n == name {
			return i + 1
		}
	}
	return 0
}

// Names returns a copy of the order, filtered to names that have a mark.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.order))
	for _, n := range s.order {
		if _, ok := s.byName[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Marks returns a copy of the name→mark mapping.
func (s *Set) Marks() map[string]models.Mark {
	out := make(map[string]models.Mark, len(s.byName))
	for k, v := range s.byName {
		out[k] = v
	}
	return out
}

// Entries returns every mark with its name and index, in order.
func (s *Set) Entries() []models.Entry {
	out := make([]models.Entry, 0, len(s.order))
	for i, n := range s.order {
		out = append(out, models.Entry{Index: i + 1, Name: n, Mark: s.byName[n]})
	}
	return out
}

// Append adds a new mark at the end. It returns false if name exists.
func (s *Set) Append(name string, m models.Mark) bool {
	if s.Has(name) {
		return false
	}
	s.byName[name] = m
	s.order = append(s.order, name)
	return true
}

// Put overwrites the fields of an existing mark, or appends a new one.
// An existing name keeps its position.
func (s *Set) Put(name string, m models.Mark) {
	if s.Has(name) {
		s.byName[name] = m
		return
	}
	s.Append(name, m)
}

// Remove deletes name, preserving the relative order of the rest.
func (s *Set) Remove(name string) (models.Mark, bool) {
	m, ok := s.byName[name]
	if !ok {
		return models.Mark{}, false
	}
	delete(s.byName, name)
	if i := s.IndexOf(name); i > 0 {
		s.order = append(s.order[:i-1], s.order[i:]...)
	}
	return m, true
}

// Rename replaces oldName with newName in place. It returns false if
// oldName is absent or newName is taken.
func (s *Set) Rename(oldName, newName string) bool {
	m, ok := s.byName[oldName]
	if !ok || s.Has(newName) {
		return false
	}
	delete(s.byName, oldName)
	s.byName[newName] = m
	if i := s.IndexOf(oldName); i > 0 {
		s.order[i-1] = newName
	}
	return true
}

// Swap exchanges the entries at two 1-based positions.
func (s *Set) Swap(i, j int) bool {
	if i < 1 || j < 1 || i > len(s.order) || j > len(s.order) {
		return false
	}
	s.order[i-1], s.order[j-1] = s.order[j-1], s.order[i-1]
	return true
}

// Clear removes every mark.
func (s *Set) Clear() {
	s.byName = make(map[string]models.Mark)
	s.order = nil
}

// Clone returns a deep copy.
func (s *Set) Clone() *Set {
	c := &Set{
		byName: s.Marks(),
		order:  make([]string, len(s.order)),
	}
	copy(c.order, s.order)
	return c
}
