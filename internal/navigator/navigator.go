// Package navigator computes next/previous mark targets relative to the
// cursor, walking the project's mark order with wraparound.
package navigator

import (
	"path/filepath"

	"github.com/starford/marksman/internal/apperr"
	"github.com/starford/marksman/internal/models"
)

// Position is where the cursor sits in the mark order.
type Position struct {
	// Index is the 1-based index of the exact or nearest mark in the
	// cursor's file. It is 0 when Found is false.
	Index int
	// Found is false when the cursor's file has no marks.
	Found bool
	Total int
}

// CurrentIndex locates the cursor in the ordered marks. A mark on the cursor
// line wins outright; otherwise the mark in the same file with the smallest
// line distance is chosen, earliest in order on ties.
func CurrentIndex(cursorFile string, cursorLine int, order []string, marks map[string]models.Mark) (Position, error) {
	names := make([]string, 0, len(order))
	for _, n := range order {
		if _, ok := marks[n]; ok {
			names = append(names, n)
		}
	}
	total := len(names)
	if total == 0 {
		return Position{}, apperr.New(apperr.ErrNoMarks, "No marks in current project")
	}

	file := filepath.Clean(cursorFile)
	best, bestDist := 0, -1
	for i, n := range names {
		m := marks[n]
		if filepath.Clean(m.File) != file {
			continue
		}
		if m.Line == cursorLine {
			return Position{Index: i + 1, Found: true, Total: total}, nil
		}
		d := m.Line - cursorLine
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = i+1, d
		}
	}
	if best == 0 {
		return Position{Total: total}, nil
	}
	return Position{Index: best, Found: true, Total: total}, nil
}

// Next returns the index after p, wrapping from last to first. Without a
// current index it returns the first.
func Next(p Position) int {
	if p.Total == 0 {
		return 0
	}
	if !p.Found {
		return 1
	}
	return p.Index%p.Total + 1
}

// Previous returns the index before p, wrapping from first to last. Without
// a current index it returns the last.
func Previous(p Position) int {
	if p.Total == 0 {
		return 0
	}
	if !p.Found {
		return p.Total
	}
	return mod(p.Index-2, p.Total) + 1
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

// CursorContext reports the editor's current position.
type CursorContext interface {
	Current() (models.Location, error)
}

// CursorFunc adapts a function to CursorContext.
type CursorFunc func() (models.Location, error)

// Current implements CursorContext.
func (f CursorFunc) Current() (models.Location, error) { return f() }

// Marks is the part of the registry the navigator reads.
type Marks interface {
	List() []models.Entry
	GotoIndex(index int) (models.Entry, error)
}

// Navigator resolves next/previous marks for a registry.
type Navigator struct {
	marks  Marks
	cursor CursorContext
}

// New returns a Navigator. cursor may be nil when only the *From methods
// are used.
func New(marks Marks, cursor CursorContext) *Navigator {
	return &Navigator{marks: marks, cursor: cursor}
}

// Next resolves the mark after the cursor.
func (n *Navigator) Next() (models.Entry, error) {
	loc, err := n.current()
	if err != nil {
		return models.Entry{}, err
	}
	return n.NextFrom(loc)
}

// Previous resolves the mark before the cursor.
func (n *Navigator) Previous() (models.Entry, error) {
	loc, err := n.current()
	if err != nil {
		return models.Entry{}, err
	}
	return n.PreviousFrom(loc)
}

// NextFrom resolves the mark after loc.
func (n *Navigator) NextFrom(loc models.Location) (models.Entry, error) {
	return n.step(loc, Next)
}

// PreviousFrom resolves the mark before loc.
func (n *Navigator) PreviousFrom(loc models.Location) (models.Entry, error) {
	return n.step(loc, Previous)
}

// Position returns where loc sits in the mark order. A relative loc.File is
// taken from the working directory, as stored mark files are absolute.
func (n *Navigator) Position(loc models.Location) (Position, error) {
	if !filepath.IsAbs(loc.File) {
		if abs, err := filepath.Abs(loc.File); err == nil {
			loc.File = abs
		}
	}
	entries := n.marks.List()
	order := make([]string, len(entries))
	byName := make(map[string]models.Mark, len(entries))
	for i, e := range entries {
		order[i] = e.Name
		byName[e.Name] = e.Mark
	}
	return CurrentIndex(loc.File, loc.Line, order, byName)
}

func (n *Navigator) step(loc models.Location, move func(Position) int) (models.Entry, error) {
	p, err := n.Position(loc)
	if err != nil {
		return models.Entry{}, err
	}
	return n.marks.GotoIndex(move(p))
}

func (n *Navigator) current() (models.Location, error) {
	if n.cursor == nil {
		return models.Location{}, apperr.New(apperr.ErrNoFile, "No cursor position available")
	}
	return n.cursor.Current()
}
