// Package registry is the in-memory mark service of one project: it
// validates and applies mutations to the project's MarkSet and persists the
// result through a debounced save.
package registry

import (
	"bufio"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/starford/marksman/internal/apperr"
	"github.com/starford/marksman/internal/markset"
	"github.com/starford/marksman/internal/models"
	"github.com/starford/marksman/internal/storage"
	"github.com/starford/marksman/internal/suggest"
	"github.com/starford/marksman/internal/transfer"
)

// Limits on configuration values.
const (
	MinMaxMarks     = 1
	MaxMaxMarks     = 1000
	DefaultMaxMarks = 100
	DefaultDebounce = 500 * time.Millisecond

	maxSuffixAttempts = 100
	fallbackName      = "mark"
)

// Suggester proposes a name for a new mark from its code context.
type Suggester interface {
	Suggest(file string, line int, text string, existing []string) string
}

// Config holds the registry's policy knobs.
type Config struct {
	MaxMarks    int
	Debounce    time.Duration
	TrackAccess bool
	HistorySize int
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		MaxMarks:    DefaultMaxMarks,
		Debounce:    DefaultDebounce,
		HistorySize: 10,
	}
}

// Direction is a Move direction.
type Direction string

// Move directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Registry owns one project's MarkSet.
type Registry struct {
	project   string
	store     storage.Provider
	cfg       Config
	validator models.NameValidator
	suggester Suggester
	scheduler Scheduler
	logger    *slog.Logger
	now       func() time.Time
	listeners []Listener

	saveMu sync.Mutex

	mu            sync.Mutex
	set           *markset.Set
	history       *history
	dirty         bool
	cancelPending func()
}

// Option configures a Registry.
type Option func(*Registry)

// WithConfig sets the policy. MaxMarks is clamped to 1-1000.
func WithConfig(cfg Config) Option {
	return func(r *Registry) { r.cfg = cfg }
}

// WithValidator replaces the name validator.
func WithValidator(v models.NameValidator) Option {
	return func(r *Registry) { r.validator = v }
}

// WithSuggester replaces the name suggester.
func WithSuggester(s Suggester) Option {
	return func(r *Registry) { r.suggester = s }
}

// WithScheduler replaces the debounce scheduler.
func WithScheduler(s Scheduler) Option {
	return func(r *Registry) { r.scheduler = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithListener registers a change listener.
func WithListener(l Listener) Option {
	return func(r *Registry) { r.listeners = append(r.listeners, l) }
}

// New returns a registry with an empty set.
func New(projectRoot string, store storage.Provider, opts ...Option) *Registry {
	r := &Registry{
		project:   projectRoot,
		store:     store,
		cfg:       DefaultConfig(),
		validator: models.DefaultNameValidator{},
		suggester: suggest.Suggester{},
		scheduler: TimerScheduler{},
		logger:    slog.Default(),
		now:       time.Now,
		set:       markset.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cfg.MaxMarks = min(max(r.cfg.MaxMarks, MinMaxMarks), MaxMaxMarks)
	r.history = newHistory(r.cfg.HistorySize)
	return r
}

// Open returns a registry loaded from store. A load failure is returned
// alongside a usable registry holding an empty set.
func Open(projectRoot string, store storage.Provider, opts ...Option) (*Registry, error) {
	r := New(projectRoot, store, opts...)
	set, err := store.Load()
	if set != nil {
		r.set = set
	}
	if err != nil {
		r.logger.Warn("registry: load failed, starting empty",
			slog.String("project", projectRoot),
			slog.String("error", err.Error()))
		return r, err
	}
	r.logger.Debug("registry: loaded",
		slog.String("project", projectRoot),
		slog.Int("marks", r.set.Len()))
	return r, nil
}

// Project returns the project root the registry serves.
func (r *Registry) Project() string { return r.project }

// AddRequest describes a new mark. A nil Name asks the suggester for one.
type AddRequest struct {
	Name        *string
	Location    models.Location
	Text        string
	Description string
}

// Add validates and stores a new mark at the end of the order.
func (r *Registry) Add(req AddRequest) (models.Entry, error) {
	loc := req.Location
	if strings.TrimSpace(loc.File) == "" {
		return models.Entry{}, apperr.New(apperr.ErrNoFile, "No file to mark")
	}
	if loc.Line < 1 || loc.Col < 1 {
		return models.Entry{}, apperr.New(apperr.ErrInvalidMarkData, "Invalid position %d:%d (line and column start at 1)", loc.Line, loc.Col)
	}
	file, err := filepath.Abs(loc.File)
	if err != nil {
		return models.Entry{}, apperr.Wrap(apperr.ErrUnreadable, err, "Cannot read file: %s", loc.File)
	}
	lineText, err := readLine(file, loc.Line)
	if err != nil {
		return models.Entry{}, apperr.Wrap(apperr.ErrUnreadable, err, "Cannot read file: %s", file)
	}
	text := req.Text
	if text == "" {
		text = lineText
	}
	text = models.Truncate(strings.TrimSpace(text), models.MaxTextLength)

	r.mu.Lock()
	if r.set.Len() >= r.cfg.MaxMarks {
		r.mu.Unlock()
		return models.Entry{}, r.limitError()
	}

	var name string
	if req.Name == nil {
		candidate := r.suggester.Suggest(file, loc.Line, text, r.set.Names())
		name = r.uniqueNameLocked(models.SanitizeName(candidate, fallbackName))
	} else {
		name = *req.Name
		if err := r.validator.Validate(name); err != nil {
			r.mu.Unlock()
			return models.Entry{}, err
		}
		if r.set.Has(name) {
			r.mu.Unlock()
			return models.Entry{}, apperr.New(apperr.ErrDuplicateName, "Mark already exists: %s", name)
		}
	}

	m := models.Mark{
		File:        file,
		Line:        loc.Line,
		Col:         loc.Col,
		Text:        text,
		Description: req.Description,
		CreatedAt:   r.now().Unix(),
	}
	r.set.Append(name, m)
	entry := models.Entry{Index: r.set.Len(), Name: name, Mark: m}
	r.scheduleSaveLocked()
	r.mu.Unlock()

	r.logger.Debug("registry: mark added",
		slog.String("project", r.project),
		slog.String("name", name))
	r.emit(Event{Kind: EventAdded, Name: name})
	return entry, nil
}

// Goto resolves ref to a mark. A ref that parses as an integer is a 1-based
// index into the order; anything else is a name.
func (r *Registry) Goto(ref string) (models.Entry, error) {
	if i, err := strconv.Atoi(strings.TrimSpace(ref)); err == nil {
		return r.GotoIndex(i)
	}
	return r.GotoName(ref)
}

// GotoIndex resolves a 1-based index.
func (r *Registry) GotoIndex(index int) (models.Entry, error) {
	r.mu.Lock()
	name, m, ok := r.set.At(index)
	total := r.set.Len()
	r.mu.Unlock()
	if !ok {
		return models.Entry{}, apperr.New(apperr.ErrInvalidIndex, "Invalid mark index: %d (have %d marks)", index, total)
	}
	return r.visit(models.Entry{Index: index, Name: name, Mark: m})
}

// GotoName resolves a mark by name.
func (r *Registry) GotoName(name string) (models.Entry, error) {
	r.mu.Lock()
	m, ok := r.set.Get(name)
	idx := r.set.IndexOf(name)
	r.mu.Unlock()
	if !ok {
		return models.Entry{}, apperr.New(apperr.ErrNotFound, "Mark not found: %s", name)
	}
	return r.visit(models.Entry{Index: idx, Name: name, Mark: m})
}

func (r *Registry) visit(e models.Entry) (models.Entry, error) {
	if _, err := os.Stat(e.Mark.File); err != nil {
		return models.Entry{}, apperr.New(apperr.ErrStaleFile, "File no longer exists: %s", e.Mark.File)
	}
	if !r.cfg.TrackAccess {
		return e, nil
	}
	r.mu.Lock()
	if m, ok := r.set.Get(e.Name); ok {
		m.AccessedAt = r.now().Unix()
		r.set.Put(e.Name, m)
		e.Mark = m
		r.scheduleSaveLocked()
	}
	r.mu.Unlock()
	return e, nil
}

// Delete removes a mark, keeping the relative order of the rest.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	m, ok := r.set.Remove(name)
	if !ok {
		r.mu.Unlock()
		return apperr.New(apperr.ErrNotFound, "Mark not found: %s", name)
	}
	r.history.push(Deletion{Name: name, Mark: m, DeletedAt: r.now()})
	r.scheduleSaveLocked()
	r.mu.Unlock()

	r.emit(Event{Kind: EventDeleted, Name: name})
	return nil
}

// Rename changes a mark's name without moving it in the order.
func (r *Registry) Rename(oldName, newName string) error {
	r.mu.Lock()
	if !r.set.Has(oldName) {
		r.mu.Unlock()
		return apperr.New(apperr.ErrNotFound, "Mark not found: %s", oldName)
	}
	if err := r.validator.Validate(newName); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.set.Has(newName) {
		r.mu.Unlock()
		return apperr.New(apperr.ErrDuplicateName, "Mark already exists: %s", newName)
	}
	r.set.Rename(oldName, newName)
	r.scheduleSaveLocked()
	r.mu.Unlock()

	r.emit(Event{Kind: EventRenamed, Name: newName, OldName: oldName})
	return nil
}

// Move swaps a mark with its neighbour in direction. A move past either end
// is refused: moved is false and the set is unchanged.
func (r *Registry) Move(name string, dir Direction) (moved bool, err error) {
	var delta int
	switch dir {
	case Up:
		delta = -1
	case Down:
		delta = 1
	default:
		return false, apperr.New(apperr.ErrInvalidMarkData, "Invalid direction: %s (want up or down)", dir)
	}

	r.mu.Lock()
	idx := r.set.IndexOf(name)
	if idx == 0 {
		r.mu.Unlock()
		return false, apperr.New(apperr.ErrNotFound, "Mark not found: %s", name)
	}
	target := idx + delta
	if target < 1 || target > r.set.Len() {
		r.mu.Unlock()
		return false, nil
	}
	r.set.Swap(idx, target)
	r.scheduleSaveLocked()
	r.mu.Unlock()

	r.emit(Event{Kind: EventMoved, Name: name})
	return true, nil
}

// ClearAll removes every mark. Confirmation is the caller's job.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	now := r.now()
	for _, e := range r.set.Entries() {
		r.history.push(Deletion{Name: e.Name, Mark: e.Mark, DeletedAt: now})
	}
	r.set.Clear()
	r.scheduleSaveLocked()
	r.mu.Unlock()

	r.emit(Event{Kind: EventCleared})
}

// Count returns the number of marks.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Len()
}

// Names returns mark names in order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Names()
}

// Get returns a mark by name without touching access metadata.
func (r *Registry) Get(name string) (models.Mark, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Get(name)
}

// List returns every mark in order.
func (r *Registry) List() []models.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Entries()
}

// Snapshot returns a copy of the current set.
func (r *Registry) Snapshot() *markset.Set {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Clone()
}

// ListByRecency returns marks sorted by last access, falling back to
// creation time, most recent first. The stored order is not changed.
func (r *Registry) ListByRecency() []models.Entry {
	entries := r.List()
	recency := func(m models.Mark) int64 {
		if m.AccessedAt > 0 {
			return m.AccessedAt
		}
		return m.CreatedAt
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return recency(entries[i].Mark) > recency(entries[j].Mark)
	})
	return entries
}

// Search returns marks whose name, file, text or description contains
// query, case-insensitively, in order. An empty query matches everything.
func (r *Registry) Search(query string) []models.Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []models.Entry
	for _, e := range r.List() {
		if q == "" ||
			strings.Contains(strings.ToLower(e.Name), q) ||
			strings.Contains(strings.ToLower(e.Mark.File), q) ||
			strings.Contains(strings.ToLower(e.Mark.Text), q) ||
			strings.Contains(strings.ToLower(e.Mark.Description), q) {
			out = append(out, e)
		}
	}
	return out
}

// Export serializes the current set.
func (r *Registry) Export() ([]byte, error) {
	return transfer.Export(r.Snapshot(), r.project, r.now())
}

// Import reconciles an exported payload into the live set.
func (r *Registry) Import(data []byte, strategy transfer.Strategy) (transfer.Stats, error) {
	r.mu.Lock()
	out, st, err := transfer.Import(data, strategy, r.set, r.validator)
	if err != nil {
		r.mu.Unlock()
		return transfer.Stats{}, err
	}
	if out.Len() > r.cfg.MaxMarks {
		r.mu.Unlock()
		return transfer.Stats{}, apperr.New(apperr.ErrLimitReached, "Import would exceed mark limit (%d > %d)", out.Len(), r.cfg.MaxMarks)
	}
	r.set = out
	r.scheduleSaveLocked()
	r.mu.Unlock()

	r.emit(Event{Kind: EventImported})
	return st, nil
}

// Close flushes pending changes and drops the in-memory set. The file on
// disk is kept.
func (r *Registry) Close() error {
	err := r.Flush()
	r.mu.Lock()
	r.set = markset.New()
	r.history = newHistory(r.cfg.HistorySize)
	r.mu.Unlock()
	return err
}

func (r *Registry) limitError() error {
	return apperr.New(apperr.ErrLimitReached, "Mark limit reached (%d)", r.cfg.MaxMarks)
}

// uniqueNameLocked returns base, or base with _1.._100 appended, or with a
// timestamp appended, whichever is free first. Callers hold r.mu.
func (r *Registry) uniqueNameLocked(base string) string {
	if !r.set.Has(base) {
		return base
	}
	for i := 1; i <= maxSuffixAttempts; i++ {
		candidate := withSuffix(base, "_"+strconv.Itoa(i))
		if !r.set.Has(candidate) {
			return candidate
		}
	}
	ts := r.now().UnixNano()
	for {
		candidate := withSuffix(base, "_"+strconv.FormatInt(ts, 10))
		if !r.set.Has(candidate) {
			return candidate
		}
		ts++
	}
}

func withSuffix(base, suffix string) string {
	keep := models.MaxNameLength - len([]rune(suffix))
	return models.Truncate(base, max(keep, 0)) + suffix
}

// readLine opens path and returns the text of the 1-based line, or "" when
// the file is shorter.
func readLine(path string, line int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		if n == line {
			return sc.Text(), nil
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, bufio.ErrTooLong) {
		return "", err
	}
	return "", nil
}
