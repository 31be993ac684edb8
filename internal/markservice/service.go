// Package markservice coordinates the workspace, navigator, transfer and
// search index behind the API and MCP surfaces.
package markservice

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/starford/marksman/internal/index"
	"github.com/starford/marksman/internal/models"
	"github.com/starford/marksman/internal/navigator"
	"github.com/starford/marksman/internal/registry"
	"github.com/starford/marksman/internal/transfer"
	"github.com/starford/marksman/internal/workspace"
)

// ErrIndexDisabled is returned by SearchAll when no index is configured.
var ErrIndexDisabled = errors.New("search index is not configured")

// MarkList is an ordered listing of one project's marks.
type MarkList struct {
	Project string         `json:"project"`
	Marks   []models.Entry `json:"marks"`
	Total   int            `json:"total"`
}

// AddInput describes a mark to add. An empty Name asks for a suggestion.
type AddInput struct {
	Name        string `json:"name,omitempty"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Col         int    `json:"col"`
	Text        string `json:"text,omitempty"`
	Description string `json:"description,omitempty"`
}

// Service routes calls to the registry of the right project.
type Service struct {
	ws         *workspace.Manager
	idx        index.MarkIndex
	defaultDir string
}

// NewService creates a service. idx may be nil. defaultDir is used when a
// call names no directory.
func NewService(ws *workspace.Manager, idx index.MarkIndex, defaultDir string) *Service {
	return &Service{ws: ws, idx: idx, defaultDir: defaultDir}
}

// Registry returns the registry of the project containing path.
func (s *Service) Registry(ctx context.Context, path string) (*registry.Registry, error) {
	if path == "" {
		path = s.defaultDir
	}
	return s.ws.ForPath(ctx, path)
}

// List returns the marks of the project containing dir.
func (s *Service) List(ctx context.Context, dir string, byRecency bool) (*MarkList, error) {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return nil, err
	}
	entries := reg.List()
	if byRecency {
		entries = reg.ListByRecency()
	}
	return &MarkList{Project: reg.Project(), Marks: nonNilSlice(entries), Total: len(entries)}, nil
}

// Add stores a new mark in the project containing the mark's file.
func (s *Service) Add(ctx context.Context, in AddInput) (models.Entry, error) {
	reg, err := s.Registry(ctx, in.File)
	if err != nil {
		return models.Entry{}, err
	}
	req := registry.AddRequest{
		Location:    models.Location{File: in.File, Line: in.Line, Col: in.Col},
		Text:        in.Text,
		Description: in.Description,
	}
	if in.Name != "" {
		name := in.Name
		req.Name = &name
	}
	return reg.Add(req)
}

// Goto resolves a mark by name or 1-based index.
func (s *Service) Goto(ctx context.Context, dir, ref string) (models.Entry, error) {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return models.Entry{}, err
	}
	return reg.Goto(ref)
}

// Delete removes a mark.
func (s *Service) Delete(ctx context.Context, dir, name string) error {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return err
	}
	return reg.Delete(name)
}

// Rename renames a mark in place.
func (s *Service) Rename(ctx context.Context, dir, oldName, newName string) error {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return err
	}
	return reg.Rename(oldName, newName)
}

// Move swaps a mark with its neighbour.
func (s *Service) Move(ctx context.Context, dir, name string, d registry.Direction) (bool, error) {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return false, err
	}
	return reg.Move(name, d)
}

// Clear removes every mark of the project.
func (s *Service) Clear(ctx context.Context, dir string) (int, error) {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return 0, err
	}
	n := reg.Count()
	reg.ClearAll()
	return n, nil
}

// Undo restores the most recent deletion.
func (s *Service) Undo(ctx context.Context, dir string) (string, bool, error) {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return "", false, err
	}
	return reg.UndoLastDeletion()
}

// History returns the project's undo history, newest first.
func (s *Service) History(ctx context.Context, dir string) ([]registry.Deletion, error) {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(reg.Deletions()), nil
}

// Search filters the marks of one project.
func (s *Service) Search(ctx context.Context, dir, query string) ([]models.Entry, error) {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(reg.Search(query)), nil
}

// SearchAll searches every indexed project.
func (s *Service) SearchAll(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.idx == nil {
		return nil, ErrIndexDisabled
	}
	res, err := s.idx.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// Next resolves the mark after loc in loc's project.
func (s *Service) Next(ctx context.Context, loc models.Location) (models.Entry, error) {
	reg, err := s.Registry(ctx, loc.File)
	if err != nil {
		return models.Entry{}, err
	}
	return navigator.New(reg, nil).NextFrom(loc)
}

// Previous resolves the mark before loc in loc's project.
func (s *Service) Previous(ctx context.Context, loc models.Location) (models.Entry, error) {
	reg, err := s.Registry(ctx, loc.File)
	if err != nil {
		return models.Entry{}, err
	}
	return navigator.New(reg, nil).PreviousFrom(loc)
}

// Export serializes the project's marks.
func (s *Service) Export(ctx context.Context, dir string) ([]byte, error) {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return nil, err
	}
	return reg.Export()
}

// Import reconciles a payload into the project's marks.
func (s *Service) Import(ctx context.Context, dir string, data []byte, strategy transfer.Strategy) (transfer.Stats, error) {
	reg, err := s.Registry(ctx, dir)
	if err != nil {
		return transfer.Stats{}, err
	}
	return reg.Import(data, strategy)
}

// FileMarks returns every indexed mark pointing into file, in any project.
func (s *Service) FileMarks(_ context.Context, file string) ([]index.MarkRow, error) {
	if s.idx == nil {
		return nil, ErrIndexDisabled
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	rows, err := s.idx.MarksInFile(abs)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(rows), nil
}

// Projects lists every indexed project.
func (s *Service) Projects(_ context.Context) ([]index.ProjectRow, error) {
	if s.idx == nil {
		return nil, ErrIndexDisabled
	}
	rows, err := s.idx.Projects()
	if err != nil {
		return nil, err
	}
	return nonNilSlice(rows), nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
