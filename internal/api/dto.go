package api

import (
	"github.com/starford/marksman/internal/index"
	"github.com/starford/marksman/internal/markservice"
	"github.com/starford/marksman/internal/models"
	"github.com/starford/marksman/internal/registry"
	"github.com/starford/marksman/internal/transfer"
)

// AddMarkRequest is the request body for adding a mark.
type AddMarkRequest = markservice.AddInput

// RenameMarkRequest is the request body for renaming a mark.
type RenameMarkRequest struct {
	NewName string `json:"new_name" example:"handler" validate:"required"`
}

// MoveMarkRequest is the request body for moving a mark.
type MoveMarkRequest struct {
	Direction string `json:"direction" example:"up" enums:"up,down" validate:"required"`
}

// MarkEntry is a mark with its name and 1-based position.
type MarkEntry = models.Entry

// MarkListResponse wraps a project's ordered marks.
type MarkListResponse = markservice.MarkList

// MoveResponse reports whether a move changed the order.
type MoveResponse struct {
	Moved bool `json:"moved" example:"true"`
}

// ClearResponse reports how many marks a clear removed.
type ClearResponse struct {
	Removed int `json:"removed" example:"12"`
}

// UndoResponse reports the restored mark, if any.
type UndoResponse struct {
	Restored bool   `json:"restored" example:"true"`
	Name     string `json:"name,omitempty" example:"handler"`
}

// HistoryResponse lists recent deletions, newest first.
type HistoryResponse struct {
	Deletions []registry.Deletion `json:"deletions" validate:"required"`
}

// FileMarksResponse lists the indexed marks of one file across projects.
type FileMarksResponse struct {
	Marks []index.MarkRow `json:"marks" validate:"required"`
}

// SearchResponse wraps project-local search results.
type SearchResponse struct {
	Marks []MarkEntry `json:"marks" validate:"required"`
}

// GlobalSearchResponse wraps cross-project search results.
type GlobalSearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// ProjectsResponse lists every indexed project.
type ProjectsResponse struct {
	Projects []index.ProjectRow `json:"projects" validate:"required"`
}

// ImportResponse reports the outcome of an import.
type ImportResponse = transfer.Stats
