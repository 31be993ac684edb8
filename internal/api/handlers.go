package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/marksman/internal/markservice"
	"github.com/starford/marksman/internal/models"
	"github.com/starford/marksman/internal/registry"
	"github.com/starford/marksman/internal/transfer"
)

// maxImportBytes bounds an import body.
const maxImportBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *markservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *markservice.Service) *Handler {
	return &Handler{svc: svc}
}

// urlParam returns a decoded path parameter. Mark names may contain spaces
// and other characters clients percent-encode.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListMarks handles GET /api/marks.
//
//	@Summary		List marks of a project in order
//	@Tags			marks
//	@Produce		json
//	@Param			dir		query		string	false	"Project directory"
//	@Param			sort	query		string	false	"Sort order"	Enums(order, recency)
//	@Success		200		{object}	MarkListResponse
//	@Security		BearerAuth
//	@Router			/marks [get]
func (h *Handler) ListMarks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.List(r.Context(), q.Get("dir"), q.Get("sort") == "recency")
	if err != nil {
		writeError(w, "list marks", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// AddMark handles POST /api/marks.
//
//	@Summary		Add a mark; an empty name asks for a suggestion
//	@Tags			marks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AddMarkRequest	true	"Mark to add"
//	@Success		201		{object}	MarkEntry
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/marks [post]
func (h *Handler) AddMark(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req AddMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	entry, err := h.svc.Add(r.Context(), req)
	if err != nil {
		writeError(w, "add mark", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// GetMark handles GET /api/marks/{name}, where name may also be a 1-based index.
//
//	@Summary		Resolve a mark by name or 1-based index
//	@Tags			marks
//	@Produce		json
//	@Param			name	path		string	true	"Mark name or index"
//	@Param			dir	query		string	false	"Project directory"
//	@Success		200	{object}	MarkEntry
//	@Failure		404	{object}	errResponse
//	@Failure		410	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/marks/{name} [get]
func (h *Handler) GetMark(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Goto(r.Context(), r.URL.Query().Get("dir"), urlParam(r, "name"))
	if err != nil {
		writeError(w, "goto mark", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteMark handles DELETE /api/marks/{name}.
//
//	@Summary		Delete a mark
//	@Tags			marks
//	@Param			name	path	string	true	"Mark name"
//	@Param			dir		query	string	false	"Project directory"
//	@Success		204		"Mark deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/marks/{name} [delete]
func (h *Handler) DeleteMark(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.URL.Query().Get("dir"), urlParam(r, "name")); err != nil {
		writeError(w, "delete mark", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameMark handles POST /api/marks/{name}/rename.
//
//	@Summary		Rename a mark keeping its position
//	@Tags			marks
//	@Accept			json
//	@Param			name	path	string				true	"Mark name"
//	@Param			dir		query	string				false	"Project directory"
//	@Param			body	body	RenameMarkRequest	true	"New name"
//	@Success		204		"Mark renamed"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/marks/{name}/rename [post]
func (h *Handler) RenameMark(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RenameMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.Rename(r.Context(), r.URL.Query().Get("dir"), urlParam(r, "name"), req.NewName); err != nil {
		writeError(w, "rename mark", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveMark handles POST /api/marks/{name}/move.
//
//	@Summary		Swap a mark with its neighbour
//	@Tags			marks
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string			true	"Mark name"
//	@Param			dir		query		string			false	"Project directory"
//	@Param			body	body		MoveMarkRequest	true	"Direction"
//	@Success		200		{object}	MoveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/marks/{name}/move [post]
func (h *Handler) MoveMark(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req MoveMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	dir := registry.Direction(req.Direction)
	if dir != registry.Up && dir != registry.Down {
		writeJSON(w, http.StatusBadRequest, errorBody("direction must be 'up' or 'down'"))
		return
	}
	moved, err := h.svc.Move(r.Context(), r.URL.Query().Get("dir"), urlParam(r, "name"), dir)
	if err != nil {
		writeError(w, "move mark", err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Moved: moved})
}

// ClearMarks handles DELETE /api/marks.
//
//	@Summary		Remove every mark of a project
//	@Tags			marks
//	@Produce		json
//	@Param			dir		query		string	false	"Project directory"
//	@Param			confirm	query		bool	true	"Must be true"
//	@Success		200		{object}	ClearResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/marks [delete]
func (h *Handler) ClearMarks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if ok, _ := strconv.ParseBool(q.Get("confirm")); !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'confirm=true' is required"))
		return
	}
	n, err := h.svc.Clear(r.Context(), q.Get("dir"))
	if err != nil {
		writeError(w, "clear marks", err)
		return
	}
	writeJSON(w, http.StatusOK, ClearResponse{Removed: n})
}

// UndoDelete handles POST /api/marks/undo.
//
//	@Summary		Restore the most recently deleted mark
//	@Tags			marks
//	@Produce		json
//	@Param			dir	query		string	false	"Project directory"
//	@Success		200	{object}	UndoResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/marks/undo [post]
func (h *Handler) UndoDelete(w http.ResponseWriter, r *http.Request) {
	name, ok, err := h.svc.Undo(r.Context(), r.URL.Query().Get("dir"))
	if err != nil {
		writeError(w, "undo delete", err)
		return
	}
	writeJSON(w, http.StatusOK, UndoResponse{Restored: ok, Name: name})
}

// History handles GET /api/history.
//
//	@Summary		List recently deleted marks, newest first
//	@Tags			marks
//	@Produce		json
//	@Param			dir	query		string	false	"Project directory"
//	@Success		200	{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	deletions, err := h.svc.History(r.Context(), r.URL.Query().Get("dir"))
	if err != nil {
		writeError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Deletions: deletions})
}

// Search handles GET /api/search.
//
//	@Summary		Search marks in one project or across all indexed projects
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			scope	query		string	false	"Search scope"	Enums(project, all)
//	@Param			dir		query		string	false	"Project directory"
//	@Param			limit	query		int		false	"Max results for scope=all"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	if q.Get("scope") == "all" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		results, err := h.svc.SearchAll(r.Context(), query, limit)
		if err != nil {
			writeError(w, "search", err)
			return
		}
		writeJSON(w, http.StatusOK, GlobalSearchResponse{Results: results})
		return
	}
	marks, err := h.svc.Search(r.Context(), q.Get("dir"), query)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Marks: marks})
}

// Navigate handles GET /api/navigate/{direction}.
//
//	@Summary		Resolve the next or previous mark from a cursor position
//	@Tags			navigate
//	@Produce		json
//	@Param			direction	path		string	true	"Direction"	Enums(next, previous)
//	@Param			file		query		string	true	"Cursor file"
//	@Param			line		query		int		true	"Cursor line"
//	@Success		200			{object}	MarkEntry
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/navigate/{direction} [get]
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	file := q.Get("file")
	if file == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'file' is required"))
		return
	}
	line, err := strconv.Atoi(q.Get("line"))
	if err != nil || line < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'line' must be a positive integer"))
		return
	}
	loc := models.Location{File: file, Line: line, Col: 1}

	var entry models.Entry
	switch chi.URLParam(r, "direction") {
	case "next":
		entry, err = h.svc.Next(r.Context(), loc)
	case "previous":
		entry, err = h.svc.Previous(r.Context(), loc)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("direction must be 'next' or 'previous'"))
		return
	}
	if err != nil {
		writeError(w, "navigate", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Export handles GET /api/export.
//
//	@Summary		Export a project's marks
//	@Tags			transfer
//	@Produce		json
//	@Param			dir	query	string	false	"Project directory"
//	@Success		200	"Export document"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Export(r.Context(), r.URL.Query().Get("dir"))
	if err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="marksman-export.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import handles POST /api/import.
//
//	@Summary		Import marks with replace or merge
//	@Tags			transfer
//	@Accept			json
//	@Produce		json
//	@Param			dir			query		string	false	"Project directory"
//	@Param			strategy	query		string	false	"Reconciliation"	Enums(merge, replace)
//	@Success		200			{object}	ImportResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	strategy, err := transfer.ParseStrategy(q.Get("strategy"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	stats, err := h.svc.Import(r.Context(), q.Get("dir"), data, strategy)
	if err != nil {
		writeError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// FileMarks handles GET /api/files/marks.
//
//	@Summary		List indexed marks pointing into a file, across projects
//	@Tags			search
//	@Produce		json
//	@Param			path	query		string	true	"File path"
//	@Success		200		{object}	FileMarksResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/marks [get]
func (h *Handler) FileMarks(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	rows, err := h.svc.FileMarks(r.Context(), path)
	if err != nil {
		writeError(w, "file marks", err)
		return
	}
	writeJSON(w, http.StatusOK, FileMarksResponse{Marks: rows})
}

// Projects handles GET /api/projects.
//
//	@Summary		List indexed projects
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	ProjectsResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) Projects(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Projects(r.Context())
	if err != nil {
		writeError(w, "projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectsResponse{Projects: rows})
}
