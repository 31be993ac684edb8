// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Marksman tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/marksman/internal/markservice"
	"github.com/starford/marksman/internal/models"
	"github.com/starford/marksman/internal/registry"
	"github.com/starford/marksman/internal/transfer"
)

// FileFormatURI is the resource URI of the file format contract.
const FileFormatURI = "marksman://file-format"

// Server wraps the MCP server with Marksman tools.
type Server struct {
	mcp *server.MCPServer
	svc *markservice.Service
}

// New creates a new MCP server with all Marksman tools registered.
func New(svc *markservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Marksman",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	dirArg := mcp.WithString("dir", mcp.Description("Project directory or any path inside it (defaults to the server's project)"))

	s.mcp.AddTool(mcp.NewTool("list_marks",
		mcp.WithDescription("List the marks of a project in their navigation order."),
		dirArg,
		mcp.WithString("sort", mcp.Description("'order' (default) or 'recency'")),
	), s.listMarks)

	s.mcp.AddTool(mcp.NewTool("add_mark",
		mcp.WithDescription("Bookmark a line of a file. Omit name to get a name suggested from the line's text."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Absolute path of the file")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number")),
		mcp.WithNumber("col", mcp.Description("1-based column (default 1)")),
		mcp.WithString("name", mcp.Description("Mark name")),
		mcp.WithString("description", mcp.Description("Optional free-form description")),
	), s.addMark)

	s.mcp.AddTool(mcp.NewTool("goto_mark",
		mcp.WithDescription("Resolve a mark by name or 1-based index and return its location."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Mark name or index")),
		dirArg,
	), s.gotoMark)

	s.mcp.AddTool(mcp.NewTool("delete_mark",
		mcp.WithDescription("Delete a mark. The deletion can be undone through the HTTP API."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Mark name")),
		dirArg,
	), s.deleteMark)

	s.mcp.AddTool(mcp.NewTool("rename_mark",
		mcp.WithDescription("Rename a mark keeping its position in the order."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Current mark name")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New mark name")),
		dirArg,
	), s.renameMark)

	s.mcp.AddTool(mcp.NewTool("move_mark",
		mcp.WithDescription("Swap a mark with its neighbour in the order."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Mark name")),
		mcp.WithString("direction", mcp.Required(), mcp.Description("'up' or 'down'")),
		dirArg,
	), s.moveMark)

	s.mcp.AddTool(mcp.NewTool("search_marks",
		mcp.WithDescription("Search marks by name, file, line text or description."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("scope", mcp.Description("'project' (default) or 'all' for every indexed project")),
		dirArg,
	), s.searchMarks)

	s.mcp.AddTool(mcp.NewTool("next_mark",
		mcp.WithDescription("Return the mark after a cursor position, wrapping to the first."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Cursor file")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Cursor line")),
	), s.nextMark)

	s.mcp.AddTool(mcp.NewTool("previous_mark",
		mcp.WithDescription("Return the mark before a cursor position, wrapping to the last."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Cursor file")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Cursor line")),
	), s.previousMark)

	s.mcp.AddTool(mcp.NewTool("export_marks",
		mcp.WithDescription("Export a project's marks as JSON. See the "+FileFormatURI+" resource for the format."),
		dirArg,
	), s.exportMarks)

	s.mcp.AddTool(mcp.NewTool("import_marks",
		mcp.WithDescription("Import marks from a JSON document in the "+FileFormatURI+" format."),
		mcp.WithString("data", mcp.Required(), mcp.Description("Export document")),
		mcp.WithString("strategy", mcp.Description("'merge' (default) or 'replace'")),
		dirArg,
	), s.importMarks)

	// Resource: file format contract.
	s.mcp.AddResource(
		mcp.NewResource(FileFormatURI, "File Format Contract",
			mcp.WithResourceDescription("Marks file and export document format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFileFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func location(req mcp.CallToolRequest) (models.Location, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return models.Location{}, err
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return models.Location{}, err
	}
	return models.Location{File: file, Line: line, Col: req.GetInt("col", 1)}, nil
}

func (s *Server) listMarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.List(ctx, req.GetString("dir", ""), req.GetString("sort", "") == "recency")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if list.Total == 0 {
		return mcp.NewToolResultText("no marks in " + list.Project), nil
	}
	var b strings.Builder
	for _, e := range list.Marks {
		fmt.Fprintf(&b, "%d. %s  %s:%d  %s\n", e.Index, e.Name, e.Mark.File, e.Mark.Line, e.Mark.Text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) addMark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loc, err := location(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Add(ctx, markservice.AddInput{
		Name:        req.GetString("name", ""),
		File:        loc.File,
		Line:        loc.Line,
		Col:         loc.Col,
		Description: req.GetString("description", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added: %s (#%d)", entry.Name, entry.Index)), nil
}

func (s *Server) gotoMark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Goto(ctx, req.GetString("dir", ""), ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entry), nil
}

func (s *Server) deleteMark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, req.GetString("dir", ""), name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted: " + name), nil
}

func (s *Server) renameMark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Rename(ctx, req.GetString("dir", ""), name, newName); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed: %s -> %s", name, newName)), nil
}

func (s *Server) moveMark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	direction, err := req.RequireString("direction")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dir := registry.Direction(direction)
	if dir != registry.Up && dir != registry.Down {
		return mcp.NewToolResultError("direction must be 'up' or 'down'"), nil
	}
	moved, err := s.svc.Move(ctx, req.GetString("dir", ""), name, dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !moved {
		return mcp.NewToolResultText(fmt.Sprintf("unchanged: %s is already at the %s end", name, direction)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s %s", name, direction)), nil
}

func (s *Server) searchMarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetString("scope", "") == "all" {
		results, err := s.svc.SearchAll(ctx, query, 20)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(results), nil
	}
	marks, err := s.svc.Search(ctx, req.GetString("dir", ""), query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(marks), nil
}

func (s *Server) nextMark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loc, err := location(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Next(ctx, loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entry), nil
}

func (s *Server) previousMark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loc, err := location(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Previous(ctx, loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entry), nil
}

func (s *Server) exportMarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.svc.Export(ctx, req.GetString("dir", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) importMarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	strategy, err := transfer.ParseStrategy(req.GetString("strategy", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats, err := s.svc.Import(ctx, req.GetString("dir", ""), []byte(data), strategy)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("imported: %d added, %d updated, %d total", stats.Added, stats.Updated, stats.Total)), nil
}

func (s *Server) readFileFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FileFormatURI,
			MIMEType: "text/markdown",
			Text:     FileFormatContract,
		},
	}, nil
}
