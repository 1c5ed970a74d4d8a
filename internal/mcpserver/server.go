// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Dagaz view tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/views"
	"github.com/starford/dagaz/internal/viewservice"
)

const guideURI = "dagaz://query-guide"

// Server wraps the MCP server with Dagaz tools.
type Server struct {
	mcp  *server.MCPServer
	svc  *viewservice.Service
	sink storage.Sink
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[views.Name]*session
}

// New creates a new MCP server with all Dagaz tools registered. sink
// receives exports and downloads; nil disables those tools.
func New(svc *viewservice.Service, sink storage.Sink, logger *slog.Logger) *Server {
	s := &Server{
		svc:      svc,
		sink:     sink,
		log:      logger.With("component", "mcp"),
		sessions: make(map[views.Name]*session),
	}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	viewArg := mcp.WithString("view", mcp.Required(), mcp.Description("View name, e.g. users or review-documents"))

	s.mcp.AddTool(mcp.NewTool("list_views",
		mcp.WithDescription("List the dashboard views with their columns, text-search fields and category filters."),
	), s.listViews)

	s.mcp.AddTool(mcp.NewTool("query_view",
		mcp.WithDescription("Show the current page of a view under its session filters, sort and page. "+
			"Read the query guide via get_query_guide or the dagaz://query-guide resource first."),
		viewArg,
	), s.queryView)

	s.mcp.AddTool(mcp.NewTool("set_filter",
		mcp.WithDescription("Update the session filters of a view. Only the given arguments change."),
		viewArg,
		mcp.WithString("q", mcp.Description("Free-text search")),
		mcp.WithString("field", mcp.Description("Category field to set")),
		mcp.WithString("value", mcp.Description("Category value; \"all\" clears the category")),
		mcp.WithString("start", mcp.Description("Start date YYYY-MM-DD, inclusive")),
		mcp.WithString("end", mcp.Description("End date YYYY-MM-DD, inclusive")),
		mcp.WithString("preset", mcp.Description("Relative date preset"), mcp.Enum("all", "today", "week", "month", "year")),
	), s.setFilter)

	s.mcp.AddTool(mcp.NewTool("clear_filters",
		mcp.WithDescription("Reset every filter of a view."),
		viewArg,
	), s.clearFilters)

	s.mcp.AddTool(mcp.NewTool("quick_filter",
		mcp.WithDescription("Narrow the grid to rows containing text in any visible column. Empty text removes it."),
		viewArg,
		mcp.WithString("text", mcp.Description("Quick filter text")),
	), s.quickFilter)

	s.mcp.AddTool(mcp.NewTool("toggle_sort",
		mcp.WithDescription("Cycle a column through ascending, descending and unsorted."),
		viewArg,
		mcp.WithString("field", mcp.Required(), mcp.Description("Column field")),
	), s.toggleSort)

	s.mcp.AddTool(mcp.NewTool("set_page",
		mcp.WithDescription("Move to a zero-based page, optionally changing the page size."),
		viewArg,
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Zero-based page index")),
		mcp.WithNumber("page_size", mcp.Description("Rows per page")),
	), s.setPage)

	s.mcp.AddTool(mcp.NewTool("select_record",
		mcp.WithDescription("Open the detail of one record. An empty id clears the selection."),
		viewArg,
		mcp.WithString("id", mcp.Description("Record id")),
	), s.selectRecord)

	s.mcp.AddTool(mcp.NewTool("refresh_view",
		mcp.WithDescription("Refetch a view from the platform. On failure the previous records are kept."),
		viewArg,
	), s.refreshView)

	s.mcp.AddTool(mcp.NewTool("export_view",
		mcp.WithDescription("Export every filtered row of a view to the export directory."),
		viewArg,
		mcp.WithString("format", mcp.Description("Export format"), mcp.Enum("csv", "xlsx")),
	), s.exportView)

	s.mcp.AddTool(mcp.NewTool("download_document",
		mcp.WithDescription("Download a review document (.docx) to the export directory."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("document_type_uuid", mcp.Required(), mcp.Description("Document type id")),
	), s.downloadDocument)

	s.mcp.AddTool(mcp.NewTool("return_document",
		mcp.WithDescription("Return a review document to its author with feedback and/or a revised .docx."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("document_type_uuid", mcp.Required(), mcp.Description("Document type id")),
		mcp.WithString("feedback", mcp.Description("Reviewer feedback")),
		mcp.WithString("file_name", mcp.Description("Revised document name, must end in .docx")),
		mcp.WithString("document", mcp.Description("Revised document as base64 or a data: URI")),
	), s.returnDocument)

	s.mcp.AddTool(mcp.NewTool("list_returns",
		mcp.WithDescription("List recent document returns, newest first."),
		mcp.WithNumber("limit", mcp.Description("Max entries (default 50)")),
	), s.listReturns)

	s.mcp.AddTool(mcp.NewTool("dashboard",
		mcp.WithDescription("Platform counts, recent activity, balance and payment statistics."),
	), s.dashboard)

	s.mcp.AddTool(mcp.NewTool("get_query_guide",
		mcp.WithDescription("Returns the guide to view filters, sorting, paging and document tools."),
	), s.getQueryGuide)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "View Query Guide",
			mcp.WithResourceDescription("How view filters, grid state and document tools behave."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
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

// Forget drops the session state of names, e.g. after their definition changed.
func (s *Server) Forget(names ...views.Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		if sess, ok := s.sessions[n]; ok {
			sess.grid.Detach()
			delete(s.sessions, n)
		}
	}
}

func (s *Server) getQueryGuide(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QueryGuide), nil
}

func (s *Server) readGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     QueryGuide,
		},
	}, nil
}
