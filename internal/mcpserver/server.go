// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes read-only duplicate review tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/opdedupe/internal/planservice"
)

// ReportFormatURI is the resource URI of ReportFormatContract.
const ReportFormatURI = "opdedupe://report-format"

// Server wraps the MCP server with review tools.
type Server struct {
	mcp *server.MCPServer
	svc *planservice.Service
}

// New creates a new MCP server with all review tools registered.
func New(svc *planservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"opdedupe",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_plan",
		mcp.WithDescription("Show how the current duplicate report would be applied: "+
			"the rows in the update, archive and delete phases and their counts."),
	), s.getPlan)

	s.mcp.AddTool(mcp.NewTool("list_report_rows",
		mcp.WithDescription("List rows of the duplicate report, optionally filtered by action."),
		mcp.WithString("action", mcp.Description("Optional action filter: KEEP, DELETE, ARCHIVE or REVIEW")),
	), s.listReportRows)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent analyse and apply runs from the audit journal, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("get_run_actions",
		mcp.WithDescription("Show one run and every store action it planned or performed."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID as returned by list_runs")),
	), s.getRunActions)

	s.mcp.AddResource(
		mcp.NewResource(ReportFormatURI, "Duplicate Report Format",
			mcp.WithResourceDescription("Columns, actions and apply order of the duplicate report."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readReportFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPlan(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.svc.Plan(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(view)
}

func (s *Server) listReportRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.svc.Rows(ctx, req.GetString("action", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rows)
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.svc.Runs(ctx, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(runs)
}

func (s *Server) getRunActions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Run(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(detail)
}

func (s *Server) readReportFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ReportFormatURI,
			MIMEType: "text/markdown",
			Text:     ReportFormatContract,
		},
	}, nil
}
