// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Dagaz digest tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/digest"
	"github.com/starford/dagaz/internal/digestservice"
)

// Server wraps the MCP server with Dagaz tools.
type Server struct {
	mcp *server.MCPServer
	svc *digestservice.Service
}

// New creates a new MCP server with all Dagaz tools registered.
func New(svc *digestservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_datasets",
		mcp.WithDescription("List all indexed digest datasets with their schema and subject counts."),
		mcp.WithString("schema", mcp.Description("Optional schema name to filter by (e.g. imaging)")),
	), s.listDatasets)

	s.mcp.AddTool(mcp.NewTool("get_summary",
		mcp.WithDescription("Get the summary of one dataset: subject, record, and row counts plus the sessions and variables it covers."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Dataset id")),
	), s.getSummary)

	s.mcp.AddTool(mcp.NewTool("get_availability",
		mcp.WithDescription("Derive the subject-by-variable availability matrix for a dataset. "+
			"Optionally narrow to specific sessions (comma-separated) with AND/OR semantics."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Dataset id")),
		mcp.WithString("sessions", mcp.Description("Comma-separated session ids to keep")),
		mcp.WithString("operator", mcp.Description("Session operator, AND (default) or OR")),
	), s.getAvailability)

	s.mcp.AddTool(mcp.NewTool("search_subjects",
		mcp.WithDescription("Search subject ids within a dataset by substring."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Dataset id")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Subject id substring")),
	), s.searchSubjects)

	s.mcp.AddTool(mcp.NewTool("get_digest_contract",
		mcp.WithDescription("Returns the long-format digest file contract. "+
			"Call this before generating digest files to ensure correct structure."),
	), s.getDigestContract)

	// Resource: digest format contract.
	s.mcp.AddResource(
		mcp.NewResource("dagaz://digest-format", "Digest Format Contract",
			mcp.WithResourceDescription("Canonical long-format TSV digest structure that all uploads must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDigestFormatResource,
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

func (s *Server) listDatasets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schemaName := ""
	if v, err := req.RequireString("schema"); err == nil {
		schemaName = v
	}
	items, _, err := s.svc.List(ctx, 100, 0, schemaName, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(detail, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getAvailability(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	f := digest.Filter{Operator: digest.OperatorAnd}
	if v, err := req.RequireString("sessions"); err == nil && v != "" {
		for _, ses := range strings.Split(v, ",") {
			if ses = strings.TrimSpace(ses); ses != "" {
				f.Sessions = append(f.Sessions, ses)
			}
		}
	}
	if v, err := req.RequireString("operator"); err == nil && v == digest.OperatorOr {
		f.Operator = digest.OperatorOr
	}

	m, err := s.svc.Matrix(ctx, id, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(m, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchSubjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	subjects, err := s.svc.SearchSubjects(ctx, id, query, 50)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(subjects) == 0 {
		return mcp.NewToolResultText("no matching subjects"), nil
	}
	return mcp.NewToolResultText(strings.Join(subjects, "\n")), nil
}

func (s *Server) getDigestContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DigestFormatContract), nil
}

func (s *Server) readDigestFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "dagaz://digest-format",
			MIMEType: "text/markdown",
			Text:     DigestFormatContract,
		},
	}, nil
}
