// Package mcp exposes the Cube adapter over the Model Context Protocol:
// describe_data and read_data tools, plus resource accessors for the data
// description and stored result sets.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"cube-agent/src/cube"
	"cube-agent/src/query"
)

// DataService is the interface for the describe/read operations.
type DataService interface {
	// Describe returns a readable description of the available data.
	Describe(ctx context.Context) (string, error)
	// Read executes a query and returns the result identifier plus preview.
	Read(ctx context.Context, q map[string]any) (query.ReadResult, error)
}

// ResultReader retrieves previously stored result sets by identifier.
type ResultReader interface {
	Get(id string) ([]map[string]any, error)
}

// Server is the MCP server for the Cube adapter.
type Server struct {
	mcpServer *server.MCPServer
	svc       DataService
	results   ResultReader
}

// NewServer creates a new MCP server.
func NewServer(svc DataService, results ResultReader) *Server {
	s := server.NewMCPServer(
		"cube-agent",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
	)

	srv := &Server{
		mcpServer: s,
		svc:       svc,
		results:   results,
	}
	srv.registerTools()
	srv.registerResources()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	describeTool := mcp.NewTool("describe_data",
		mcp.WithDescription("Describe the data available in Cube: every cube with its measures and dimensions. Call this before read_data to learn which names are valid in a query."),
	)

	readTool := mcp.NewTool("read_data",
		mcp.WithDescription("Read data from Cube. Returns a Data ID plus a readable preview of the rows; the full result set stays retrievable as the data://{id} resource."),
		mcp.WithObject("query",
			mcp.Required(),
			mcp.Description("Cube query object. Keys: measures (list of measure names), dimensions, timeDimensions, filters, limit, offset, order, ungrouped."),
		),
	)

	s.mcpServer.AddTool(describeTool, s.handleDescribeData)
	s.mcpServer.AddTool(readTool, s.handleReadData)
}

// registerResources registers the data description resource and the result
// set resource template.
func (s *Server) registerResources() {
	description := mcp.NewResource(
		"context://data_description",
		"Data Description",
		mcp.WithResourceDescription("Description of the data available via the read_data tool."),
		mcp.WithMIMEType("text/plain"),
	)
	s.mcpServer.AddResource(description, s.handleDataDescription)

	results := mcp.NewResourceTemplate(
		"data://{id}",
		"Query Results",
		mcp.WithTemplateDescription("Full JSON rows of a previous read_data call, addressed by its Data ID."),
		mcp.WithTemplateMIMEType("application/json"),
	)
	s.mcpServer.AddResourceTemplate(results, s.handleDataResource)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// handleDescribeData handles the describe_data tool call.
func (s *Server) handleDescribeData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.svc.Describe(ctx)
	if err != nil {
		return mcp.NewToolResultError(errorMessage(err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// handleReadData handles the read_data tool call.
func (s *Server) handleReadData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := request.GetArguments()["query"]
	if !ok {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	q, err := asQueryMap(raw)
	if err != nil {
		return mcp.NewToolResultError(errorMessage(err)), nil
	}

	res, err := s.svc.Read(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(errorMessage(err)), nil
	}
	return mcp.NewToolResultText(res.Preview), nil
}

// handleDataDescription serves the context://data_description resource.
func (s *Server) handleDataDescription(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := s.svc.Describe(ctx)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}

// handleDataResource serves data://{id} reads from the result store.
func (s *Server) handleDataResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id := strings.TrimPrefix(request.Params.URI, "data://")
	rows, err := s.results.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, id)
	}

	jsonBytes, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result set: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

// asQueryMap accepts the query argument as an object, or as a JSON string
// for clients that serialize nested arguments.
func asQueryMap(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		var q map[string]any
		if err := json.Unmarshal([]byte(v), &q); err != nil {
			return nil, fmt.Errorf("%w: query is not valid JSON", query.ErrEmptyQuery)
		}
		return q, nil
	default:
		return nil, query.ErrEmptyQuery
	}
}

// errorMessage renders an error for the tool caller. Transport failures get
// a generic message; timeouts note the query may still be running remotely.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, cube.ErrTransport):
		return "Error: could not reach the Cube API"
	case errors.Is(err, cube.ErrTimeout):
		return fmt.Sprintf("Error: %v; the query may still be running remotely", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
