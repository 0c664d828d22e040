package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/cube-pilot/internal/orchestrator"
)

// handleRunQuery runs the full pipeline for one natural language question.
func (s *Server) handleRunQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := s.orch.ProcessQuery(ctx, sessionID, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatResult(result)), nil
}

// handleGetSchema returns the catalog summary.
func (s *Server) handleGetSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog := s.orch.Catalog()
	if catalog == nil {
		return mcp.NewToolResultError("schema metadata not loaded; check the Cube API connection"), nil
	}

	data, err := json.MarshalIndent(catalog.Summarize(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to serialize schema: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleSearchSchema performs semantic search over the indexed schema fields.
func (s *Server) handleSearchSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.searcher == nil {
		return mcp.NewToolResultError("schema search is not configured; an embedding provider is required"), nil
	}

	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	limit := request.GetInt("limit", 5)

	results, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No matching schema fields found. Run `cubepilot schema --index` to build the search index."), nil
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [%s] %s (similarity %.2f)\n", i+1, r.Kind, r.Field.Name, r.Similarity)
		if r.Field.Title != "" {
			fmt.Fprintf(&b, "   Title: %s\n", r.Field.Title)
		}
		if r.Field.Description != "" {
			fmt.Fprintf(&b, "   Description: %s\n", r.Field.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// formatResult renders a processing result for tool output.
func formatResult(result *orchestrator.ProcessingResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", result.SessionID)

	switch result.ResponseType {
	case orchestrator.ResultData:
		if result.Description != "" {
			fmt.Fprintf(&b, "Query: %s\n", result.Description)
		}
		fmt.Fprintf(&b, "Rows: %d\n\n", result.Result.RowCount)
		if data, err := json.MarshalIndent(result.Result.Rows, "", "  "); err == nil {
			b.Write(data)
			b.WriteString("\n")
		}
	case orchestrator.ResultClarification:
		fmt.Fprintf(&b, "Clarification needed: %s\n", result.Message)
		for _, q := range result.Questions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		if len(result.Suggestions) > 0 {
			fmt.Fprintf(&b, "Suggestions: %s\n", strings.Join(result.Suggestions, ", "))
		}
		b.WriteString("Reply via run_query with the same session_id to answer.\n")
	default:
		fmt.Fprintf(&b, "Error (%s): %s\n", result.ResponseType, result.Error)
	}
	return b.String()
}
