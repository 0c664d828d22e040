package mcp

import "github.com/mark3labs/mcp-go/mcp"

// runQueryTool defines the run_query MCP tool.
var runQueryTool = mcp.NewTool("run_query",
	mcp.WithDescription("Answer a natural language analytics question by generating, validating, and executing a Cube query. Returns the result rows or a clarification request."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language question, e.g. 'total revenue by venue last month'"),
	),
	mcp.WithString("session_id",
		mcp.Description("Session identifier to continue an earlier conversation; omit to start a new one"),
	),
)

// getSchemaTool defines the get_schema MCP tool.
var getSchemaTool = mcp.NewTool("get_schema",
	mcp.WithDescription("Get the available measures, dimensions, and time dimensions of the configured Cube view."),
)

// searchSchemaTool defines the search_schema MCP tool.
var searchSchemaTool = mcp.NewTool("search_schema",
	mcp.WithDescription("Semantically search schema fields by meaning, matching titles and descriptions rather than exact names."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language description of the field to find"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
)
