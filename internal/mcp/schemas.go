package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexProjectTool returns the tool definition for index_project
func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Index a Python/C/C++ project to make its symbols searchable. Incremental: only new, changed, and deleted files are processed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, reindex every file regardless of recorded fingerprints",
					"default":     false,
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Concurrent file workers (default: number of CPUs)",
					"minimum":     1,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Hybrid semantic + keyword search over indexed symbols. Vector similarity selects candidates; BM25 re-ranks within them.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language or keyword query",
				},
				"n_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
				"alpha": map[string]interface{}{
					"type":        "number",
					"description": "Weight of vector similarity vs keyword score (0.0 = keyword re-rank only, 1.0 = vector only)",
					"default":     0.7,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"project_root": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one indexed project root",
				},
				"file_pattern": map[string]interface{}{
					"type":        "string",
					"description": "Glob over relative file paths (e.g. 'src/**/*.py')",
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "Serve repeated queries from the response cache",
					"default":     true,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getCallersTool returns the tool definition for get_callers
func getCallersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_callers",
		Description: "List symbols whose bodies call the named function or method",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name or symbol ID",
				},
			},
			Required: []string{"name"},
		},
	}
}

// getCalleesTool returns the tool definition for get_callees
func getCalleesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_callees",
		Description: "List symbols the named function or method calls, including unresolved callee names",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name or symbol ID",
				},
			},
			Required: []string{"name"},
		},
	}
}

// getCallChainTool returns the tool definition for get_call_chain
func getCallChainTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_call_chain",
		Description: "Walk the call graph breadth-first from a symbol, up through callers or down through callees",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name or symbol ID to start from",
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"description": "Walk direction",
					"enum":        []string{"callers", "callees"},
					"default":     "callers",
				},
				"max_depth": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum levels to walk",
					"default":     5,
					"minimum":     1,
					"maximum":     20,
				},
			},
			Required: []string{"name"},
		},
	}
}

// getSymbolDefinitionTool returns the tool definition for get_symbol_definition
func getSymbolDefinitionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_symbol_definition",
		Description: "Look up a symbol by exact name and return its source, signature, and location",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Exact symbol name",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to one symbol kind",
					"enum": []string{
						"function", "method", "class", "struct", "enum",
						"typedef", "macro", "global_var", "function_decl",
					},
				},
			},
			Required: []string{"name"},
		},
	}
}

// getModuleSummaryTool returns the tool definition for get_module_summary
func getModuleSummaryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_module_summary",
		Description: "Summarize indexed symbols under a file or directory path, grouped by file with per-kind counts",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute file or directory path",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report indexed projects, store sizes, and build configuration",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
