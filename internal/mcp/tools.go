package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/arothstein/symdex/internal/graph"
	"github.com/arothstein/symdex/internal/indexer"
	"github.com/arothstein/symdex/internal/searcher"
	"github.com/arothstein/symdex/internal/storage"
	"github.com/arothstein/symdex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32001 // Another indexing run is already active
	ErrorCodeNotIndexed         = -32002 // Path has no indexed symbols
	ErrorCodeSymbolNotFound     = -32003 // No symbol matches the name
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleIndexProject handles the index_project tool invocation
func (s *Server) handleIndexProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	if !s.indexLock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "an indexing run is already in progress", nil)
	}
	defer s.indexLock.Release()

	config := &indexer.Config{
		Force:   getBoolDefault(args, "force", false),
		Workers: getIntDefault(args, "workers", 0),
	}

	stats, err := s.indexer.IndexProject(ctx, path, config)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.engine.InvalidateCache()
	snapshotErrs := s.saveSnapshots()

	response := map[string]interface{}{
		"project_root":      path,
		"files_indexed":     stats.FilesIndexed,
		"files_skipped":     stats.FilesSkipped,
		"files_failed":      stats.FilesFailed,
		"files_deleted":     stats.FilesDeleted,
		"symbols_extracted": stats.SymbolsExtracted,
		"edges_resolved":    stats.EdgesResolved,
		"edges_added":       stats.EdgesAdded,
		"edges_unresolved":  stats.EdgesUnresolved,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if msgs := capMessages(append(stats.ErrorMessages, snapshotErrs...)); len(msgs) > 0 {
		response["errors"] = msgs
		response["error_count"] = len(stats.ErrorMessages) + len(snapshotErrs)
	}
	if msgs := capMessages(stats.Warnings); len(msgs) > 0 {
		response["warnings"] = msgs
		response["warning_count"] = len(stats.Warnings)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	req := searcher.Request{
		Query:       query,
		NResults:    getIntDefault(args, "n_results", searcher.DefaultNResults),
		ProjectRoot: getStringDefault(args, "project_root", ""),
		FilePattern: getStringDefault(args, "file_pattern", ""),
		UseCache:    getBoolDefault(args, "use_cache", true),
	}

	if req.NResults < 1 || req.NResults > searcher.MaxNResults {
		return nil, newMCPError(ErrorCodeInvalidParams, "n_results must be between 1 and 100", map[string]interface{}{
			"param": "n_results",
			"value": req.NResults,
		})
	}

	if raw, present := args["alpha"]; present {
		alpha, ok := raw.(float64)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "alpha must be a number", map[string]interface{}{
				"param": "alpha",
			})
		}
		req.Alpha = &alpha
	}

	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = map[string]interface{}{
			"id":            r.ID,
			"rank":          r.Rank,
			"score":         r.Score,
			"vector_score":  r.VectorScore,
			"lexical_score": r.LexicalScore,
			"name":          r.Meta.Name,
			"kind":          r.Meta.Kind,
			"file_path":     r.Meta.FilePath,
			"start_line":    r.Meta.StartLine + 1, // 1-based for display
			"end_line":      r.Meta.EndLine + 1,
			"language":      r.Meta.Language,
			"content":       r.Content,
		}
		if r.Meta.ParentName != "" {
			results[i]["parent"] = r.Meta.ParentName
		}
		if r.Meta.Signature != "" {
			results[i]["signature"] = r.Meta.Signature
		}
	}

	response := map[string]interface{}{
		"query":             query,
		"results":           results,
		"total_results":     len(results),
		"vector_candidates": resp.VectorCandidates,
		"lexical_matches":   resp.LexicalMatches,
		"cache_hit":         resp.CacheHit,
		"duration_ms":       resp.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetCallers handles the get_callers tool invocation
func (s *Server) handleGetCallers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireName(request)
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"name":    name,
		"callers": nodesToMaps(s.graph.Callers(name)),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetCallees handles the get_callees tool invocation
func (s *Server) handleGetCallees(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireName(request)
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"name":    name,
		"callees": nodesToMaps(s.graph.Callees(name)),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetCallChain handles the get_call_chain tool invocation
func (s *Server) handleGetCallChain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	direction := getStringDefault(args, "direction", "callers")
	if direction != "callers" && direction != "callees" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid direction", map[string]interface{}{
			"param":   "direction",
			"value":   direction,
			"allowed": []string{"callers", "callees"},
		})
	}

	maxDepth := getIntDefault(args, "max_depth", 5)
	if maxDepth < 1 || maxDepth > 20 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_depth must be between 1 and 20", map[string]interface{}{
			"param": "max_depth",
			"value": maxDepth,
		})
	}

	levels := s.graph.CallChain(name, direction, maxDepth)
	chain := make([]map[string]interface{}, len(levels))
	for i, level := range levels {
		chain[i] = map[string]interface{}{
			"depth":   level.Depth,
			"symbols": nodesToMaps(level.Nodes),
		}
	}

	response := map[string]interface{}{
		"name":      name,
		"direction": direction,
		"max_depth": maxDepth,
		"chain":     chain,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetSymbolDefinition handles the get_symbol_definition tool invocation
func (s *Server) handleGetSymbolDefinition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	kind := getStringDefault(args, "kind", "")
	if kind != "" {
		probe := types.SymbolRecord{Kind: types.SymbolKind(kind)}
		if err := probe.ValidateKind(); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid kind", map[string]interface{}{
				"param": "kind",
				"value": kind,
			})
		}
	}

	docs, err := s.vector.GetByName(ctx, name, kind)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if len(docs) == 0 {
		return nil, newMCPError(ErrorCodeSymbolNotFound, fmt.Sprintf("no symbol named %q", name), map[string]interface{}{
			"name": name,
			"kind": kind,
		})
	}

	definitions := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		def := map[string]interface{}{
			"id":         doc.ID,
			"name":       doc.Meta.Name,
			"kind":       doc.Meta.Kind,
			"file_path":  doc.Meta.FilePath,
			"start_line": doc.Meta.StartLine + 1,
			"end_line":   doc.Meta.EndLine + 1,
			"language":   doc.Meta.Language,
			"content":    doc.Content,
		}
		if doc.Meta.Signature != "" {
			def["signature"] = doc.Meta.Signature
		}
		if doc.Meta.ParentName != "" {
			def["parent"] = doc.Meta.ParentName
		}
		if doc.Meta.ReturnType != "" {
			def["return_type"] = doc.Meta.ReturnType
		}
		if len(doc.Meta.Parameters) > 0 {
			def["parameters"] = doc.Meta.Parameters
		}
		definitions[i] = def
	}

	response := map[string]interface{}{
		"name":        name,
		"definitions": definitions,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetModuleSummary handles the get_module_summary tool invocation
func (s *Server) handleGetModuleSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if !filepath.IsAbs(path) {
		return nil, newMCPError(ErrorCodeInvalidParams, "path must be absolute", map[string]interface{}{
			"param": "path",
			"value": path,
		})
	}

	docs, err := s.vector.GetByPathPrefix(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if len(docs) == 0 {
		return nil, newMCPError(ErrorCodeNotIndexed, "no indexed symbols under path", map[string]interface{}{
			"path": path,
		})
	}

	type fileSummary struct {
		symbols []map[string]interface{}
		kinds   map[string]int
	}

	byFile := make(map[string]*fileSummary)
	for _, doc := range docs {
		fs := byFile[doc.Meta.FilePath]
		if fs == nil {
			fs = &fileSummary{kinds: make(map[string]int)}
			byFile[doc.Meta.FilePath] = fs
		}
		fs.kinds[string(doc.Meta.Kind)]++
		entry := map[string]interface{}{
			"name":       doc.Meta.Name,
			"kind":       doc.Meta.Kind,
			"start_line": doc.Meta.StartLine + 1,
		}
		if doc.Meta.Signature != "" {
			entry["signature"] = doc.Meta.Signature
		}
		if doc.Meta.ParentName != "" {
			entry["parent"] = doc.Meta.ParentName
		}
		fs.symbols = append(fs.symbols, entry)
	}

	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make([]map[string]interface{}, len(paths))
	for i, p := range paths {
		files[i] = map[string]interface{}{
			"file_path":    p,
			"symbol_count": len(byFile[p].symbols),
			"kind_counts":  byFile[p].kinds,
			"symbols":      byFile[p].symbols,
		}
	}

	response := map[string]interface{}{
		"path":         path,
		"file_count":   len(files),
		"symbol_count": len(docs),
		"files":        files,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docCount, err := s.vector.Count(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read vector store", map[string]interface{}{
			"error": err.Error(),
		})
	}

	projects := make([]map[string]interface{}, 0, len(s.registry.Projects))
	roots := make([]string, 0, len(s.registry.Projects))
	for root := range s.registry.Projects {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	for _, root := range roots {
		entry := s.registry.Projects[root]
		projects = append(projects, map[string]interface{}{
			"root":       root,
			"files":      len(entry.Files),
			"indexed_at": entry.IndexedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	concrete, placeholders := s.graph.NodeCount()
	calls, callsByName := s.graph.EdgeCount()

	response := map[string]interface{}{
		"server":   ServerName,
		"version":  ServerVersion,
		"data_dir": s.dataDir,
		"projects": projects,
		"stores": map[string]interface{}{
			"documents":              docCount,
			"lexical_documents":      s.lexical.Len(),
			"graph_nodes":            concrete,
			"graph_placeholders":     placeholders,
			"graph_calls":            calls,
			"graph_unresolved_calls": callsByName,
		},
		"embedding": map[string]interface{}{
			"provider":  s.embedder.Provider(),
			"model":     s.embedder.Model(),
			"dimension": s.embedder.Dimension(),
		},
		"build": map[string]interface{}{
			"sqlite_driver":    storage.DriverName,
			"mode":             storage.BuildMode,
			"vector_extension": storage.VectorExtensionAvailable,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requirePath extracts and validates the "path" argument for tools
// that operate on a project directory.
func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	return path, nil
}

// requireName extracts the "name" argument for the graph tools.
func requireName(request mcp.CallToolRequest) (string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	return name, nil
}

// nodesToMaps turns graph nodes into JSON-friendly maps. Placeholder
// nodes carry only a name.
func nodesToMaps(nodes []graph.Node) []map[string]interface{} {
	out := make([]map[string]interface{}, len(nodes))
	for i, n := range nodes {
		m := map[string]interface{}{
			"name": n.Name,
		}
		if n.Placeholder() {
			m["resolved"] = false
		} else {
			m["resolved"] = true
			m["id"] = n.ID
			m["kind"] = n.Kind
			m["file_path"] = n.FilePath
			m["start_line"] = n.StartLine + 1
		}
		out[i] = m
	}
	return out
}

// capMessages truncates long message lists for tool responses.
func capMessages(msgs []string) []string {
	if len(msgs) > 5 {
		return msgs[:5]
	}
	return msgs
}

// validatePath checks that a path is an absolute, readable directory.
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
