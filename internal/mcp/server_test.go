package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arothstein/symdex/internal/embedder"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv(embedder.EnvEmbeddingProvider, embedder.ProviderLocal)

	s, err := NewServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.vector.Close() })
	return s
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"),
		[]byte("def helper():\n    \"\"\"Returns one.\"\"\"\n    return 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"),
		[]byte("def main():\n    return helper()\n"), 0644))
	return root
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &data))
	return data
}

func indexProject(t *testing.T, s *Server, root string) map[string]interface{} {
	t.Helper()
	res, err := s.handleIndexProject(context.Background(), toolRequest(map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)
	return resultJSON(t, res)
}

func TestIndexProjectTool(t *testing.T) {
	s := newTestServer(t)
	root := writeProject(t)

	data := indexProject(t, s, root)
	assert.EqualValues(t, 2, data["files_indexed"])
	assert.EqualValues(t, 2, data["symbols_extracted"])
	assert.EqualValues(t, 1, data["edges_resolved"])
	assert.NotContains(t, data, "errors")

	// Snapshots written after the run.
	assert.FileExists(t, filepath.Join(s.dataDir, graphFile))
	assert.FileExists(t, filepath.Join(s.dataDir, lexicalFile))
	assert.FileExists(t, filepath.Join(s.dataDir, registryFile))
}

func TestIndexProjectToolValidation(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleIndexProject(context.Background(), toolRequest(map[string]interface{}{}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleIndexProject(context.Background(), toolRequest(map[string]interface{}{
		"path": "relative/path",
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleIndexProject(context.Background(), toolRequest(map[string]interface{}{
		"path": filepath.Join(t.TempDir(), "missing"),
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)
}

func TestIndexProjectToolBusy(t *testing.T) {
	s := newTestServer(t)
	root := writeProject(t)

	require.True(t, s.indexLock.TryAcquire())
	defer s.indexLock.Release()

	_, err := s.handleIndexProject(context.Background(), toolRequest(map[string]interface{}{
		"path": root,
	}))
	requireMCPCode(t, err, ErrorCodeIndexingInProgress)
}

func TestSearchCodeTool(t *testing.T) {
	s := newTestServer(t)
	root := writeProject(t)
	indexProject(t, s, root)

	res, err := s.handleSearchCode(context.Background(), toolRequest(map[string]interface{}{
		"query":     "helper function returning one",
		"n_results": float64(5),
	}))
	require.NoError(t, err)

	data := resultJSON(t, res)
	results := data["results"].([]interface{})
	require.NotEmpty(t, results)

	first := results[0].(map[string]interface{})
	assert.Contains(t, []interface{}{"helper", "main"}, first["name"])
	assert.EqualValues(t, 1, first["rank"])
	assert.NotEmpty(t, first["content"])
}

func TestSearchCodeToolValidation(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSearchCode(context.Background(), toolRequest(map[string]interface{}{
		"query": "   ",
	}))
	requireMCPCode(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchCode(context.Background(), toolRequest(map[string]interface{}{
		"query":     "x",
		"n_results": float64(500),
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchCode(context.Background(), toolRequest(map[string]interface{}{
		"query": "x",
		"alpha": "high",
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)
}

func TestSearchCodeToolEmptyIndex(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleSearchCode(context.Background(), toolRequest(map[string]interface{}{
		"query": "anything",
	}))
	require.NoError(t, err)

	data := resultJSON(t, res)
	assert.EqualValues(t, 0, data["total_results"])
}

func TestGetCallersTool(t *testing.T) {
	s := newTestServer(t)
	root := writeProject(t)
	indexProject(t, s, root)

	res, err := s.handleGetCallers(context.Background(), toolRequest(map[string]interface{}{
		"name": "helper",
	}))
	require.NoError(t, err)

	data := resultJSON(t, res)
	callers := data["callers"].([]interface{})
	require.Len(t, callers, 1)
	caller := callers[0].(map[string]interface{})
	assert.Equal(t, "main", caller["name"])
	assert.Equal(t, true, caller["resolved"])
}

func TestGetCalleesTool(t *testing.T) {
	s := newTestServer(t)
	root := writeProject(t)
	indexProject(t, s, root)

	res, err := s.handleGetCallees(context.Background(), toolRequest(map[string]interface{}{
		"name": "main",
	}))
	require.NoError(t, err)

	data := resultJSON(t, res)
	callees := data["callees"].([]interface{})
	require.Len(t, callees, 1)
	assert.Equal(t, "helper", callees[0].(map[string]interface{})["name"])

	_, err = s.handleGetCallees(context.Background(), toolRequest(map[string]interface{}{}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)
}

func TestGetCallChainTool(t *testing.T) {
	s := newTestServer(t)
	root := writeProject(t)
	indexProject(t, s, root)

	res, err := s.handleGetCallChain(context.Background(), toolRequest(map[string]interface{}{
		"name":      "helper",
		"direction": "callers",
	}))
	require.NoError(t, err)

	data := resultJSON(t, res)
	chain := data["chain"].([]interface{})
	require.NotEmpty(t, chain)
	level := chain[0].(map[string]interface{})
	assert.EqualValues(t, 1, level["depth"])

	_, err = s.handleGetCallChain(context.Background(), toolRequest(map[string]interface{}{
		"name":      "helper",
		"direction": "sideways",
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleGetCallChain(context.Background(), toolRequest(map[string]interface{}{
		"name":      "helper",
		"max_depth": float64(99),
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)
}

func TestGetSymbolDefinitionTool(t *testing.T) {
	s := newTestServer(t)
	root := writeProject(t)
	indexProject(t, s, root)

	res, err := s.handleGetSymbolDefinition(context.Background(), toolRequest(map[string]interface{}{
		"name": "helper",
		"kind": "function",
	}))
	require.NoError(t, err)

	data := resultJSON(t, res)
	defs := data["definitions"].([]interface{})
	require.Len(t, defs, 1)
	def := defs[0].(map[string]interface{})
	assert.Equal(t, "function", def["kind"])
	assert.Contains(t, def["content"], "def helper")
	assert.EqualValues(t, 1, def["start_line"])

	_, err = s.handleGetSymbolDefinition(context.Background(), toolRequest(map[string]interface{}{
		"name": "no_such_symbol",
	}))
	requireMCPCode(t, err, ErrorCodeSymbolNotFound)

	_, err = s.handleGetSymbolDefinition(context.Background(), toolRequest(map[string]interface{}{
		"name": "helper",
		"kind": "blueprint",
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)
}

func TestGetModuleSummaryTool(t *testing.T) {
	s := newTestServer(t)
	root := writeProject(t)
	indexProject(t, s, root)

	res, err := s.handleGetModuleSummary(context.Background(), toolRequest(map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)

	data := resultJSON(t, res)
	assert.EqualValues(t, 2, data["file_count"])
	assert.EqualValues(t, 2, data["symbol_count"])

	files := data["files"].([]interface{})
	require.Len(t, files, 2)
	first := files[0].(map[string]interface{})
	assert.EqualValues(t, 1, first["symbol_count"])

	_, err = s.handleGetModuleSummary(context.Background(), toolRequest(map[string]interface{}{
		"path": filepath.Join(root, "nothing_here"),
	}))
	requireMCPCode(t, err, ErrorCodeNotIndexed)
}

func TestGetStatusTool(t *testing.T) {
	s := newTestServer(t)
	root := writeProject(t)
	indexProject(t, s, root)

	res, err := s.handleGetStatus(context.Background(), toolRequest(map[string]interface{}{}))
	require.NoError(t, err)

	data := resultJSON(t, res)
	assert.Equal(t, ServerName, data["server"])

	projects := data["projects"].([]interface{})
	require.Len(t, projects, 1)
	assert.Equal(t, root, projects[0].(map[string]interface{})["root"])
	assert.EqualValues(t, 2, projects[0].(map[string]interface{})["files"])

	stores := data["stores"].(map[string]interface{})
	assert.EqualValues(t, 2, stores["documents"])
	assert.EqualValues(t, 2, stores["lexical_documents"])
}

func TestLexicalResyncFromVectorStore(t *testing.T) {
	t.Setenv(embedder.EnvEmbeddingProvider, embedder.ProviderLocal)

	dataDir := t.TempDir()
	root := writeProject(t)

	s, err := NewServer(dataDir)
	require.NoError(t, err)
	indexProject(t, s, root)
	require.NoError(t, s.vector.Close())

	// Drop the lexical snapshot; a fresh server must rebuild it from
	// the vector store.
	require.NoError(t, os.Remove(filepath.Join(dataDir, lexicalFile)))

	s2, err := NewServer(dataDir)
	require.NoError(t, err)
	defer s2.vector.Close()

	assert.Equal(t, 2, s2.lexical.Len())
}

func requireMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok, "expected *MCPError, got %T", err)
	assert.Equal(t, code, mcpErr.Code)
}
