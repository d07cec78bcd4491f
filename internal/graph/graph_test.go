package graph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSymbol(s *Store, id, name, file string) {
	s.AddNode(Node{ID: id, Name: name, Kind: "function", FilePath: file, StartLine: 1})
}

func TestResolveEdgesBasic(t *testing.T) {
	s := NewStore()
	addSymbol(s, "id-main", "main", "/p/b.py")
	addSymbol(s, "id-helper", "helper", "/p/a.py")
	s.AddCallByName("id-main", "helper")

	stats := s.ResolveEdges()
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 0, stats.Unresolved)

	callers := s.Callers("helper")
	require.Len(t, callers, 1)
	assert.Equal(t, "id-main", callers[0].ID)

	callees := s.Callees("main")
	require.Len(t, callees, 1)
	assert.Equal(t, "id-helper", callees[0].ID)

	// The drained placeholder is gone.
	_, placeholders := s.NodeCount()
	assert.Equal(t, 0, placeholders)
}

func TestResolveEdgesForwardReference(t *testing.T) {
	// Caller indexed before the callee exists anywhere.
	s := NewStore()
	addSymbol(s, "id-main", "main", "/p/b.py")
	s.AddCallByName("id-main", "helper")

	stats := s.ResolveEdges()
	assert.Equal(t, 1, stats.Unresolved)
	assert.Empty(t, s.Callers("helper"))

	// The callee shows up in a later run; the provisional edge resolves.
	addSymbol(s, "id-helper", "helper", "/p/a.py")
	stats = s.ResolveEdges()
	assert.Equal(t, 1, stats.Resolved)
	require.Len(t, s.Callers("helper"), 1)
}

func TestResolveEdgesFanOut(t *testing.T) {
	s := NewStore()
	addSymbol(s, "id-main", "main", "/p/m.py")
	addSymbol(s, "id-init-a", "init", "/p/a.py")
	addSymbol(s, "id-init-b", "init", "/p/b.py")
	s.AddCallByName("id-main", "init")

	stats := s.ResolveEdges()
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 2, stats.Added, "ambiguous name links to every definition")

	callees := s.Callees("main")
	assert.Len(t, callees, 2)
}

func TestResolveEdgesSkipsSelfLoop(t *testing.T) {
	s := NewStore()
	addSymbol(s, "id-fact", "factorial", "/p/a.py")
	s.AddCallByName("id-fact", "factorial")

	stats := s.ResolveEdges()
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 0, stats.Added, "recursion does not produce a self-edge")
	assert.Empty(t, s.Callees("factorial"))
}

func TestResolveEdgesIdempotent(t *testing.T) {
	s := NewStore()
	addSymbol(s, "id-main", "main", "/p/b.py")
	addSymbol(s, "id-helper", "helper", "/p/a.py")
	s.AddCallByName("id-main", "helper")

	s.ResolveEdges()
	stats := s.ResolveEdges()
	assert.Equal(t, ResolveStats{}, stats)

	calls, provisional := s.EdgeCount()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, provisional)
}

func TestDeleteByFile(t *testing.T) {
	s := NewStore()
	addSymbol(s, "id-main", "main", "/p/b.py")
	addSymbol(s, "id-helper", "helper", "/p/a.py")
	addSymbol(s, "id-other", "other", "/p/c.py")
	s.AddCallByName("id-main", "helper")
	s.AddCallByName("id-other", "missing")
	s.ResolveEdges()

	removed := s.DeleteByFile("/p/a.py")
	assert.Equal(t, 1, removed)

	// main's resolved edge is demoted to a provisional one, so the
	// callee shows up as a placeholder, not a resolved caller edge.
	assert.Empty(t, s.Callers("helper"))
	callees := s.Callees("main")
	require.Len(t, callees, 1)
	assert.True(t, callees[0].Placeholder())

	concrete, placeholders := s.NodeCount()
	assert.Equal(t, 2, concrete)
	assert.Equal(t, 2, placeholders, "demoted edge keeps its placeholder alive")

	// Deleting the last file pointing at a placeholder cleans it up.
	s.DeleteByFile("/p/c.py")
	_, placeholders = s.NodeCount()
	assert.Equal(t, 1, placeholders, "only main's demoted target remains")
}

func TestDeleteCalleeRelinksAfterReindex(t *testing.T) {
	s := NewStore()
	addSymbol(s, "id-main", "main", "/p/b.py")
	addSymbol(s, "id-helper-v1", "helper", "/p/a.py")
	s.AddCallByName("id-main", "helper")
	s.ResolveEdges()
	require.Len(t, s.Callers("helper"), 1)

	// Rewriting a.py deletes the old node and adds a replacement with a
	// new content-derived ID; the untouched caller must re-link.
	s.DeleteByFile("/p/a.py")
	addSymbol(s, "id-helper-v2", "helper", "/p/a.py")

	stats := s.ResolveEdges()
	assert.Equal(t, 1, stats.Resolved)

	callers := s.Callers("helper")
	require.Len(t, callers, 1)
	assert.Equal(t, "id-main", callers[0].ID)

	_, placeholders := s.NodeCount()
	assert.Equal(t, 0, placeholders)
}

func TestCallChain(t *testing.T) {
	// a -> b -> c -> a (cycle)
	s := NewStore()
	addSymbol(s, "id-a", "a", "/p/x.py")
	addSymbol(s, "id-b", "b", "/p/x.py")
	addSymbol(s, "id-c", "c", "/p/x.py")
	s.AddCallByName("id-a", "b")
	s.AddCallByName("id-b", "c")
	s.AddCallByName("id-c", "a")
	s.ResolveEdges()

	levels := s.CallChain("a", "callees", 5)
	require.Len(t, levels, 2, "cycle terminates at first revisit")
	assert.Equal(t, "b", levels[0].Nodes[0].Name)
	assert.Equal(t, "c", levels[1].Nodes[0].Name)

	up := s.CallChain("a", "callers", 1)
	require.Len(t, up, 1)
	assert.Equal(t, "c", up[0].Nodes[0].Name)

	assert.Empty(t, s.CallChain("nonexistent", "callees", 3))
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewStore()
	addSymbol(s, "id-main", "main", "/p/b.py")
	addSymbol(s, "id-helper", "helper", "/p/a.py")
	s.AddCallByName("id-main", "helper")
	s.AddCallByName("id-main", "unknown")
	s.ResolveEdges()

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	concrete, placeholders := loaded.NodeCount()
	assert.Equal(t, 2, concrete)
	assert.Equal(t, 1, placeholders)

	calls, provisional := loaded.EdgeCount()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, provisional, "provisional edges survive restarts")

	require.Len(t, loaded.Callers("helper"), 1)
}

func TestLoadMissingSnapshot(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	concrete, _ := s.NodeCount()
	assert.Equal(t, 0, concrete)
}
