package strategy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arothstein/symdex/internal/embedder"
	"github.com/arothstein/symdex/internal/graph"
	"github.com/arothstein/symdex/internal/lexical"
	"github.com/arothstein/symdex/internal/storage"
	"github.com/arothstein/symdex/pkg/types"
)

func sampleRecords(file string) []types.SymbolRecord {
	return []types.SymbolRecord{
		{
			ID:        "aaaaaaaaaaaaaaaa",
			Name:      "helper",
			Kind:      types.KindFunction,
			FilePath:  file,
			StartLine: 0,
			EndLine:   1,
			Language:  "python",
			Content:   "def helper():\n    return 1",
			Signature: "def helper()",
		},
		{
			ID:          "bbbbbbbbbbbbbbbb",
			Name:        "main",
			Kind:        types.KindFunction,
			FilePath:    file,
			StartLine:   3,
			EndLine:     4,
			Language:    "python",
			Content:     "def main():\n    return helper()",
			Signature:   "def main()",
			CalledNames: []string{"helper"},
		},
	}
}

func TestVectorStrategyIndexAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewStore(filepath.Join(dir, "vectors.db"))
	require.NoError(t, err)
	defer store.Close()

	root := filepath.Join(dir, "project")
	file := filepath.Join(root, "pkg", "a.py")

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	strat := NewVectorStrategy(store, emb, root)
	assert.Equal(t, "vector", strat.Name())

	ctx := context.Background()
	require.NoError(t, strat.Index(ctx, file, sampleRecords(file)))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	doc, err := store.GetByID(ctx, "bbbbbbbbbbbbbbbb")
	require.NoError(t, err)
	assert.Equal(t, root, doc.Meta.ProjectRoot)
	assert.Equal(t, "pkg/a.py", doc.Meta.RelativePath)
	assert.Contains(t, doc.EmbedText, "def main()")
	assert.Equal(t, []string{"helper"}, doc.Meta.CalledNames)

	require.NoError(t, strat.Delete(ctx, file))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestVectorStrategyEmptyRecords(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewStore(filepath.Join(dir, "vectors.db"))
	require.NoError(t, err)
	defer store.Close()

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	strat := NewVectorStrategy(store, emb, dir)
	require.NoError(t, strat.Index(context.Background(), "empty.py", nil))
}

func TestLexicalStrategyIndexAndDelete(t *testing.T) {
	store := lexical.NewStore()
	strat := NewLexicalStrategy(store)
	assert.Equal(t, "lexical", strat.Name())

	ctx := context.Background()
	require.NoError(t, strat.Index(ctx, "a.py", sampleRecords("a.py")))
	assert.Equal(t, 2, store.Len())

	hits := store.Search("helper")
	assert.NotEmpty(t, hits)

	require.NoError(t, strat.Delete(ctx, "a.py"))
	assert.Equal(t, 0, store.Len())
}

func TestGraphStrategyIndexAndDelete(t *testing.T) {
	store := graph.NewStore()
	strat := NewGraphStrategy(store)
	assert.Equal(t, "graph", strat.Name())

	ctx := context.Background()
	require.NoError(t, strat.Index(ctx, "a.py", sampleRecords("a.py")))

	stats := store.ResolveEdges()
	assert.Equal(t, 1, stats.Resolved)

	callers := store.Callers("helper")
	require.Len(t, callers, 1)
	assert.Equal(t, "main", callers[0].Name)

	require.NoError(t, strat.Delete(ctx, "a.py"))
	concrete, _ := store.NodeCount()
	assert.Equal(t, 0, concrete)
}
