package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arothstein/symdex/internal/searcher"
)

func indexedEnv(t *testing.T) *env {
	t.Helper()
	e := newEnv(t)
	e.write(t, "src/auth.py", "def validate_token(token):\n    \"\"\"Validate an auth token signature.\"\"\"\n    return token != \"\"\n")
	e.write(t, "src/db.py", "def open_connection(dsn):\n    \"\"\"Open a database connection.\"\"\"\n    return dsn\n")
	e.write(t, "util.py", "def format_output(rows):\n    \"\"\"Format rows for display.\"\"\"\n    return rows\n")

	_, err := e.idx.IndexProject(context.Background(), e.root, nil)
	require.NoError(t, err)
	return e
}

func TestHybridSearchRanksTokenOverlapFirst(t *testing.T) {
	e := indexedEnv(t)

	resp, err := e.engine.Search(context.Background(), searcher.Request{
		Query: "validate auth token",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, "validate_token", top.Meta.Name)
	assert.Equal(t, 1, top.Rank)
	assert.Positive(t, top.Score)
	assert.False(t, resp.CacheHit)
}

func TestSearchAlphaExtremes(t *testing.T) {
	e := indexedEnv(t)
	ctx := context.Background()

	pure := 1.0
	vecOnly, err := e.engine.Search(ctx, searcher.Request{
		Query: "database connection",
		Alpha: &pure,
	})
	require.NoError(t, err)
	require.NotEmpty(t, vecOnly.Results)
	assert.Equal(t, "open_connection", vecOnly.Results[0].Meta.Name)
	for _, r := range vecOnly.Results {
		assert.Equal(t, r.VectorScore, r.Score)
	}

	zero := 0.0
	lexOnly, err := e.engine.Search(ctx, searcher.Request{
		Query: "database connection",
		Alpha: &zero,
	})
	require.NoError(t, err)
	require.NotEmpty(t, lexOnly.Results)
	assert.Equal(t, "open_connection", lexOnly.Results[0].Meta.Name)
	// With alpha 0, the fused score is the normalized lexical score.
	assert.InDelta(t, 1.0, lexOnly.Results[0].Score, 1e-9)
}

func TestSearchFilePatternFilter(t *testing.T) {
	e := indexedEnv(t)

	resp, err := e.engine.Search(context.Background(), searcher.Request{
		Query:       "format display rows",
		FilePattern: "src/**/*.py",
	})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotEqual(t, "format_output", r.Meta.Name)
	}
}

func TestSearchNResultsTruncation(t *testing.T) {
	e := indexedEnv(t)

	resp, err := e.engine.Search(context.Background(), searcher.Request{
		Query:    "def",
		NResults: 1,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), 1)
	assert.GreaterOrEqual(t, resp.VectorCandidates, len(resp.Results))
}

func TestSearchCacheRoundTrip(t *testing.T) {
	e := indexedEnv(t)
	ctx := context.Background()

	req := searcher.Request{Query: "validate auth token", UseCache: true}
	first, err := e.engine.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := e.engine.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	require.Equal(t, len(first.Results), len(second.Results))
	if len(first.Results) > 0 {
		assert.Equal(t, first.Results[0].ID, second.Results[0].ID)
	}
}
