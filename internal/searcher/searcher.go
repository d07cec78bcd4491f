// Package searcher fuses vector similarity with BM25 keyword scores.
// The vector store picks the candidate set; the lexical store only
// re-ranks within it. A symbol the embedding search never surfaces
// cannot appear in results no matter how strong its keyword match.
package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arothstein/symdex/internal/embedder"
	"github.com/arothstein/symdex/internal/storage"
	"github.com/arothstein/symdex/pkg/types"
)

const (
	// DefaultNResults is the result count when the caller does not ask
	// for one.
	DefaultNResults = 5
	// DefaultAlpha weights vector similarity against keyword score.
	DefaultAlpha = 0.7
	// MaxNResults caps a single request.
	MaxNResults = 100

	cacheSize = 1000
	cacheTTL  = 1 * time.Hour
)

// VectorSearcher is the candidate source. Satisfied by *storage.Store.
type VectorSearcher interface {
	Search(ctx context.Context, queryVector []float32, limit int, filter *storage.Filter) ([]storage.Candidate, error)
}

// LexicalSearcher scores a query against the keyword index. Satisfied
// by *lexical.Store.
type LexicalSearcher interface {
	Search(query string) map[string]float64
}

// Request describes one hybrid search.
type Request struct {
	Query       string
	NResults    int      // defaults to DefaultNResults
	Alpha       *float64 // nil means DefaultAlpha; clamped to [0,1]
	ProjectRoot string   // optional filter
	FilePattern string   // optional doublestar glob over relative paths
	UseCache    bool
}

// Response carries fused results plus retrieval metadata.
type Response struct {
	Results          []types.SearchResult
	VectorCandidates int
	LexicalMatches   int
	Duration         time.Duration
	CacheHit         bool
}

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Engine coordinates hybrid retrieval over the vector and lexical
// stores.
type Engine struct {
	vector   VectorSearcher
	lexical  LexicalSearcher
	embedder embedder.Embedder

	cacheMu sync.RWMutex
	cache   *lru.Cache[[32]byte, *cacheEntry]
}

// NewEngine creates a search engine over the given stores.
func NewEngine(vector VectorSearcher, lexical LexicalSearcher, emb embedder.Embedder) *Engine {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		// Only possible with a non-positive size.
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Engine{
		vector:   vector,
		lexical:  lexical,
		embedder: emb,
		cache:    cache,
	}
}

// Search runs a hybrid query. Vector candidates are over-fetched at
// twice the requested count, scored against the lexical index, fused,
// and truncated.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := normalizeRequest(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := e.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	resp, err := e.hybridSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Duration = time.Since(start)

	if req.UseCache {
		e.storeInCache(req, resp)
	}

	return resp, nil
}

func normalizeRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}

	if req.NResults <= 0 {
		req.NResults = DefaultNResults
	}
	if req.NResults > MaxNResults {
		req.NResults = MaxNResults
	}

	alpha := DefaultAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
		if alpha < 0 {
			alpha = 0
		} else if alpha > 1 {
			alpha = 1
		}
	}
	req.Alpha = &alpha

	if req.FilePattern != "" {
		if !doublestar.ValidatePattern(req.FilePattern) {
			return fmt.Errorf("invalid file pattern %q", req.FilePattern)
		}
	}

	return nil
}

type retrieval struct {
	candidates []storage.Candidate
	scores     map[string]float64
	err        error
}

func (e *Engine) hybridSearch(ctx context.Context, req Request) (*Response, error) {
	vectorChan := make(chan retrieval, 1)
	lexicalChan := make(chan retrieval, 1)

	go func() {
		var r retrieval
		emb, err := e.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
		if err != nil {
			r.err = fmt.Errorf("failed to embed query: %w", err)
		} else {
			var filter *storage.Filter
			if req.ProjectRoot != "" {
				filter = &storage.Filter{ProjectRoot: req.ProjectRoot}
			}
			r.candidates, r.err = e.vector.Search(ctx, emb.Vector, req.NResults*2, filter)
		}
		vectorChan <- r
	}()

	go func() {
		lexicalChan <- retrieval{scores: e.lexical.Search(req.Query)}
	}()

	var vectorRes, lexicalRes retrieval
	for done := 0; done < 2; {
		select {
		case vectorRes = <-vectorChan:
			done++
		case lexicalRes = <-lexicalChan:
			done++
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if vectorRes.err != nil {
		return nil, vectorRes.err
	}

	candidates := vectorRes.candidates
	if req.FilePattern != "" {
		candidates = filterByPattern(candidates, req.FilePattern)
	}

	results := fuse(candidates, lexicalRes.scores, *req.Alpha)
	if len(results) > req.NResults {
		results = results[:req.NResults]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	return &Response{
		Results:          results,
		VectorCandidates: len(vectorRes.candidates),
		LexicalMatches:   len(lexicalRes.scores),
	}, nil
}

func filterByPattern(candidates []storage.Candidate, pattern string) []storage.Candidate {
	kept := candidates[:0:0]
	for _, c := range candidates {
		rel := c.Doc.Meta.RelativePath
		if rel == "" {
			rel = c.Doc.Meta.FilePath
		}
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			kept = append(kept, c)
		}
	}
	return kept
}

// fuse scores each vector candidate as a weighted sum of its inverted
// distance and its BM25 score normalized against the strongest keyword
// hit within the candidate set.
func fuse(candidates []storage.Candidate, lexScores map[string]float64, alpha float64) []types.SearchResult {
	if len(candidates) == 0 {
		return nil
	}

	maxLex := 0.0
	for _, c := range candidates {
		if s := lexScores[c.Doc.ID]; s > maxLex {
			maxLex = s
		}
	}

	results := make([]types.SearchResult, len(candidates))
	for i, c := range candidates {
		vecScore := 1.0 / (1.0 + c.Distance)

		lexScore := 0.0
		if maxLex > 0 {
			lexScore = lexScores[c.Doc.ID] / maxLex
		}

		results[i] = types.SearchResult{
			ID:           c.Doc.ID,
			Score:        alpha*vecScore + (1-alpha)*lexScore,
			VectorScore:  vecScore,
			LexicalScore: lexScore,
			Content:      c.Doc.Content,
			Meta:         c.Doc.Meta,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results
}

// InvalidateCache drops every cached response. Called after indexing
// runs; per-project eviction is not worth tracking keys for.
func (e *Engine) InvalidateCache() {
	e.cacheMu.Lock()
	e.cache.Purge()
	e.cacheMu.Unlock()
}

func (e *Engine) checkCache(req Request) *Response {
	hash := queryHash(req)
	now := time.Now()

	e.cacheMu.RLock()
	entry, found := e.cache.Get(hash)
	if !found {
		e.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		e.cacheMu.RUnlock()
		e.cacheMu.Lock()
		e.cache.Remove(hash)
		e.cacheMu.Unlock()
		return nil
	}

	resp := copyResponse(entry.response)
	e.cacheMu.RUnlock()
	return resp
}

func (e *Engine) storeInCache(req Request, resp *Response) {
	entry := &cacheEntry{
		response:  copyResponse(resp),
		expiresAt: time.Now().Add(cacheTTL),
	}

	e.cacheMu.Lock()
	e.cache.Add(queryHash(req), entry)
	e.cacheMu.Unlock()
}

// copyResponse deep-copies a response so cache entries cannot be
// mutated by callers.
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}

	dst := &Response{
		VectorCandidates: src.VectorCandidates,
		LexicalMatches:   src.LexicalMatches,
		Duration:         src.Duration,
		CacheHit:         src.CacheHit,
		Results:          make([]types.SearchResult, len(src.Results)),
	}

	for i, r := range src.Results {
		cp := r
		cp.Meta.Imports = append([]string(nil), r.Meta.Imports...)
		cp.Meta.Parameters = append([]string(nil), r.Meta.Parameters...)
		cp.Meta.CalledNames = append([]string(nil), r.Meta.CalledNames...)
		dst.Results[i] = cp
	}

	return dst
}

func queryHash(req Request) [32]byte {
	var b strings.Builder
	b.WriteString(req.Query)
	b.WriteString("|")
	fmt.Fprintf(&b, "%d|%.4f|", req.NResults, *req.Alpha)
	b.WriteString(req.ProjectRoot)
	b.WriteString("|")
	b.WriteString(req.FilePattern)
	return sha256.Sum256([]byte(b.String()))
}
