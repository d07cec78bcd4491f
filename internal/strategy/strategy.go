// Package strategy defines the per-store indexing contract. The indexer
// drives every strategy with the same symbol records and IDs, so the
// vector, lexical, and graph stores always agree on identity. Deletes
// run before re-indexing a changed file; ordering within one file is
// the only ordering that matters.
package strategy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/arothstein/symdex/internal/embedder"
	"github.com/arothstein/symdex/internal/graph"
	"github.com/arothstein/symdex/internal/lexical"
	"github.com/arothstein/symdex/internal/storage"
	"github.com/arothstein/symdex/pkg/types"
)

// Strategy indexes one file's symbols into a backing store.
type Strategy interface {
	// Name identifies the strategy in logs and statistics.
	Name() string
	// Index adds records extracted from filePath. Records carry
	// assigned IDs.
	Index(ctx context.Context, filePath string, records []types.SymbolRecord) error
	// Delete removes everything previously indexed for filePath.
	Delete(ctx context.Context, filePath string) error
}

// ---- vector ----

// VectorStrategy embeds symbols and stores them in the document store.
type VectorStrategy struct {
	store       *storage.Store
	embedder    embedder.Embedder
	projectRoot string
}

// NewVectorStrategy creates a vector strategy scoped to one project root.
func NewVectorStrategy(store *storage.Store, emb embedder.Embedder, projectRoot string) *VectorStrategy {
	return &VectorStrategy{store: store, embedder: emb, projectRoot: projectRoot}
}

func (v *VectorStrategy) Name() string { return "vector" }

func (v *VectorStrategy) Index(ctx context.Context, filePath string, records []types.SymbolRecord) error {
	if len(records) == 0 {
		return nil
	}

	rel, err := filepath.Rel(v.projectRoot, filePath)
	if err != nil {
		rel = filePath
	}
	rel = filepath.ToSlash(rel)

	docs := make([]types.Document, len(records))
	texts := make([]string, len(records))
	for i := range records {
		r := &records[i]
		texts[i] = types.BuildEmbedText(r)
		docs[i] = types.Document{
			ID:        r.ID,
			EmbedText: texts[i],
			Content:   r.Content,
			Meta: types.Metadata{
				FilePath:     r.FilePath,
				ProjectRoot:  v.projectRoot,
				RelativePath: rel,
				Name:         r.Name,
				Kind:         r.Kind,
				Language:     r.Language,
				StartLine:    r.StartLine,
				EndLine:      r.EndLine,
				ParentName:   r.ParentName,
				Signature:    r.Signature,
				ReturnType:   r.ReturnType,
				Imports:      r.Imports,
				Parameters:   r.Parameters,
				CalledNames:  r.CalledNames,
			},
		}
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedder.DefaultBatchSize {
		end := start + embedder.DefaultBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := v.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts[start:end]})
		if err != nil {
			return fmt.Errorf("failed to embed %s: %w", filePath, err)
		}
		for _, emb := range resp.Embeddings {
			embeddings = append(embeddings, emb.Vector)
		}
	}

	return v.store.Add(ctx, docs, embeddings)
}

func (v *VectorStrategy) Delete(ctx context.Context, filePath string) error {
	_, err := v.store.DeleteByFilePath(ctx, filePath)
	return err
}

// ---- lexical ----

// LexicalStrategy mirrors the embedding text into the BM25 index so
// keyword hits line up with vector hits by ID.
type LexicalStrategy struct {
	store *lexical.Store
}

// NewLexicalStrategy creates a lexical strategy.
func NewLexicalStrategy(store *lexical.Store) *LexicalStrategy {
	return &LexicalStrategy{store: store}
}

func (l *LexicalStrategy) Name() string { return "lexical" }

func (l *LexicalStrategy) Index(ctx context.Context, filePath string, records []types.SymbolRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	texts := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
		texts[i] = types.BuildEmbedText(&records[i])
	}

	return l.store.Add(filePath, ids, texts)
}

func (l *LexicalStrategy) Delete(ctx context.Context, filePath string) error {
	l.store.DeleteByFile(filePath)
	return nil
}

// ---- graph ----

// GraphStrategy registers symbols as graph nodes and their callees as
// provisional name edges. Resolution happens once per indexing run, not
// per file.
type GraphStrategy struct {
	store *graph.Store
}

// NewGraphStrategy creates a graph strategy.
func NewGraphStrategy(store *graph.Store) *GraphStrategy {
	return &GraphStrategy{store: store}
}

func (g *GraphStrategy) Name() string { return "graph" }

func (g *GraphStrategy) Index(ctx context.Context, filePath string, records []types.SymbolRecord) error {
	for i := range records {
		r := &records[i]
		g.store.AddNode(graph.Node{
			ID:        r.ID,
			Name:      r.Name,
			Kind:      string(r.Kind),
			FilePath:  r.FilePath,
			StartLine: r.StartLine,
		})
		for _, callee := range r.CalledNames {
			g.store.AddCallByName(r.ID, callee)
		}
	}
	return nil
}

func (g *GraphStrategy) Delete(ctx context.Context, filePath string) error {
	g.store.DeleteByFile(filePath)
	return nil
}
