// Package indexer coordinates the indexing pipeline: discover files,
// diff them against the registry, parse what changed, assign symbol
// IDs, and fan each file's records out to every store strategy. A file
// only enters the registry after all strategies accepted it, so a
// failed file is retried on the next run.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arothstein/symdex/internal/embedder"
	"github.com/arothstein/symdex/internal/graph"
	"github.com/arothstein/symdex/internal/identity"
	"github.com/arothstein/symdex/internal/lexical"
	"github.com/arothstein/symdex/internal/parser"
	"github.com/arothstein/symdex/internal/registry"
	"github.com/arothstein/symdex/internal/storage"
	"github.com/arothstein/symdex/internal/strategy"
)

// Indexer drives incremental indexing across the vector, lexical, and
// graph stores.
type Indexer struct {
	parser   *parser.Parser
	registry *registry.Registry
	vector   *storage.Store
	lexical  *lexical.Store
	graph    *graph.Store
	embedder embedder.Embedder
}

// Config controls one indexing run.
type Config struct {
	Workers int  // concurrent file workers (default: runtime.NumCPU())
	Force   bool // reindex every file regardless of registry fingerprints
}

// Statistics summarizes one indexing run.
type Statistics struct {
	FilesIndexed     int
	FilesSkipped     int
	FilesFailed      int
	FilesDeleted     int
	SymbolsExtracted int
	EdgesResolved    int
	EdgesAdded       int
	EdgesUnresolved  int
	Duration         time.Duration
	ErrorMessages    []string
	Warnings         []string
}

// New creates an Indexer over the shared stores.
func New(reg *registry.Registry, vector *storage.Store, lex *lexical.Store, gr *graph.Store, emb embedder.Embedder) *Indexer {
	return &Indexer{
		parser:   parser.New(),
		registry: reg,
		vector:   vector,
		lexical:  lex,
		graph:    gr,
		embedder: emb,
	}
}

// IndexProject indexes rootPath incrementally: new and changed files
// are reparsed and restored, files gone from disk are purged from every
// store, and untouched files are skipped. The registry is saved at the
// end even when individual files failed.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", rootPath)
	}

	start := time.Now()
	stats := &Statistics{}

	files, err := idx.discoverFiles(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	delta := idx.registry.Diff(rootPath, files)
	if config.Force {
		delta.Added = files
		delta.Modified = nil
	}
	stats.ErrorMessages = append(stats.ErrorMessages, delta.Errors...)
	stats.FilesSkipped = len(files) - len(delta.Added) - len(delta.Modified)

	strategies := idx.buildStrategies(rootPath)

	for _, abs := range delta.Deleted {
		if err := deleteFromStores(ctx, strategies, abs); err != nil {
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", abs, err))
			continue
		}
		rel, err := relSlash(rootPath, abs)
		if err == nil {
			idx.registry.RemoveFile(rootPath, rel)
		}
		stats.FilesDeleted++
	}

	idx.indexChanged(ctx, rootPath, strategies, append(delta.Added, delta.Modified...), workers, stats)

	resolve := idx.graph.ResolveEdges()
	stats.EdgesResolved = resolve.Resolved
	stats.EdgesAdded = resolve.Added
	stats.EdgesUnresolved = resolve.Unresolved

	// Ensure the project entry exists even for an empty tree.
	idx.registry.Project(rootPath)
	if err := idx.registry.Save(); err != nil {
		return nil, fmt.Errorf("failed to save registry: %w", err)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (idx *Indexer) buildStrategies(rootPath string) []strategy.Strategy {
	return []strategy.Strategy{
		strategy.NewVectorStrategy(idx.vector, idx.embedder, rootPath),
		strategy.NewLexicalStrategy(idx.lexical),
		strategy.NewGraphStrategy(idx.graph),
	}
}

// indexChanged runs the per-file pipeline across a worker pool. File
// failures are recorded, not fatal; the registry entry for a failed
// file is left stale so the next run retries it.
func (idx *Indexer) indexChanged(ctx context.Context, rootPath string, strategies []strategy.Strategy, files []string, workers int, stats *Statistics) {
	var (
		indexed int32
		failed  int32
		symbols int32
		mu      sync.Mutex // guards registry writes, ErrorMessages, Warnings
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, abs := range files {
		abs := abs
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			count, rec, warnings, err := idx.indexFile(gctx, strategies, abs)

			mu.Lock()
			defer mu.Unlock()

			stats.Warnings = append(stats.Warnings, warnings...)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", abs, err))
				return nil
			}

			rel, err := relSlash(rootPath, abs)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", abs, err))
				return nil
			}
			idx.registry.UpdateFile(rootPath, rel, rec)

			atomic.AddInt32(&indexed, 1)
			atomic.AddInt32(&symbols, int32(count))
			return nil
		})
	}

	_ = g.Wait()

	stats.FilesIndexed = int(indexed)
	stats.FilesFailed = int(failed)
	stats.SymbolsExtracted = int(symbols)
}

// indexFile parses one file and replaces its entries in every store.
// The caller records the returned fingerprint only when every strategy
// succeeded, so a partial failure leaves the file due for retry.
func (idx *Indexer) indexFile(ctx context.Context, strategies []strategy.Strategy, abs string) (int, registry.FileRecord, []string, error) {
	// Fingerprint before reading so a write racing the index run makes
	// the file look stale next run instead of silently current.
	rec, err := registry.Fingerprint(abs)
	if err != nil {
		return 0, registry.FileRecord{}, nil, err
	}

	source, err := os.ReadFile(abs)
	if err != nil {
		return 0, registry.FileRecord{}, nil, err
	}

	result, err := idx.parser.Parse(ctx, abs, source)
	if err != nil {
		return 0, registry.FileRecord{}, nil, err
	}

	var warnings []string
	for _, issue := range result.Issues {
		warnings = append(warnings, issue.Error())
	}

	identity.Assign(result.Records)

	for _, s := range strategies {
		if err := s.Delete(ctx, abs); err != nil {
			return 0, registry.FileRecord{}, warnings, fmt.Errorf("%s delete: %w", s.Name(), err)
		}
	}
	for _, s := range strategies {
		if err := s.Index(ctx, abs, result.Records); err != nil {
			return 0, registry.FileRecord{}, warnings, fmt.Errorf("%s index: %w", s.Name(), err)
		}
	}

	return len(result.Records), rec, warnings, nil
}

// RemoveProject purges every store entry and registry record for a
// project root.
func (idx *Indexer) RemoveProject(ctx context.Context, rootPath string) (int, error) {
	entry, ok := idx.registry.Projects[rootPath]
	if !ok {
		return 0, registry.ErrProjectNotFound
	}

	strategies := idx.buildStrategies(rootPath)
	removed := 0
	for rel := range entry.Files {
		abs := absFromRel(rootPath, rel)
		if err := deleteFromStores(ctx, strategies, abs); err != nil {
			return removed, err
		}
		removed++
	}

	// Catch documents indexed under this root but missing from the
	// file map, such as leftovers from an interrupted run.
	if _, err := idx.vector.DeleteByProjectRoot(ctx, rootPath); err != nil {
		return removed, err
	}

	idx.registry.RemoveProject(rootPath)
	if err := idx.registry.Save(); err != nil {
		return removed, err
	}
	return removed, nil
}

func deleteFromStores(ctx context.Context, strategies []strategy.Strategy, abs string) error {
	for _, s := range strategies {
		if err := s.Delete(ctx, abs); err != nil {
			return fmt.Errorf("%s delete: %w", s.Name(), err)
		}
	}
	return nil
}

// Parser exposes the indexer's parser for callers that need language
// checks, such as tool-level validation.
func (idx *Indexer) Parser() *parser.Parser {
	return idx.parser
}

func relSlash(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func absFromRel(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
