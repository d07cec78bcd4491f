// Package mcp exposes indexing and retrieval over the Model Context
// Protocol on stdio. All persistent state lives under a single data
// directory; stores are loaded once at startup and snapshotted after
// every indexing run.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/arothstein/symdex/internal/embedder"
	"github.com/arothstein/symdex/internal/graph"
	"github.com/arothstein/symdex/internal/indexer"
	"github.com/arothstein/symdex/internal/lexical"
	"github.com/arothstein/symdex/internal/registry"
	"github.com/arothstein/symdex/internal/searcher"
	"github.com/arothstein/symdex/internal/storage"
)

const (
	// ServerName is the MCP server name.
	ServerName = "symdex"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
	// EnvDataDir overrides the data directory.
	EnvDataDir = "SYMDEX_DATA_DIR"
)

// Data directory file names.
const (
	registryFile = "registry.json"
	vectorsFile  = "vectors.db"
	graphFile    = "graph.json"
	lexicalFile  = "lexical.json"
)

// Server wires the stores, the indexer, and the search engine behind
// the MCP tool surface.
type Server struct {
	mcp      *server.MCPServer
	dataDir  string
	registry *registry.Registry
	vector   *storage.Store
	lexical  *lexical.Store
	graph    *graph.Store
	embedder embedder.Embedder
	engine   *searcher.Engine
	indexer  *indexer.Indexer

	indexLock indexer.RunLock
}

// DefaultDataDir resolves the data directory: $SYMDEX_DATA_DIR if set,
// otherwise ~/.symdex.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".symdex"), nil
}

// NewServer creates an MCP server whose state lives under dataDir. An
// empty dataDir resolves via DefaultDataDir.
func NewServer(dataDir string) (*Server, error) {
	if dataDir == "" {
		var err error
		dataDir, err = DefaultDataDir()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	reg, err := registry.Load(filepath.Join(dataDir, registryFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	vector, err := storage.NewStore(filepath.Join(dataDir, vectorsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = vector.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	gr, err := graph.Load(filepath.Join(dataDir, graphFile))
	if err != nil {
		log.Printf("graph snapshot unusable, starting empty: %v", err)
		gr = graph.NewStore()
	}

	lex, err := lexical.Load(filepath.Join(dataDir, lexicalFile))
	if err != nil {
		log.Printf("lexical snapshot unusable, starting empty: %v", err)
		lex = lexical.NewStore()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		dataDir:  dataDir,
		registry: reg,
		vector:   vector,
		lexical:  lex,
		graph:    gr,
		embedder: emb,
		engine:   searcher.NewEngine(vector, lex, emb),
		indexer:  indexer.New(reg, vector, lex, gr, emb),
	}

	if err := s.resyncLexical(context.Background()); err != nil {
		log.Printf("lexical resync failed: %v", err)
	}

	s.registerTools()
	return s, nil
}

// resyncLexical rebuilds the keyword index from the vector store when
// its snapshot is missing or lagging. The vector store is the
// authoritative copy; the snapshot only saves a rebuild.
func (s *Server) resyncLexical(ctx context.Context) error {
	count, err := s.vector.Count(ctx)
	if err != nil {
		return err
	}
	if int64(s.lexical.Len()) >= count {
		return nil
	}

	docs, err := s.vector.GetAll(ctx)
	if err != nil {
		return err
	}

	byFile := make(map[string][]int)
	for i, doc := range docs {
		byFile[doc.Meta.FilePath] = append(byFile[doc.Meta.FilePath], i)
	}

	for file, idxs := range byFile {
		s.lexical.DeleteByFile(file)
		ids := make([]string, len(idxs))
		texts := make([]string, len(idxs))
		for j, i := range idxs {
			ids[j] = docs[i].ID
			texts[j] = docs[i].EmbedText
		}
		if err := s.lexical.Add(file, ids, texts); err != nil {
			return err
		}
	}

	log.Printf("lexical index resynced from vector store (%d documents)", len(docs))
	return nil
}

// saveSnapshots persists the in-memory stores. Called after indexing;
// failures are reported but do not fail the run, since the stores can
// be resynced at next startup.
func (s *Server) saveSnapshots() []string {
	var errs []string
	if err := s.graph.Save(filepath.Join(s.dataDir, graphFile)); err != nil {
		errs = append(errs, fmt.Sprintf("graph snapshot: %v", err))
	}
	if err := s.lexical.Save(filepath.Join(s.dataDir, lexicalFile)); err != nil {
		errs = append(errs, fmt.Sprintf("lexical snapshot: %v", err))
	}
	return errs
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.vector.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers the MCP tool surface.
func (s *Server) registerTools() {
	s.mcp.AddTool(indexProjectTool(), s.handleIndexProject)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getCallersTool(), s.handleGetCallers)
	s.mcp.AddTool(getCalleesTool(), s.handleGetCallees)
	s.mcp.AddTool(getCallChainTool(), s.handleGetCallChain)
	s.mcp.AddTool(getSymbolDefinitionTool(), s.handleGetSymbolDefinition)
	s.mcp.AddTool(getModuleSummaryTool(), s.handleGetModuleSummary)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
