// Package types provides shared type definitions for the symdex server.
//
// This package defines the domain types used across components: symbol
// records, parse results, indexed documents, and search results.
//
// # Core Types
//
// SymbolRecord represents a source construct (function, class, struct,
// macro, etc.) extracted from a file via tree-sitter parsing:
//
//	record := &types.SymbolRecord{
//	    Name:      "parse_config",
//	    Kind:      types.KindFunction,
//	    FilePath:  "/src/config.py",
//	    StartLine: 10,
//	    EndLine:   42,
//	}
//
// Line numbers are 0-indexed and inclusive on both ends, matching
// tree-sitter point coordinates.
//
// Document represents an indexed symbol as stored in the vector index,
// pairing the embedding text with flat metadata so search results never
// require a second lookup against the source tree.
//
// # Parse Results
//
// ParseResult carries both extracted records and non-fatal issues.
// Parsing is best-effort: a syntax error inside one function does not
// suppress symbols extracted elsewhere in the file.
//
// # Search Results
//
// SearchResult combines document metadata with hybrid relevance scoring:
//
//	result := &types.SearchResult{
//	    ID:    "9f3a1c28e4b07d65",
//	    Rank:  1,
//	    Score: 0.92,
//	}
//
// Scores are normalized to the [0, 1] range, with higher values
// indicating better matches.
package types
