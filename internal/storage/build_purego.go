//go:build !sqlite_vec
// +build !sqlite_vec

package storage

// This file is compiled by default (no build tags required).
// It uses a pure-Go SQLite driver with no CGO dependency.
//
// Build command:
//   go build ./...
//
// Vector distances are computed in Go over deserialized embeddings. For
// the corpus sizes this index targets (thousands of symbols) the
// difference from SQL-level distance is not noticeable.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if SQL-level vector distance is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
