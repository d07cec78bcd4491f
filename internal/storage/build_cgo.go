//go:build sqlite_vec
// +build sqlite_vec

package storage

// This file is compiled when building with CGO and the sqlite_vec tag.
// It enables the sqlite-vec extension for SQL-level vector distance.
//
// Build command:
//   CGO_ENABLED=1 go build -tags sqlite_vec ./...
//
// With the extension loaded, candidate ranking happens inside SQLite via
// vec_distance_L2 instead of deserializing every embedding into Go.
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if SQL-level vector distance is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
