// Package registry tracks per-project file state between indexing runs.
// The registry is the source of truth for incremental indexing: a file
// is reindexed only when its recorded size, mtime, or content hash no
// longer matches the filesystem.
package registry

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion is the current on-disk registry schema. Version 1 was a
// flat single-project layout; version 2 nests file maps per project root.
const SchemaVersion = 2

var (
	// ErrProjectNotFound is returned when a project root has no registry entry.
	ErrProjectNotFound = errors.New("project not indexed")
)

// FileRecord is the stored fingerprint of one indexed file.
type FileRecord struct {
	Size  int64  `json:"size"`
	MTime int64  `json:"mtime"` // UnixNano
	SHA1  string `json:"sha1"`
}

// ProjectEntry holds the indexed state of one project root. File keys
// are paths relative to the root, using forward slashes.
type ProjectEntry struct {
	IndexedAt time.Time             `json:"indexed_at"`
	Files     map[string]FileRecord `json:"files"`
}

// Registry is the in-memory registry plus its backing file path. It is
// not safe for concurrent mutation; the indexer guards it with its own
// lock.
type Registry struct {
	path     string
	Projects map[string]*ProjectEntry
}

// Delta is the result of diffing discovered files against the registry.
type Delta struct {
	Added    []string
	Modified []string
	Deleted  []string
	Errors   []string
}

// persisted shape
type onDisk struct {
	SchemaVersion int                      `json:"schema_version"`
	Projects      map[string]*ProjectEntry `json:"projects"`
}

// v1 shape: one implicit project, flat file map
type onDiskV1 struct {
	RootPath  string                `json:"root_path"`
	IndexedAt time.Time             `json:"indexed_at"`
	Files     map[string]FileRecord `json:"files"`
}

// Load reads the registry from path. A missing file yields an empty
// registry. A v1 file is migrated in memory; an unrecognized schema
// version resets to empty rather than guessing at its layout.
func Load(path string) (*Registry, error) {
	r := &Registry{
		path:     path,
		Projects: make(map[string]*ProjectEntry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}

	switch probe.SchemaVersion {
	case SchemaVersion:
		var disk onDisk
		if err := json.Unmarshal(data, &disk); err != nil {
			return nil, fmt.Errorf("failed to parse registry: %w", err)
		}
		if disk.Projects != nil {
			r.Projects = disk.Projects
		}
	case 0:
		// Pre-versioned v1 files have no schema_version field.
		migrateV1(r, data)
	default:
		log.Printf("registry schema version %d is unknown, starting empty", probe.SchemaVersion)
	}

	return r, nil
}

// migrateV1 lifts a v1 flat registry into a single project entry keyed
// by its recorded root path. Migration is idempotent: once saved, the
// file is v2 and this path is never taken again.
func migrateV1(r *Registry, data []byte) {
	var v1 onDiskV1
	if err := json.Unmarshal(data, &v1); err != nil || v1.RootPath == "" {
		log.Printf("registry v1 migration failed, starting empty")
		return
	}

	entry := &ProjectEntry{
		IndexedAt: v1.IndexedAt,
		Files:     v1.Files,
	}
	if entry.Files == nil {
		entry.Files = make(map[string]FileRecord)
	}
	r.Projects[v1.RootPath] = entry
	log.Printf("migrated registry v1 -> v%d (project %s, %d files)", SchemaVersion, v1.RootPath, len(entry.Files))
}

// Save writes the registry back to its path, creating parent
// directories as needed.
func (r *Registry) Save() error {
	disk := onDisk{
		SchemaVersion: SchemaVersion,
		Projects:      r.Projects,
	}

	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}

	return nil
}

// Project returns the entry for a root, creating it if absent.
func (r *Registry) Project(root string) *ProjectEntry {
	entry, ok := r.Projects[root]
	if !ok {
		entry = &ProjectEntry{Files: make(map[string]FileRecord)}
		r.Projects[root] = entry
	}
	return entry
}

// UpdateFile records the current fingerprint of relPath under root.
func (r *Registry) UpdateFile(root, relPath string, rec FileRecord) {
	entry := r.Project(root)
	entry.Files[relPath] = rec
	entry.IndexedAt = time.Now().UTC()
}

// RemoveFile drops relPath from the project entry.
func (r *Registry) RemoveFile(root, relPath string) {
	if entry, ok := r.Projects[root]; ok {
		delete(entry.Files, relPath)
	}
}

// RemoveProject drops an entire project entry.
func (r *Registry) RemoveProject(root string) {
	delete(r.Projects, root)
}

// Diff classifies discovered files (absolute paths under root) against
// the registry. SHA-1 is authoritative; size+mtime equality short-
// circuits hashing. Files that can no longer be read are reported in
// Errors and treated as unchanged so a transient failure does not
// cascade into a delete.
func (r *Registry) Diff(root string, discovered []string) Delta {
	var delta Delta

	entry, ok := r.Projects[root]
	known := map[string]FileRecord{}
	if ok {
		known = entry.Files
	}

	seen := make(map[string]bool, len(discovered))

	for _, abs := range discovered {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			delta.Errors = append(delta.Errors, fmt.Sprintf("%s: %v", abs, err))
			continue
		}
		rel = filepath.ToSlash(rel)
		seen[rel] = true

		rec, exists := known[rel]
		if !exists {
			delta.Added = append(delta.Added, abs)
			continue
		}

		info, err := os.Stat(abs)
		if err != nil {
			delta.Errors = append(delta.Errors, fmt.Sprintf("%s: %v", abs, err))
			continue
		}

		if info.Size() == rec.Size && info.ModTime().UnixNano() == rec.MTime {
			continue
		}

		sum, err := HashFile(abs)
		if err != nil {
			delta.Errors = append(delta.Errors, fmt.Sprintf("%s: %v", abs, err))
			continue
		}

		if sum == rec.SHA1 {
			// Touched but unchanged. Refresh the stat fingerprint so
			// the next run short-circuits again.
			known[rel] = FileRecord{Size: info.Size(), MTime: info.ModTime().UnixNano(), SHA1: sum}
			continue
		}

		delta.Modified = append(delta.Modified, abs)
	}

	for rel := range known {
		if !seen[rel] {
			delta.Deleted = append(delta.Deleted, filepath.Join(root, filepath.FromSlash(rel)))
		}
	}

	return delta
}

// Fingerprint stats and hashes a file, producing its registry record.
func Fingerprint(path string) (FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRecord{}, err
	}

	sum, err := HashFile(path)
	if err != nil {
		return FileRecord{}, err
	}

	return FileRecord{
		Size:  info.Size(),
		MTime: info.ModTime().UnixNano(),
		SHA1:  sum,
	}, nil
}

// HashFile computes the streaming SHA-1 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
