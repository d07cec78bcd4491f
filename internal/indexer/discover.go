package indexer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Directories that never contain first-party source worth indexing.
var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	"build":         {},
	"dist":          {},
	"vendor":        {},
	"CMakeFiles":    {},
	".tox":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
}

// discoverFiles walks root and returns absolute paths of files the
// parser supports. Hidden directories are skipped, .gitignore is
// honored when present, and the result is sorted for stable runs.
func (idx *Indexer) discoverFiles(root string) ([]string, error) {
	gi := loadGitignore(root)

	var files []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are reported via the registry diff,
			// not here.
			return nil
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if !idx.parser.Supports(path) {
			return nil
		}

		if gi != nil {
			if rel, err := filepath.Rel(root, path); err == nil && gi.MatchesPath(rel) {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
