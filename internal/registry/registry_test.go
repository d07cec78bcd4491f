package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)
	assert.Empty(t, r.Projects)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")

	r, err := Load(path)
	require.NoError(t, err)

	r.UpdateFile("/proj", "a.py", FileRecord{Size: 10, MTime: 123, SHA1: "abc"})
	r.UpdateFile("/proj", "sub/b.py", FileRecord{Size: 20, MTime: 456, SHA1: "def"})
	require.NoError(t, r.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, loaded.Projects, "/proj")
	assert.Equal(t, int64(10), loaded.Projects["/proj"].Files["a.py"].Size)
	assert.Equal(t, "def", loaded.Projects["/proj"].Files["sub/b.py"].SHA1)
}

func TestLoadMigratesV1(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")

	v1 := map[string]any{
		"root_path":  "/old/project",
		"indexed_at": time.Now().UTC(),
		"files": map[string]any{
			"main.py": map[string]any{"size": 42, "mtime": 99, "sha1": "deadbeef"},
		},
	}
	data, err := json.Marshal(v1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	r, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, r.Projects, "/old/project")
	assert.Equal(t, "deadbeef", r.Projects["/old/project"].Files["main.py"].SHA1)

	// Saving then reloading must be stable: migration happens once.
	require.NoError(t, r.Save())
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.Projects["/old/project"].Files, again.Projects["/old/project"].Files)
}

func TestLoadUnknownVersionResets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version": 99, "projects": {"/x": {}}}`), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, r.Projects, "unknown schema version must start empty")
}

func TestDiffClassification(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.py", "print(1)\n")
	b := writeFile(t, root, "b.py", "print(2)\n")
	c := writeFile(t, root, "c.py", "print(3)\n")

	r, err := Load(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	for _, p := range []string{a, b} {
		rec, err := Fingerprint(p)
		require.NoError(t, err)
		rel, _ := filepath.Rel(root, p)
		r.UpdateFile(root, filepath.ToSlash(rel), rec)
	}

	// b changes content, c is new, a stays, and a phantom entry is deleted.
	require.NoError(t, os.WriteFile(b, []byte("print(22)\n"), 0644))
	r.UpdateFile(root, "gone.py", FileRecord{Size: 1, MTime: 1, SHA1: "x"})

	delta := r.Diff(root, []string{a, b, c})

	assert.Equal(t, []string{c}, delta.Added)
	assert.Equal(t, []string{b}, delta.Modified)
	assert.Equal(t, []string{filepath.Join(root, "gone.py")}, delta.Deleted)
	assert.Empty(t, delta.Errors)
}

func TestDiffTouchedButUnchanged(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.py", "print(1)\n")

	r, err := Load(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	rec, err := Fingerprint(a)
	require.NoError(t, err)
	r.UpdateFile(root, "a.py", rec)

	// Bump mtime without changing content. SHA-1 is authoritative.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(a, future, future))

	delta := r.Diff(root, []string{a})
	assert.Empty(t, delta.Added)
	assert.Empty(t, delta.Modified)
	assert.Empty(t, delta.Deleted)

	// The stat fingerprint was refreshed so the next diff short-circuits.
	assert.Equal(t, future.UnixNano(), r.Projects[root].Files["a.py"].MTime)
}

func TestHashFileStable(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "x.txt", "hello world")

	h1, err := HashFile(p)
	require.NoError(t, err)
	h2, err := HashFile(p)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 40)
}
