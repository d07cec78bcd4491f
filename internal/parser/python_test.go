package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arothstein/symdex/pkg/types"
)

const pythonSample = `import os
from typing import List

MAX_SIZE = 100

def helper(x: int) -> int:
    """Add one."""
    return x + 1

class Greeter:
    """Greets."""

    def greet(self, name):
        return helper(len(name))

def main():
    g = Greeter()
    return g.greet("world")
`

func findRecord(t *testing.T, records []types.SymbolRecord, name string, kind types.SymbolKind) *types.SymbolRecord {
	t.Helper()
	for i := range records {
		if records[i].Name == name && records[i].Kind == kind {
			return &records[i]
		}
	}
	t.Fatalf("no %s record named %q", kind, name)
	return nil
}

func TestParsePythonSymbols(t *testing.T) {
	p := New()
	res, err := p.Parse(context.Background(), "/proj/sample.py", []byte(pythonSample))
	require.NoError(t, err)
	require.NotEmpty(t, res.Records)
	assert.Empty(t, res.Issues)

	helper := findRecord(t, res.Records, "helper", types.KindFunction)
	assert.Equal(t, 5, helper.StartLine)
	assert.Equal(t, 7, helper.EndLine)
	assert.Equal(t, "Add one.", helper.Docstring)
	assert.Equal(t, "int", helper.ReturnType)
	assert.Equal(t, []string{"x: int"}, helper.Parameters)
	assert.Contains(t, helper.Content, "return x + 1")
	assert.Contains(t, helper.Signature, "def helper")
	assert.Equal(t, "python", helper.Language)

	class := findRecord(t, res.Records, "Greeter", types.KindClass)
	assert.Equal(t, 9, class.StartLine)
	assert.Equal(t, "Greets.", class.Docstring)

	greet := findRecord(t, res.Records, "greet", types.KindMethod)
	assert.Equal(t, "Greeter", greet.ParentName)
	assert.Contains(t, greet.CalledNames, "helper")
	assert.Contains(t, greet.CalledNames, "len")
}

func TestParsePythonModuleScopeVars(t *testing.T) {
	p := New()
	res, err := p.Parse(context.Background(), "/proj/sample.py", []byte(pythonSample))
	require.NoError(t, err)

	v := findRecord(t, res.Records, "MAX_SIZE", types.KindGlobalVar)
	assert.Equal(t, 3, v.StartLine)

	// The assignment inside main's body must not become a symbol.
	for _, r := range res.Records {
		assert.NotEqual(t, "g", r.Name, "function-local assignment should not be captured")
	}
}

func TestParsePythonImportsShared(t *testing.T) {
	p := New()
	res, err := p.Parse(context.Background(), "/proj/sample.py", []byte(pythonSample))
	require.NoError(t, err)

	for _, r := range res.Records {
		assert.Contains(t, r.Imports, "import os", "record %s missing imports", r.Name)
		assert.Contains(t, r.Imports, "from typing import List")
	}
}

func TestParsePythonAttributeCalls(t *testing.T) {
	p := New()
	res, err := p.Parse(context.Background(), "/proj/sample.py", []byte(pythonSample))
	require.NoError(t, err)

	main := findRecord(t, res.Records, "main", types.KindFunction)
	assert.Contains(t, main.CalledNames, "Greeter")
	assert.Contains(t, main.CalledNames, "greet", "attribute call resolves to rightmost segment")
}

func TestParsePythonDecoratedMethod(t *testing.T) {
	src := `class Store:
    @property
    def size(self):
        return self._n
`
	p := New()
	res, err := p.Parse(context.Background(), "/proj/store.py", []byte(src))
	require.NoError(t, err)

	size := findRecord(t, res.Records, "size", types.KindMethod)
	assert.Equal(t, "Store", size.ParentName)
}

func TestParsePythonBestEffortOnSyntaxError(t *testing.T) {
	src := "def broken(:\n    pass\n\ndef good():\n    return 1\n"

	p := New()
	res, err := p.Parse(context.Background(), "/proj/broken.py", []byte(src))
	require.NoError(t, err, "syntax errors must not fail the parse")
	assert.True(t, res.HasIssues())

	found := false
	for _, r := range res.Records {
		if r.Name == "good" {
			found = true
		}
	}
	assert.True(t, found, "intact symbols should survive a damaged file")
}

func TestParseUnsupportedExtension(t *testing.T) {
	p := New()
	_, err := p.Parse(context.Background(), "/proj/readme.md", []byte("# nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	assert.False(t, p.Supports("x.md"))
	assert.True(t, p.Supports("x.py"))
	assert.Equal(t, "python", p.LanguageName("x.py"))
}

func TestParseDeterministicOrder(t *testing.T) {
	p := New()
	a, err := p.Parse(context.Background(), "/proj/sample.py", []byte(pythonSample))
	require.NoError(t, err)
	b, err := p.Parse(context.Background(), "/proj/sample.py", []byte(pythonSample))
	require.NoError(t, err)

	require.Equal(t, len(a.Records), len(b.Records))
	for i := range a.Records {
		assert.Equal(t, a.Records[i].Name, b.Records[i].Name)
		assert.Equal(t, a.Records[i].StartLine, b.Records[i].StartLine)
	}
}
