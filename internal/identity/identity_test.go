package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arothstein/symdex/pkg/types"
)

func sampleRecord() types.SymbolRecord {
	return types.SymbolRecord{
		Name:       "helper",
		Kind:       types.KindFunction,
		FilePath:   "/proj/a.py",
		StartLine:  3,
		EndLine:    5,
		Content:    "def helper():\n    return 1",
		Signature:  "def helper()",
		Parameters: nil,
	}
}

func TestAssignDeterministic(t *testing.T) {
	a := []types.SymbolRecord{sampleRecord()}
	b := []types.SymbolRecord{sampleRecord()}

	Assign(a)
	Assign(b)

	require.NotEmpty(t, a[0].ID)
	assert.Equal(t, a[0].ID, b[0].ID, "same input must produce the same ID")
	assert.Len(t, a[0].ID, 16, "ID should be a 16-char hex hash")
}

func TestAssignContentChangesID(t *testing.T) {
	orig := []types.SymbolRecord{sampleRecord()}
	Assign(orig)

	changed := []types.SymbolRecord{sampleRecord()}
	changed[0].Content = "def helper():\n    return 2"
	Assign(changed)

	assert.NotEqual(t, orig[0].ID, changed[0].ID, "content change must change the ID")
}

func TestAssignLocationChangesID(t *testing.T) {
	orig := []types.SymbolRecord{sampleRecord()}
	Assign(orig)

	moved := []types.SymbolRecord{sampleRecord()}
	moved[0].StartLine = 10
	moved[0].EndLine = 12
	Assign(moved)

	assert.NotEqual(t, orig[0].ID, moved[0].ID, "moving a symbol must change the ID")

	other := []types.SymbolRecord{sampleRecord()}
	other[0].FilePath = "/proj/b.py"
	Assign(other)

	assert.NotEqual(t, orig[0].ID, other[0].ID, "same symbol in another file must get its own ID")
}

func TestAssignCollisionSuffix(t *testing.T) {
	records := []types.SymbolRecord{sampleRecord(), sampleRecord(), sampleRecord()}
	Assign(records)

	assert.Equal(t, records[0].ID+"-1", records[1].ID)
	assert.Equal(t, records[0].ID+"-2", records[2].ID)

	// Suffixes are deterministic across passes.
	again := []types.SymbolRecord{sampleRecord(), sampleRecord(), sampleRecord()}
	Assign(again)
	for i := range records {
		assert.Equal(t, records[i].ID, again[i].ID)
	}
}

func TestAssignSignatureAffectsID(t *testing.T) {
	a := []types.SymbolRecord{sampleRecord()}
	b := []types.SymbolRecord{sampleRecord()}
	b[0].Parameters = []string{"x", "y"}

	Assign(a)
	Assign(b)

	assert.NotEqual(t, a[0].ID, b[0].ID)
}
