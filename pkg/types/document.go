package types

import (
	"encoding/json"
	"strings"
)

// Metadata is the flat metadata attached to an indexed document. Every
// field the search surface can filter or display on lives here, so a
// result never needs a second lookup against the source tree.
type Metadata struct {
	FilePath     string     `json:"file_path"`     // absolute
	ProjectRoot  string     `json:"project_root"`  // absolute
	RelativePath string     `json:"relative_path"` // relative to ProjectRoot
	Name         string     `json:"name"`
	Kind         SymbolKind `json:"kind"`
	Language     string     `json:"language"`
	StartLine    int        `json:"start_line"`
	EndLine      int        `json:"end_line"`
	ParentName   string     `json:"parent_name,omitempty"`
	Signature    string     `json:"signature,omitempty"`
	ReturnType   string     `json:"return_type,omitempty"`
	Imports      []string   `json:"imports,omitempty"`
	Parameters   []string   `json:"parameters,omitempty"`
	CalledNames  []string   `json:"called_names,omitempty"`
}

// Document is the unit stored in the vector index. EmbedText is what the
// embedding model sees; Content is the raw source returned to callers.
type Document struct {
	ID        string
	EmbedText string
	Content   string
	Meta      Metadata
}

// BuildEmbedText assembles the text submitted for embedding from a symbol
// record. Sections are included only when the record provides them, so
// sparse symbols do not pad the embedding with empty labels.
func BuildEmbedText(r *SymbolRecord) string {
	var parts []string

	if r.Docstring != "" {
		parts = append(parts, "Docstring: "+r.Docstring)
	}
	if r.Signature != "" {
		parts = append(parts, "Signature: "+r.Signature)
	}
	if r.ReturnType != "" {
		parts = append(parts, "Returns: "+r.ReturnType)
	}
	if len(r.Parameters) > 0 {
		parts = append(parts, "Parameters: "+strings.Join(r.Parameters, ", "))
	}
	parts = append(parts, "Code:\n"+r.Content)

	return strings.Join(parts, "\n\n")
}

// MarshalStrings encodes a string slice as JSON for storage in a single
// column. A nil or empty slice encodes as "[]".
func MarshalStrings(vals []string) string {
	if len(vals) == 0 {
		return "[]"
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// UnmarshalStrings decodes a JSON string-array column. Malformed or empty
// input decodes as nil.
func UnmarshalStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var vals []string
	if err := json.Unmarshal([]byte(s), &vals); err != nil {
		return nil
	}
	return vals
}
