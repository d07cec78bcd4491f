package types

import "errors"

// SymbolKind classifies a source symbol extracted by tree-sitter parsing.
type SymbolKind string

const (
	KindFunction     SymbolKind = "function"
	KindMethod       SymbolKind = "method"
	KindClass        SymbolKind = "class"
	KindStruct       SymbolKind = "struct"
	KindEnum         SymbolKind = "enum"
	KindTypedef      SymbolKind = "typedef"
	KindMacro        SymbolKind = "macro"
	KindGlobalVar    SymbolKind = "global_var"
	KindFunctionDecl SymbolKind = "function_decl"
)

// SymbolRecord is a single extracted symbol. Line numbers are 0-indexed
// and inclusive on both ends. ID is empty until assigned by the identity
// package; parsers never set it.
type SymbolRecord struct {
	ID   string
	Name string
	Kind SymbolKind

	// Location
	FilePath  string
	StartLine int
	EndLine   int
	Language  string

	// Content
	Content   string
	Docstring string

	// Structure
	Signature  string
	ReturnType string
	Parameters []string
	ParentName string // enclosing class for methods, "" otherwise

	// Relationships
	Imports     []string // file-level imports, shared across the file's records
	CalledNames []string // bare callee names found in the symbol body
}

// ValidateKind checks if the symbol kind is one of the known kinds.
func (s *SymbolRecord) ValidateKind() error {
	switch s.Kind {
	case KindFunction, KindMethod, KindClass, KindStruct, KindEnum,
		KindTypedef, KindMacro, KindGlobalVar, KindFunctionDecl:
		return nil
	default:
		return errors.New("invalid symbol kind")
	}
}

// Validate performs comprehensive validation of the record.
func (s *SymbolRecord) Validate() error {
	if s.Name == "" {
		return errors.New("symbol name is required")
	}

	if err := s.ValidateKind(); err != nil {
		return err
	}

	if s.FilePath == "" {
		return errors.New("file path is required")
	}

	if s.StartLine < 0 || s.EndLine < 0 {
		return errors.New("invalid position: line numbers must be non-negative")
	}

	if s.StartLine > s.EndLine {
		return errors.New("invalid position: start line must be before or equal to end line")
	}

	if s.Kind == KindMethod && s.ParentName == "" {
		return errors.New("methods must have an enclosing type name")
	}

	return nil
}
