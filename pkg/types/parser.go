package types

// ParseResult is the output of parsing a single source file. Parsing is
// best-effort: syntax errors produce issues, not failures, and valid
// symbols outside the damaged region are still returned.
type ParseResult struct {
	FilePath string
	Language string
	Records  []SymbolRecord
	Issues   []ParseIssue
}

// ParseIssue describes a non-fatal problem encountered while parsing.
type ParseIssue struct {
	File    string
	Line    int
	Message string
}

// Error implements the error interface.
func (pi *ParseIssue) Error() string {
	return pi.Message
}

// HasIssues returns true if any parse issues were recorded.
func (pr *ParseResult) HasIssues() bool {
	return len(pr.Issues) > 0
}

// AddIssue appends a parse issue to the result.
func (pr *ParseResult) AddIssue(file string, line int, msg string) {
	pr.Issues = append(pr.Issues, ParseIssue{
		File:    file,
		Line:    line,
		Message: msg,
	})
}
