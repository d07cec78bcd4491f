package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/arothstein/symdex/pkg/types"
)

// ErrUnsupportedLanguage is returned when no grammar is registered for a
// file's extension.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// language pairs a grammar with its extraction query and logic. Queries
// compile lazily and are shared; sitter.Parser instances are not
// thread-safe, so Parse creates one per call.
type language struct {
	name      string
	grammar   *sitter.Language
	queryText string
	extract   func(l *language, root *sitter.Node, src []byte, res *types.ParseResult)

	queryOnce sync.Once
	query     *sitter.Query
	queryErr  error
}

func (l *language) compiledQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		l.query, l.queryErr = sitter.NewQuery([]byte(l.queryText), l.grammar)
	})
	return l.query, l.queryErr
}

// capture is a single named query capture.
type capture struct {
	name string
	node *sitter.Node
}

// matches runs the language query over root and returns all captures,
// deduplicated by node span and capture name.
func (l *language) matches(root *sitter.Node, src []byte) ([]capture, error) {
	q, err := l.compiledQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s query: %w", l.name, err)
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	seen := make(map[string]bool)
	var caps []capture

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, src)

		for _, c := range m.Captures {
			name := q.CaptureNameForId(c.Index)
			key := fmt.Sprintf("%s:%d:%d", name, c.Node.StartByte(), c.Node.EndByte())
			if seen[key] {
				continue
			}
			seen[key] = true
			caps = append(caps, capture{name: name, node: c.Node})
		}
	}

	return caps, nil
}

var (
	pythonLang = &language{name: "python", grammar: python.GetLanguage(), queryText: pythonQuery, extract: extractPython}
	cLang      = &language{name: "c", grammar: c.GetLanguage(), queryText: cQuery, extract: extractC}
	cppLang    = &language{name: "cpp", grammar: cpp.GetLanguage(), queryText: cppQuery, extract: extractCPP}
)

var extToLanguage = map[string]*language{
	".py":  pythonLang,
	".c":   cLang,
	".h":   cLang,
	".cpp": cppLang,
	".cc":  cppLang,
	".cxx": cppLang,
	".hpp": cppLang,
}

// Parser extracts symbol records from source files via tree-sitter.
type Parser struct{}

// New creates a symbol parser supporting Python, C, and C++.
func New() *Parser {
	return &Parser{}
}

// Supports reports whether path has a registered grammar.
func (p *Parser) Supports(path string) bool {
	_, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LanguageName returns the grammar name for path, or "".
func (p *Parser) LanguageName(path string) string {
	if l, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]; ok {
		return l.name
	}
	return ""
}

// Parse extracts symbols from source. Syntax errors do not fail the
// parse: damaged regions are skipped with an issue recorded, and intact
// symbols elsewhere in the file are still returned.
func (p *Parser) Parse(ctx context.Context, filePath string, source []byte) (*types.ParseResult, error) {
	lang, ok := extToLanguage[strings.ToLower(filepath.Ext(filePath))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filepath.Ext(filePath))
	}

	sp := sitter.NewParser()
	sp.SetLanguage(lang.grammar)

	tree, err := sp.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	defer tree.Close()

	res := &types.ParseResult{FilePath: filePath, Language: lang.name}

	root := tree.RootNode()
	if root.HasError() {
		res.AddIssue(filePath, int(root.StartPoint().Row), "syntax errors present, extraction is best-effort")
	}

	lang.extract(lang, root, source, res)
	finalize(res)

	return res, nil
}

// invalid symbol names: whitespace or any bracket character
var invalidNameChars = regexp.MustCompile(`[\s()\[\]{}]`)

func validName(name string) bool {
	return name != "" && !invalidNameChars.MatchString(name)
}

// finalize drops records with unusable names, stamps the file path and
// language onto each record, and orders records by position so ID
// assignment is deterministic.
func finalize(res *types.ParseResult) {
	kept := res.Records[:0]
	for i := range res.Records {
		r := res.Records[i]
		if !validName(r.Name) {
			res.AddIssue(res.FilePath, r.StartLine, fmt.Sprintf("dropped %s with unusable name %q", r.Kind, r.Name))
			continue
		}
		r.FilePath = res.FilePath
		r.Language = res.Language
		kept = append(kept, r)
	}
	res.Records = kept

	sort.SliceStable(res.Records, func(i, j int) bool {
		a, b := &res.Records[i], &res.Records[j]
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		if a.EndLine != b.EndLine {
			return a.EndLine < b.EndLine
		}
		return a.Name < b.Name
	})
}

// ---- shared node helpers ----

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func nodeText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

func lineRange(n *sitter.Node) (int, int) {
	return int(n.StartPoint().Row), int(n.EndPoint().Row)
}

// textBefore returns the source between the start of node and the start
// of stop, whitespace-collapsed. Used for signatures: everything up to
// the body.
func textBefore(node, stop *sitter.Node, src []byte) string {
	if stop == nil {
		return collapseWhitespace(nodeText(node, src))
	}
	return collapseWhitespace(string(src[node.StartByte():stop.StartByte()]))
}

// collectCalls walks a subtree and returns the bare callee name of every
// call expression, in document order, deduplicated. Attribute and field
// calls resolve to the rightmost segment; the receiver is not knowable
// without type information.
func collectCalls(n *sitter.Node, src []byte) []string {
	if n == nil {
		return nil
	}

	var names []string
	seen := make(map[string]bool)

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Type() {
		case "call", "call_expression":
			if name := calleeName(node.ChildByFieldName("function"), src); validName(name) && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			walk(node.NamedChild(i))
		}
	}
	walk(n)

	return names
}

func calleeName(fn *sitter.Node, src []byte) string {
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier", "field_identifier":
		return nodeText(fn, src)
	case "attribute":
		return nodeText(fn.ChildByFieldName("attribute"), src)
	case "field_expression":
		return nodeText(fn.ChildByFieldName("field"), src)
	case "qualified_identifier":
		name := fn.ChildByFieldName("name")
		if name != nil && name.Type() == "qualified_identifier" {
			return calleeName(name, src)
		}
		return nodeText(name, src)
	case "parenthesized_expression":
		if fn.NamedChildCount() > 0 {
			return calleeName(fn.NamedChild(0), src)
		}
	}
	return ""
}
