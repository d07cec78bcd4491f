package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arothstein/symdex/pkg/types"
)

// Assignments are captured through their expression_statement wrapper so
// only statement-level targets match; extraction still verifies module
// scope to exclude function and class bodies.
const pythonQuery = `
(function_definition) @function
(class_definition) @class
(expression_statement (assignment) @assignment)
(import_statement) @import
(import_from_statement) @import
`

func extractPython(l *language, root *sitter.Node, src []byte, res *types.ParseResult) {
	caps, err := l.matches(root, src)
	if err != nil {
		res.AddIssue(res.FilePath, 0, err.Error())
		return
	}

	var imports []string

	for _, c := range caps {
		node := c.node

		if c.name == "import" {
			imports = append(imports, collapseWhitespace(nodeText(node, src)))
			continue
		}

		if node.HasError() {
			res.AddIssue(res.FilePath, int(node.StartPoint().Row), "skipped "+c.name+" containing syntax errors")
			continue
		}

		switch c.name {
		case "function":
			if r, ok := pythonFunction(node, src); ok {
				res.Records = append(res.Records, r)
			}
		case "class":
			if r, ok := pythonClass(node, src); ok {
				res.Records = append(res.Records, r)
			}
		case "assignment":
			if r, ok := pythonModuleVar(node, src); ok {
				res.Records = append(res.Records, r)
			}
		}
	}

	for i := range res.Records {
		res.Records[i].Imports = imports
	}
}

func pythonFunction(node *sitter.Node, src []byte) (types.SymbolRecord, bool) {
	name := nodeText(node.ChildByFieldName("name"), src)
	if name == "" {
		return types.SymbolRecord{}, false
	}

	body := node.ChildByFieldName("body")
	start, end := lineRange(node)

	r := types.SymbolRecord{
		Name:        name,
		Kind:        types.KindFunction,
		StartLine:   start,
		EndLine:     end,
		Content:     nodeText(node, src),
		Signature:   strings.TrimSuffix(textBefore(node, body, src), ":"),
		ReturnType:  nodeText(node.ChildByFieldName("return_type"), src),
		Docstring:   pythonDocstring(body, src),
		CalledNames: collectCalls(body, src),
	}
	r.Signature = strings.TrimSpace(r.Signature)

	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			if p.Type() == "comment" {
				continue
			}
			r.Parameters = append(r.Parameters, collapseWhitespace(nodeText(p, src)))
		}
	}

	if class := pythonEnclosingClass(node); class != nil {
		r.Kind = types.KindMethod
		r.ParentName = nodeText(class.ChildByFieldName("name"), src)
	}

	return r, true
}

func pythonClass(node *sitter.Node, src []byte) (types.SymbolRecord, bool) {
	name := nodeText(node.ChildByFieldName("name"), src)
	if name == "" {
		return types.SymbolRecord{}, false
	}

	body := node.ChildByFieldName("body")
	start, end := lineRange(node)

	r := types.SymbolRecord{
		Name:      name,
		Kind:      types.KindClass,
		StartLine: start,
		EndLine:   end,
		Content:   nodeText(node, src),
		Signature: strings.TrimSpace(strings.TrimSuffix(textBefore(node, body, src), ":")),
		Docstring: pythonDocstring(body, src),
	}

	if class := pythonEnclosingClass(node); class != nil {
		r.ParentName = nodeText(class.ChildByFieldName("name"), src)
	}

	return r, true
}

// pythonModuleVar extracts a module-level assignment. Assignments inside
// any function or class body are ignored; only simple identifier targets
// become symbols.
func pythonModuleVar(node *sitter.Node, src []byte) (types.SymbolRecord, bool) {
	stmt := node.Parent()
	if stmt == nil || stmt.Type() != "expression_statement" {
		return types.SymbolRecord{}, false
	}
	if mod := stmt.Parent(); mod == nil || mod.Type() != "module" {
		return types.SymbolRecord{}, false
	}

	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return types.SymbolRecord{}, false
	}

	start, end := lineRange(node)
	return types.SymbolRecord{
		Name:      nodeText(left, src),
		Kind:      types.KindGlobalVar,
		StartLine: start,
		EndLine:   end,
		Content:   nodeText(node, src),
	}, true
}

// pythonEnclosingClass walks up from a definition to its enclosing
// class, looking through decorated_definition wrappers.
func pythonEnclosingClass(node *sitter.Node) *sitter.Node {
	parent := node.Parent()
	if parent == nil {
		return nil
	}

	if parent.Type() == "decorated_definition" {
		parent = parent.Parent()
		if parent == nil {
			return nil
		}
	}

	if parent.Type() == "block" && parent.Parent() != nil && parent.Parent().Type() == "class_definition" {
		return parent.Parent()
	}

	return nil
}

// pythonDocstring returns the contents of a leading string expression in
// a definition body, with quotes and prefix letters stripped.
func pythonDocstring(body *sitter.Node, src []byte) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}

	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}

	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}

	return stripPythonString(nodeText(str, src))
}

func stripPythonString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}
