package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arothstein/symdex/pkg/types"
)

const cQuery = `
(function_definition) @function
(declaration) @declaration
(struct_specifier) @struct
(enum_specifier) @enum
(type_definition) @typedef
(preproc_def) @macro
(preproc_function_def) @macro
(preproc_include) @include
`

const cppQuery = cQuery + `
(class_specifier) @class
`

func extractC(l *language, root *sitter.Node, src []byte, res *types.ParseResult) {
	extractClike(l, root, src, res)
}

func extractCPP(l *language, root *sitter.Node, src []byte, res *types.ParseResult) {
	extractClike(l, root, src, res)
}

func extractClike(l *language, root *sitter.Node, src []byte, res *types.ParseResult) {
	caps, err := l.matches(root, src)
	if err != nil {
		res.AddIssue(res.FilePath, 0, err.Error())
		return
	}

	var imports []string

	for _, c := range caps {
		node := c.node

		if c.name == "include" {
			imports = append(imports, collapseWhitespace(nodeText(node, src)))
			continue
		}

		if node.HasError() {
			res.AddIssue(res.FilePath, int(node.StartPoint().Row), "skipped "+c.name+" containing syntax errors")
			continue
		}

		switch c.name {
		case "function":
			if r, ok := cFunction(node, src); ok {
				res.Records = append(res.Records, r)
			}
		case "declaration":
			if r, ok := cDeclaration(node, src); ok {
				res.Records = append(res.Records, r)
			}
		case "struct", "class", "enum":
			if r, ok := cTypeSpecifier(node, src, c.name); ok {
				res.Records = append(res.Records, r)
			}
		case "typedef":
			if r, ok := cTypedef(node, src); ok {
				res.Records = append(res.Records, r)
			}
		case "macro":
			if r, ok := cMacro(node, src); ok {
				res.Records = append(res.Records, r)
			}
		}
	}

	for i := range res.Records {
		res.Records[i].Imports = imports
	}
}

func cFunction(node *sitter.Node, src []byte) (types.SymbolRecord, bool) {
	fd := findFunctionDeclarator(node.ChildByFieldName("declarator"))
	if fd == nil {
		return types.SymbolRecord{}, false
	}

	nameNode := unwrapDeclarator(declaratorChild(fd))
	name, qualParent := resolveCName(nameNode, src)
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
		Signature:   textBefore(node, body, src),
		ReturnType:  nodeText(node.ChildByFieldName("type"), src),
		Parameters:  cParameters(fd, src),
		Docstring:   leadingComment(node, src),
		CalledNames: collectCalls(body, src),
	}

	// Methods come in two shapes: defined inside a class body, or
	// defined at file scope with a qualified name.
	if parent := enclosingCType(node, src); parent != "" {
		r.Kind = types.KindMethod
		r.ParentName = parent
	} else if qualParent != "" {
		r.Kind = types.KindMethod
		r.ParentName = qualParent
	}

	return r, true
}

// cDeclaration handles file-scope declarations: function prototypes
// become function_decl records and plain variables become global_var.
// Declarations inside any function body are ignored.
func cDeclaration(node *sitter.Node, src []byte) (types.SymbolRecord, bool) {
	if parent := node.Parent(); parent == nil || parent.Type() != "translation_unit" {
		return types.SymbolRecord{}, false
	}

	start, end := lineRange(node)

	if fd := findFunctionDeclarator(node.ChildByFieldName("declarator")); fd != nil {
		name, qualParent := resolveCName(unwrapDeclarator(declaratorChild(fd)), src)
		if name == "" {
			return types.SymbolRecord{}, false
		}
		return types.SymbolRecord{
			Name:       name,
			Kind:       types.KindFunctionDecl,
			StartLine:  start,
			EndLine:    end,
			Content:    nodeText(node, src),
			Signature:  strings.TrimSuffix(collapseWhitespace(nodeText(node, src)), ";"),
			ReturnType: nodeText(node.ChildByFieldName("type"), src),
			Parameters: cParameters(fd, src),
			Docstring:  leadingComment(node, src),
			ParentName: qualParent,
		}, true
	}

	name, _ := resolveCName(unwrapDeclarator(node.ChildByFieldName("declarator")), src)
	if name == "" {
		return types.SymbolRecord{}, false
	}
	return types.SymbolRecord{
		Name:      name,
		Kind:      types.KindGlobalVar,
		StartLine: start,
		EndLine:   end,
		Content:   nodeText(node, src),
		Docstring: leadingComment(node, src),
	}, true
}

// cTypeSpecifier handles struct, class, and enum definitions. A
// specifier without a body is a reference or forward declaration, not a
// definition; anonymous types carry no usable name. Both are skipped.
func cTypeSpecifier(node *sitter.Node, src []byte, captureName string) (types.SymbolRecord, bool) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return types.SymbolRecord{}, false
	}

	name := nodeText(node.ChildByFieldName("name"), src)
	if name == "" {
		return types.SymbolRecord{}, false
	}

	kind := types.KindStruct
	switch captureName {
	case "class":
		kind = types.KindClass
	case "enum":
		kind = types.KindEnum
	}

	start, end := lineRange(node)
	return types.SymbolRecord{
		Name:      name,
		Kind:      kind,
		StartLine: start,
		EndLine:   end,
		Content:   nodeText(node, src),
		Signature: textBefore(node, body, src),
		Docstring: leadingComment(node, src),
	}, true
}

func cTypedef(node *sitter.Node, src []byte) (types.SymbolRecord, bool) {
	name, _ := resolveCName(unwrapDeclarator(node.ChildByFieldName("declarator")), src)
	if name == "" {
		return types.SymbolRecord{}, false
	}

	start, end := lineRange(node)
	return types.SymbolRecord{
		Name:      name,
		Kind:      types.KindTypedef,
		StartLine: start,
		EndLine:   end,
		Content:   nodeText(node, src),
		Signature: strings.TrimSuffix(collapseWhitespace(nodeText(node, src)), ";"),
		Docstring: leadingComment(node, src),
	}, true
}

func cMacro(node *sitter.Node, src []byte) (types.SymbolRecord, bool) {
	name := nodeText(node.ChildByFieldName("name"), src)
	if name == "" {
		return types.SymbolRecord{}, false
	}

	content := strings.TrimRight(nodeText(node, src), "\n")
	start, end := lineRange(node)
	if end > start && strings.Count(content, "\n") < end-start {
		end = start + strings.Count(content, "\n")
	}

	return types.SymbolRecord{
		Name:      name,
		Kind:      types.KindMacro,
		StartLine: start,
		EndLine:   end,
		Content:   content,
		Docstring: leadingComment(node, src),
	}, true
}

// ---- declarator plumbing ----

// declaratorChild steps one level into a declarator wrapper. Some
// wrappers (parenthesized, reference) expose no field name, so the first
// named child is the fallback.
func declaratorChild(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if d := n.ChildByFieldName("declarator"); d != nil {
		return d
	}
	if n.NamedChildCount() > 0 {
		return n.NamedChild(0)
	}
	return nil
}

// findFunctionDeclarator descends through declarator wrappers looking
// for a function_declarator, which marks a prototype or definition.
func findFunctionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n
		case "init_declarator", "pointer_declarator", "reference_declarator",
			"parenthesized_declarator", "array_declarator":
			n = declaratorChild(n)
		default:
			return nil
		}
	}
	return nil
}

// unwrapDeclarator descends to the innermost name-bearing node.
func unwrapDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier", "type_identifier",
			"qualified_identifier", "operator_name", "destructor_name":
			return n
		case "function_declarator", "init_declarator", "pointer_declarator",
			"reference_declarator", "parenthesized_declarator", "array_declarator":
			n = declaratorChild(n)
		default:
			return nil
		}
	}
	return nil
}

// resolveCName splits qualified names like Widget::draw into the bare
// name and its qualifier.
func resolveCName(nameNode *sitter.Node, src []byte) (string, string) {
	if nameNode == nil {
		return "", ""
	}
	if nameNode.Type() == "qualified_identifier" {
		scope := nodeText(nameNode.ChildByFieldName("scope"), src)
		name, parent := resolveCName(nameNode.ChildByFieldName("name"), src)
		if parent == "" {
			parent = scope
		}
		return name, parent
	}
	return nodeText(nameNode, src), ""
}

func cParameters(fd *sitter.Node, src []byte) []string {
	params := fd.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}

	var out []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter":
			text := collapseWhitespace(nodeText(p, src))
			if text != "" && text != "void" {
				out = append(out, text)
			}
		}
	}
	return out
}

// enclosingCType returns the name of the class or struct whose body
// lexically contains node, or "".
func enclosingCType(node *sitter.Node, src []byte) string {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "class_specifier", "struct_specifier":
			return nodeText(p.ChildByFieldName("name"), src)
		case "translation_unit":
			return ""
		}
	}
	return ""
}

// leadingComment joins the comment block immediately above a node,
// stripped of comment markers. A blank line breaks adjacency.
func leadingComment(node *sitter.Node, src []byte) string {
	var parts []string
	expect := int(node.StartPoint().Row) - 1

	for sib := node.PrevNamedSibling(); sib != nil && sib.Type() == "comment"; sib = sib.PrevNamedSibling() {
		if int(sib.EndPoint().Row) < expect {
			break
		}
		parts = append(parts, cleanComment(nodeText(sib, src)))
		expect = int(sib.StartPoint().Row) - 1
	}

	// parts were collected bottom-up
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func cleanComment(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "/*") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "/*"), "*/")
	}

	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		ln = strings.TrimSpace(ln)
		ln = strings.TrimPrefix(ln, "//")
		ln = strings.TrimPrefix(ln, "*")
		lines[i] = strings.TrimSpace(ln)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
