package jsparser

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ParseError is returned when the source has syntax errors. No partial module
// is returned along with it.
type ParseError struct {
	Path string
	Line int
	Near string
}

func (e *ParseError) Error() string {
	if e.Near != "" {
		return fmt.Sprintf("%s:%d: syntax error near %q", e.Path, e.Line, e.Near)
	}
	return fmt.Sprintf("%s:%d: syntax error", e.Path, e.Line)
}

// Language returns the tree-sitter grammar for the file: TypeScript for
// `.ts/.mts/.cts/.vue`, JavaScript (with JSX) for anything else.
func Language(filename string) *sitter.Language {
	switch strings.ToLower(path.Ext(filename)) {
	case ".ts", ".mts", ".cts", ".vue":
		return typescript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// Parse parses the source file into a Module.
func Parse(ctx context.Context, filename string, src []byte) (*Module, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language(filename))

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		perr := &ParseError{Path: filename, Line: 1}
		if n := firstError(root); n != nil {
			perr.Line = int(n.StartPoint().Row) + 1
			perr.Near = firstLine(n.Content(src))
		}
		return nil, perr
	}

	w := &walker{
		src: src,
		mod: &Module{Path: filename, Source: string(src)},
	}
	w.program(root)
	return w.mod, nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if e := firstError(c); e != nil {
			return e
		}
	}
	return nil
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(s, "\n")
	if len(s) > 40 {
		s = s[:40]
	}
	return strings.TrimSpace(s)
}

type walker struct {
	src []byte
	mod *Module
}

func (w *walker) program(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "comment", "hash_bang_line", "empty_statement":
			continue
		case "import_statement":
			if rec := w.importStatement(n); rec != nil {
				w.mod.Imports = append(w.mod.Imports, rec)
				w.mod.Statements = append(w.mod.Statements, Statement{Kind: ImportStatement, Range: nodeRange(n)})
				continue
			}
			w.mod.Statements = append(w.mod.Statements, Statement{Kind: OtherStatement, Range: nodeRange(n)})
		case "export_statement":
			if source := n.ChildByFieldName("source"); source != nil {
				w.mod.ExportSources = append(w.mod.ExportSources, SourceRef{
					Range:     nodeRange(source),
					Specifier: unquote(source.Content(w.src)),
					Line:      line(source),
				})
			}
			w.mod.Statements = append(w.mod.Statements, Statement{Kind: ExportStatement, Range: nodeRange(n)})
		default:
			w.mod.Statements = append(w.mod.Statements, Statement{Kind: OtherStatement, Range: nodeRange(n), Decl: w.declaration(n)})
		}
		w.visit(n, nil)
	}
}

// declaration describes a variable, function or class declaration, or
// returns nil for other statements.
func (w *walker) declaration(n *sitter.Node) *Declaration {
	switch n.Type() {
	case "lexical_declaration", "variable_declaration":
		d := &Declaration{}
		var first, last *sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "variable_declarator" {
				continue
			}
			if first == nil {
				first = c
			}
			last = c
			name := c.ChildByFieldName("name")
			if name == nil {
				continue
			}
			if name.Type() != "identifier" {
				d.Pattern = true
			}
			d.Names = w.patternNames(name, d.Names)
		}
		if first == nil {
			return nil
		}
		d.Keyword = Range{Start: int(n.StartByte()), End: int(first.StartByte())}
		d.Declarators = Range{Start: int(first.StartByte()), End: int(last.EndByte())}
		return d
	case "function_declaration", "generator_function_declaration", "class_declaration", "abstract_class_declaration":
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		return &Declaration{Names: []string{name.Content(w.src)}, Function: true}
	}
	return nil
}

// patternNames appends the names bound by a declarator name: an identifier
// or an object/array destructuring pattern.
func (w *walker) patternNames(n *sitter.Node, names []string) []string {
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return append(names, n.Content(w.src))
	case "pair_pattern":
		if v := n.ChildByFieldName("value"); v != nil {
			return w.patternNames(v, names)
		}
	case "assignment_pattern", "object_assignment_pattern":
		if left := n.ChildByFieldName("left"); left != nil {
			return w.patternNames(left, names)
		}
	case "rest_pattern", "object_pattern", "array_pattern":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			names = w.patternNames(n.NamedChild(i), names)
		}
	}
	return names
}

// importStatement returns nil for imports without a source, e.g. the
// TypeScript `import x = require("x")` form.
func (w *walker) importStatement(n *sitter.Node) *ImportRecord {
	source := n.ChildByFieldName("source")
	if source == nil {
		return nil
	}
	rec := &ImportRecord{
		Specifier: unquote(source.Content(w.src)),
		SpecStart: int(source.StartByte()),
		SpecEnd:   int(source.EndByte()),
		Start:     int(n.StartByte()),
		End:       int(n.EndByte()),
		Line:      line(n),
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "type", "typeof":
			rec.TypeOnly = true
		case "import_clause":
			w.importClause(c, rec)
		}
	}
	return rec
}

func (w *walker) importClause(n *sitter.Node, rec *ImportRecord) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "identifier":
			rec.Default = c.Content(w.src)
		case "namespace_import":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if id := c.NamedChild(j); id.Type() == "identifier" {
					rec.Namespace = id.Content(w.src)
				}
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" || isTypeSpecifier(spec) {
					continue
				}
				name := spec.ChildByFieldName("name")
				if name == nil {
					continue
				}
				b := NamedBinding{Imported: name.Content(w.src)}
				if name.Type() == "string" {
					b.Imported = unquote(b.Imported)
				}
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					b.Local = alias.Content(w.src)
				} else {
					b.Local = b.Imported
				}
				rec.Named = append(rec.Named, b)
			}
		}
	}
}

func isTypeSpecifier(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if t := n.Child(i).Type(); t == "type" || t == "typeof" {
			return true
		}
	}
	return false
}

// visit walks the subtree collecting calls, dynamic imports, template literals
// and the return statements of `setup` functions.
func (w *walker) visit(n *sitter.Node, parent *sitter.Node) {
	switch n.Type() {
	case "call_expression":
		w.call(n, parent)
	case "template_string":
		w.mod.Templates = append(w.mod.Templates, nodeRange(n))
	case "method_definition":
		if name := n.ChildByFieldName("name"); name != nil && name.Content(w.src) == "setup" {
			w.setup(n.ChildByFieldName("body"))
		}
	case "pair":
		key := n.ChildByFieldName("key")
		value := n.ChildByFieldName("value")
		if key != nil && value != nil && unquote(key.Content(w.src)) == "setup" && isFunction(value) {
			w.setup(value.ChildByFieldName("body"))
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i), n)
	}
}

func (w *walker) call(n *sitter.Node, parent *sitter.Node) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return
	}
	switch fn.Type() {
	case "import":
		if args.NamedChildCount() == 0 {
			return
		}
		arg := args.NamedChild(0)
		switch arg.Type() {
		case "string":
			w.mod.DynamicImports = append(w.mod.DynamicImports, DynamicImport{
				Range:     nodeRange(arg),
				Specifier: unquote(arg.Content(w.src)),
				Line:      line(arg),
			})
		case "template_string":
			w.mod.DynamicImports = append(w.mod.DynamicImports, DynamicImport{
				Range:    nodeRange(arg),
				Template: true,
				Line:     line(arg),
			})
		}
	case "identifier":
		call := Call{
			Callee: fn.Content(w.src),
			Range:  nodeRange(n),
			Stmt:   nodeRange(n),
			Line:   line(n),
		}
		if parent != nil && parent.Type() == "expression_statement" {
			call.Stmt = nodeRange(parent)
			call.Standalone = true
		}
		for i := 0; i < int(args.NamedChildCount()); i++ {
			if a := args.NamedChild(i); a.Type() != "comment" {
				call.Args = append(call.Args, nodeRange(a))
			}
		}
		w.mod.Calls = append(w.mod.Calls, call)
	}
}

func (w *walker) setup(body *sitter.Node) {
	if body == nil || body.Type() != "statement_block" {
		return
	}
	setup := Setup{Body: nodeRange(body)}
	var returns func(n *sitter.Node)
	returns = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "return_statement" {
				setup.Returns = append(setup.Returns, int(c.StartByte()))
				continue
			}
			if isFunction(c) || c.Type() == "class_declaration" || c.Type() == "class" {
				continue
			}
			returns(c)
		}
	}
	returns(body)
	w.mod.Setups = append(w.mod.Setups, setup)
}

func isFunction(n *sitter.Node) bool {
	switch n.Type() {
	case "function", "function_expression", "arrow_function", "generator_function", "function_declaration", "method_definition":
		return true
	}
	return false
}

func nodeRange(n *sitter.Node) Range {
	return Range{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		if s[0] == '"' {
			if v, err := strconv.Unquote(s); err == nil {
				return v
			}
		}
		return s[1 : len(s)-1]
	}
	return s
}
