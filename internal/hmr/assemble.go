package hmr

import (
	"strings"

	"github.com/versa-dev/versa/internal/jsparser"
)

// ReloadMarker is the first line of a module that needs a full page reload
// when it changes, instead of a hot swap.
const ReloadMarker = "//versaHRM-reloadFILE"

// Strategy is the way the output of a module is assembled.
type Strategy int

const (
	// NoRewrite keeps the module as it is.
	NoRewrite Strategy = iota
	// WrapInAsyncBlock loads the rewritten imports in an async IIFE.
	WrapInAsyncBlock
	// SpliceIntoComponentBody loads the rewritten imports in the component setup.
	SpliceIntoComponentBody
	// EntryPointPassthrough keeps the application entry as it is.
	EntryPointPassthrough
)

func (s Strategy) String() string {
	switch s {
	case WrapInAsyncBlock:
		return "wrap"
	case SpliceIntoComponentBody:
		return "splice"
	case EntryPointPassthrough:
		return "entry"
	default:
		return "none"
	}
}

func selectStrategy(kind FileKind, hasDynamic bool) Strategy {
	switch {
	case kind == VueEntryPoint:
		return EntryPointPassthrough
	case !hasDynamic:
		return NoRewrite
	case kind == VueComponent:
		return SpliceIntoComponentBody
	default:
		return WrapInAsyncBlock
	}
}

// NeedsReload reports whether changes of a file of the kind need a full reload.
func NeedsReload(kind FileKind) bool {
	return kind == VueEntryPoint || kind == CoreDefinitionFile
}

type assembler struct {
	mod   *jsparser.Module
	cls   *Classification
	plan  *Plan
	edits []edit
	// byStart maps the start offset of an import statement to its import.
	byStart map[int]*ClassifiedImport
}

// assemble builds the output of the module. edits rewrite specifiers that
// stay in place.
func assemble(mod *jsparser.Module, cls *Classification, plan *Plan, edits []edit) (string, Strategy) {
	a := &assembler{mod: mod, cls: cls, plan: plan, edits: edits, byStart: map[int]*ClassifiedImport{}}
	for _, ci := range cls.Imports {
		a.byStart[ci.Start] = ci
	}

	strategy := selectStrategy(cls.Kind, !plan.Empty())
	var out string
	switch strategy {
	case NoRewrite, EntryPointPassthrough:
		out = a.passthrough()
	case SpliceIntoComponentBody:
		var ok bool
		if out, ok = a.spliceComponent(); !ok {
			// no setup return to splice before, the body follows the loader block
			strategy = WrapInAsyncBlock
			out = a.wrap(false)
		}
	case WrapInAsyncBlock:
		out = a.wrap(true)
	}

	out = finish(out)
	if NeedsReload(cls.Kind) {
		out = ReloadMarker + "\n" + out
	}
	return out, strategy
}

func (a *assembler) passthrough() string {
	f := &fragments{src: a.mod.Source, edits: a.edits}
	f.source(jsparser.Range{Start: 0, End: len(a.mod.Source)})
	return f.linearize()
}

// chunk returns the range of the i-th top-level statement extended back to the
// end of the previous statement, so that leading comments stay with it. The
// last statement also takes the rest of the file.
func (a *assembler) chunk(i int) jsparser.Range {
	stmts := a.mod.Statements
	src := a.mod.Source
	start := 0
	if i > 0 {
		start = stmts[i-1].End
	}
	for start < stmts[i].Start && (src[start] == ' ' || src[start] == '\t' || src[start] == ';') {
		start++
	}
	end := stmts[i].End
	if i == len(stmts)-1 {
		end = len(src)
	}
	return jsparser.Range{Start: start, End: end}
}

// wrap assembles kept imports, binding declarations, then an async IIFE that
// loads the rewritten imports and registers them for reloading. With
// embedBody the body runs inside the IIFE after the initial load and the
// exports follow it; otherwise body and exports follow the IIFE in source order.
//
// Names declared by the embedded body are declared at module scope and the
// declarations inside the IIFE become assignments, so that exports and
// functions outside of it still see them.
func (a *assembler) wrap(embedBody bool) string {
	f := &fragments{src: a.mod.Source, edits: append([]edit(nil), a.edits...)}
	var body []jsparser.Statement
	var bodyRanges, exports, rest []jsparser.Range
	for i, stmt := range a.mod.Statements {
		r := a.chunk(i)
		switch stmt.Kind {
		case jsparser.ImportStatement:
			if ci := a.byStart[stmt.Start]; ci != nil && ci.Disposition == StaticKeep {
				f.source(r)
			}
			continue
		case jsparser.ExportStatement:
			exports = append(exports, r)
		default:
			body = append(body, stmt)
			bodyRanges = append(bodyRanges, r)
		}
		rest = append(rest, r)
	}

	decls := a.plan.Declarations
	if embedBody {
		decls = append(append([]string(nil), decls...), hoistedDeclarations(a.plan, body)...)
	}
	f.text("\n" + strings.Join(decls, "\n") + "\n")
	f.text("(async () => {")
	boot := append(append(append([]string(nil), a.plan.Loaders...), a.plan.InitialLoads...), a.plan.Registrations...)
	f.text(indent(strings.Join(boot, "\n"), "  "))
	if embedBody {
		for i, r := range bodyRanges {
			// indentation goes first, insertions at one offset keep their order
			f.edits = append(f.edits, indentEdits(a.mod, r, "  ")...)
			f.edits = append(f.edits, assignmentEdits(a.mod.Source, body[i])...)
			f.source(r)
		}
		f.text("})();\n")
		for _, r := range exports {
			f.source(r)
		}
	} else {
		f.text("})();\n")
		for _, r := range rest {
			f.source(r)
		}
	}
	return f.linearize()
}

// hoistedDeclarations returns one `let` declaration per name declared by the
// statements, skipping the names the plan declares already.
func hoistedDeclarations(plan *Plan, stmts []jsparser.Statement) []string {
	seen := map[string]bool{}
	for _, d := range plan.Declarations {
		seen[strings.TrimSuffix(strings.TrimPrefix(d, "let "), ";")] = true
	}
	var decls []string
	for _, stmt := range stmts {
		if stmt.Decl == nil {
			continue
		}
		for _, name := range stmt.Decl.Names {
			if !seen[name] {
				seen[name] = true
				decls = append(decls, "let "+name+";")
			}
		}
	}
	return decls
}

// assignmentEdits turn a declaration into assignments to the hoisted names:
// `const a = 1` becomes `a = 1`, `const { a } = b` becomes `;({ a } = b)`,
// `function f() {}` becomes `f = function f() {};`. Edits never touch the
// statement's end offset, which the next chunk starts at.
func assignmentEdits(src string, stmt jsparser.Statement) []edit {
	d := stmt.Decl
	switch {
	case d == nil:
		return nil
	case d.Function:
		return []edit{
			{start: stmt.Start, end: stmt.Start, text: d.Names[0] + " = "},
			{start: stmt.End - 1, end: stmt.End, text: src[stmt.End-1:stmt.End] + ";"},
		}
	case d.Pattern:
		last := d.Declarators.End - 1
		return []edit{
			{start: d.Keyword.Start, end: d.Keyword.End, text: ";("},
			{start: last, end: d.Declarators.End, text: src[last:d.Declarators.End] + ")"},
		}
	default:
		return []edit{{start: d.Keyword.Start, end: d.Keyword.End}}
	}
}

// spliceComponent inserts the loader code of the component before the return
// statement of its setup function, and moves the `onMounted` hooks of the
// setup after it, delayed until the rewritten imports are loaded. It returns
// false when the module has no setup return statement.
func (a *assembler) spliceComponent() (string, bool) {
	setup, marker, ok := a.setupMarker()
	if !ok {
		return "", false
	}
	src := a.mod.Source

	var removed []jsparser.Range
	for _, ci := range a.cls.Dynamic() {
		removed = append(removed, lineRange(src, jsparser.Range{Start: ci.Start, End: ci.End}))
	}
	hooks := a.mountedHooks(setup, marker)
	for _, h := range hooks {
		removed = append(removed, lineRange(src, h.Stmt))
	}

	var edits []edit
	for _, e := range a.edits {
		if !insideAny(e, removed) {
			edits = append(edits, e)
		}
	}
	for _, r := range removed {
		edits = append(edits, edit{start: r.Start, end: r.End})
	}

	// declarations and loaders go after the last import
	last := a.mod.Imports[len(a.mod.Imports)-1]
	at := lineRange(src, jsparser.Range{Start: last.Start, End: last.End}).End
	decls := "\n" + strings.Join(a.plan.Declarations, "\n") + "\n\n" + strings.Join(a.plan.Loaders, "\n") + "\n\n"
	edits = append(edits, edit{start: at, end: at, text: decls})

	lineStart := strings.LastIndexByte(src[:marker], '\n') + 1
	ind := src[lineStart:marker]
	ownLine := strings.TrimLeft(ind, " \t") == ""
	if !ownLine {
		ind = leadingSpace(src[lineStart:])
	}
	boot := indent(strings.Join(append(append([]string(nil), a.plan.InitialLoads...), a.plan.Registrations...), "\n"), ind)
	for _, h := range hooks {
		boot += "\n" + a.wrapHook(h, ind)
	}
	if ownLine {
		edits = append(edits, edit{start: lineStart, end: lineStart, text: boot + "\n"})
	} else {
		edits = append(edits, edit{start: marker, end: marker, text: "\n" + boot + "\n" + ind})
	}
	return splice(src, edits), true
}

// setupMarker returns the first setup function with a return statement and
// the offset of its last return statement.
func (a *assembler) setupMarker() (jsparser.Setup, int, bool) {
	for _, s := range a.mod.Setups {
		if n := len(s.Returns); n > 0 {
			return s, s.Returns[n-1], true
		}
	}
	return jsparser.Setup{}, 0, false
}

// mountedHooks returns the `onMounted(...)` statements of the setup body,
// nested ones excluded.
func (a *assembler) mountedHooks(setup jsparser.Setup, marker int) []jsparser.Call {
	var hooks []jsparser.Call
	for _, c := range a.mod.CallsOf("onMounted") {
		if !c.Standalone || len(c.Args) == 0 {
			continue
		}
		if c.Stmt.Start < setup.Body.Start || c.Stmt.End > setup.Body.End {
			continue
		}
		if c.Stmt.Start <= marker && c.Stmt.End > marker {
			continue
		}
		nested := false
		for _, h := range hooks {
			if c.Stmt.Start >= h.Stmt.Start && c.Stmt.End <= h.Stmt.End {
				nested = true
				break
			}
		}
		if !nested {
			hooks = append(hooks, c)
		}
	}
	return hooks
}

// wrapHook rewrites `onMounted(fn, ...rest)` to run fn after the initial
// load of the rewritten imports.
func (a *assembler) wrapHook(h jsparser.Call, ind string) string {
	src := a.mod.Source
	hookLineStart := strings.LastIndexByte(src[:h.Stmt.Start], '\n') + 1
	from := leadingSpace(src[hookLineStart:])

	cbRange := h.Args[0]
	edits := append([]edit(nil), a.edits...)
	for i := cbRange.Start; i < cbRange.End; i++ {
		if src[i-1] == '\n' && strings.HasPrefix(src[i:], from) && !a.mod.InTemplate(i) {
			edits = append(edits, edit{start: i, end: i + len(from), text: ind + "  "})
		}
	}
	cb := spliceRange(src, cbRange, edits)

	var rest strings.Builder
	for _, arg := range h.Args[1:] {
		rest.WriteString(", ")
		rest.WriteString(spliceRange(src, arg, a.edits))
	}
	return ind + "onMounted(async (...args) => {\n" +
		ind + "  await " + readyName + ";\n" +
		ind + "  return (" + cb + ")(...args);\n" +
		ind + "}" + rest.String() + ");"
}

// lineRange extends r to whole lines when r is alone on its lines, so that
// removing it leaves no blank line behind.
func lineRange(src string, r jsparser.Range) jsparser.Range {
	start := r.Start
	for start > 0 && (src[start-1] == ' ' || src[start-1] == '\t') {
		start--
	}
	if start > 0 && src[start-1] != '\n' {
		return r
	}
	end := r.End
	for end < len(src) && (src[end] == ' ' || src[end] == '\t' || src[end] == '\r') {
		end++
	}
	if end < len(src) && src[end] != '\n' {
		return r
	}
	if end < len(src) {
		end++
	}
	return jsparser.Range{Start: start, End: end}
}

func insideAny(e edit, ranges []jsparser.Range) bool {
	for _, r := range ranges {
		if e.start >= r.Start && e.end <= r.End {
			return true
		}
	}
	return false
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}
