package jsparser

// StatementKind is the syntactic category of a top-level statement.
type StatementKind int

const (
	OtherStatement StatementKind = iota
	ImportStatement
	ExportStatement
)

func (k StatementKind) String() string {
	switch k {
	case ImportStatement:
		return "import"
	case ExportStatement:
		return "export"
	default:
		return "other"
	}
}

// Range is a half-open byte range of the source.
type Range struct {
	Start int
	End   int
}

// Len returns the length of the range in bytes.
func (r Range) Len() int {
	return r.End - r.Start
}

// Statement is a top-level statement of a module. Comments are not statements.
type Statement struct {
	Kind StatementKind
	Range
	// Decl is set for variable, function and class declarations.
	Decl *Declaration
}

// Declaration is a top-level declaration statement.
type Declaration struct {
	// Names are the bound names in source order, destructuring patterns
	// included.
	Names []string
	// Keyword covers `const`, `let` or `var` and the space after it. It is
	// empty for function and class declarations.
	Keyword Range
	// Declarators covers the declarators of a variable declaration, the
	// trailing semicolon excluded.
	Declarators Range
	// Pattern is true when a declarator binds a destructuring pattern.
	Pattern bool
	// Function is true for function and class declarations.
	Function bool
}

// NamedBinding is one `{ Imported as Local }` entry of an import declaration.
// Imported is the exported name of the imported module, it may be a string
// literal name such as "a-b" for `import { "a-b" as ab }`.
type NamedBinding struct {
	Imported string
	Local    string
}

// ImportRecord is a top-level static import declaration.
type ImportRecord struct {
	Specifier string
	// SpecStart and SpecEnd cover the specifier string literal, quotes included.
	SpecStart int
	SpecEnd   int
	Default   string
	Namespace string
	Named     []NamedBinding
	TypeOnly  bool
	// Start and End cover the whole statement.
	Start int
	End   int
	// Line is 1-based.
	Line int
}

// LocalNames returns the names the import binds in the module scope, in
// declaration order.
func (r *ImportRecord) LocalNames() []string {
	names := make([]string, 0, len(r.Named)+2)
	if r.Default != "" {
		names = append(names, r.Default)
	}
	if r.Namespace != "" {
		names = append(names, r.Namespace)
	}
	for _, b := range r.Named {
		names = append(names, b.Local)
	}
	return names
}

// HasBindings reports whether the import binds any name, i.e. it is not a
// side-effect import such as `import "./polyfill.js"`.
func (r *ImportRecord) HasBindings() bool {
	return r.Default != "" || r.Namespace != "" || len(r.Named) > 0
}

// DynamicImport is the argument of an `import(...)` expression.
type DynamicImport struct {
	Range
	// Specifier is the unquoted value of a plain string argument.
	Specifier string
	// Template is true for a template literal argument.
	Template bool
	Line     int
}

// SourceRef is the source string literal of an `export ... from "..."` statement.
type SourceRef struct {
	Range
	Specifier string
	Line      int
}

// Call is a call expression whose callee is a plain identifier, e.g. `onMounted(fn)`.
type Call struct {
	Callee string
	Range
	Args []Range
	// Stmt is the enclosing expression statement, or the call itself when the
	// call is not a statement on its own.
	Stmt Range
	// Standalone reports whether the call is an expression statement on its
	// own. Stmt equals the call range then when the semicolon is omitted.
	Standalone bool
	Line       int
}

// Module is a parsed source file. It is immutable once returned by Parse.
type Module struct {
	Path           string
	Source         string
	Statements     []Statement
	Imports        []*ImportRecord
	DynamicImports []DynamicImport
	ExportSources  []SourceRef
	Calls          []Call
	// Templates are the template literals of the module.
	Templates []Range
	Setups    []Setup
}

// Setup is the body of a component `setup` function.
type Setup struct {
	Body Range
	// Returns are the offsets of the return statements of the body, nested
	// functions excluded.
	Returns []int
}

// Slice returns the source text of the range.
func (m *Module) Slice(r Range) string {
	return m.Source[r.Start:r.End]
}

// InTemplate reports whether the offset falls inside a template literal.
func (m *Module) InTemplate(offset int) bool {
	for _, t := range m.Templates {
		if offset > t.Start && offset < t.End {
			return true
		}
	}
	return false
}

// CallsOf returns the calls of the given callee in source order.
func (m *Module) CallsOf(callee string) []Call {
	var calls []Call
	for _, c := range m.Calls {
		if c.Callee == callee {
			calls = append(calls, c)
		}
	}
	return calls
}
