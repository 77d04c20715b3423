package jsparser

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseImports(t *testing.T) {
	src := `import Vue from "vue";
import * as utils from './utils.js';
import def, { a, b as c, "d-e" as de } from './lib.js';
import type { T } from './types';
import './side-effect.js';
// trailing comment
export { a };
`
	mod, err := Parse(context.Background(), "main.ts", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(mod.Imports) != 5 {
		t.Fatalf("expected 5 imports, got %d", len(mod.Imports))
	}

	vue := mod.Imports[0]
	if vue.Specifier != "vue" || vue.Default != "Vue" || vue.Line != 1 {
		t.Errorf("unexpected import %+v", vue)
	}
	if src[vue.SpecStart:vue.SpecEnd] != `"vue"` {
		t.Errorf("unexpected specifier range %q", src[vue.SpecStart:vue.SpecEnd])
	}
	if src[vue.Start:vue.End] != `import Vue from "vue";` {
		t.Errorf("unexpected statement range %q", src[vue.Start:vue.End])
	}

	if ns := mod.Imports[1]; ns.Namespace != "utils" || ns.Specifier != "./utils.js" {
		t.Errorf("unexpected import %+v", ns)
	}

	lib := mod.Imports[2]
	want := []NamedBinding{{"a", "a"}, {"b", "c"}, {"d-e", "de"}}
	if lib.Default != "def" || len(lib.Named) != len(want) {
		t.Fatalf("unexpected import %+v", lib)
	}
	for i, b := range want {
		if lib.Named[i] != b {
			t.Errorf("binding %d: expected %+v, got %+v", i, b, lib.Named[i])
		}
	}
	if names := lib.LocalNames(); len(names) != 4 || names[0] != "def" || names[2] != "c" {
		t.Errorf("unexpected local names %v", names)
	}

	if !mod.Imports[3].TypeOnly {
		t.Error("expected a type-only import")
	}
	if mod.Imports[4].HasBindings() {
		t.Error("expected a side-effect import")
	}

	kinds := []StatementKind{ImportStatement, ImportStatement, ImportStatement, ImportStatement, ImportStatement, ExportStatement}
	if len(mod.Statements) != len(kinds) {
		t.Fatalf("expected %d statements, got %d", len(kinds), len(mod.Statements))
	}
	for i, k := range kinds {
		if mod.Statements[i].Kind != k {
			t.Errorf("statement %d: expected %s, got %s", i, k, mod.Statements[i].Kind)
		}
	}
}

func TestParseDynamicImportsAndCalls(t *testing.T) {
	src := "const page = import('./pages/home.js');\n" +
		"const lazy = import(`@/pages/${name}.ts`);\n" +
		"onMounted(() => {\n  start();\n});\n" +
		"export * from './reexport.js';\n"
	mod, err := Parse(context.Background(), "app.js", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(mod.DynamicImports) != 2 {
		t.Fatalf("expected 2 dynamic imports, got %d", len(mod.DynamicImports))
	}
	if d := mod.DynamicImports[0]; d.Specifier != "./pages/home.js" || d.Template {
		t.Errorf("unexpected dynamic import %+v", d)
	}
	if d := mod.DynamicImports[1]; !d.Template || mod.Slice(d.Range) != "`@/pages/${name}.ts`" {
		t.Errorf("unexpected dynamic import %+v", d)
	}
	if len(mod.Templates) != 1 {
		t.Errorf("expected 1 template literal, got %d", len(mod.Templates))
	}

	mounted := mod.CallsOf("onMounted")
	if len(mounted) != 1 {
		t.Fatalf("expected 1 onMounted call, got %d", len(mounted))
	}
	if got := mod.Slice(mounted[0].Stmt); got != "onMounted(() => {\n  start();\n});" || !mounted[0].Standalone {
		t.Errorf("unexpected statement %q", got)
	}
	if len(mounted[0].Args) != 1 || mod.Slice(mounted[0].Args[0]) != "() => {\n  start();\n}" {
		t.Errorf("unexpected arguments %+v", mounted[0].Args)
	}
	if len(mod.CallsOf("start")) != 1 {
		t.Error("expected the nested start() call")
	}

	if len(mod.ExportSources) != 1 || mod.ExportSources[0].Specifier != "./reexport.js" {
		t.Errorf("unexpected export sources %+v", mod.ExportSources)
	}
}

func TestParseSetupReturns(t *testing.T) {
	src := `import { defineComponent } from "vue";
export default defineComponent({
  setup() {
    const f = () => {
      return 1;
    };
    return { f };
  },
});
`
	mod, err := Parse(context.Background(), "comp.ts", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(mod.Setups) != 1 || len(mod.Setups[0].Returns) != 1 {
		t.Fatalf("expected 1 setup with 1 return, got %+v", mod.Setups)
	}
	setup := mod.Setups[0]
	if got := src[setup.Returns[0]:]; got[:13] != "return { f };" {
		t.Errorf("unexpected return statement %q", got[:13])
	}
	if body := mod.Slice(setup.Body); body[0] != '{' || body[len(body)-1] != '}' {
		t.Errorf("unexpected setup body %q", body)
	}
}

func TestParseDeclarations(t *testing.T) {
	src := `const a = 1, b = 2;
let { c, d: e, ...f } = obj
var [g, , h = 1] = list
function helper() {}
async function load() {}
class Store {}
export const i = 1
a + b
`
	mod, err := Parse(context.Background(), "main.js", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		names       string
		pattern     bool
		function    bool
		keyword     string
		declarators string
	}{
		{"a,b", false, false, "const ", "a = 1, b = 2"},
		{"c,e,f", true, false, "let ", "{ c, d: e, ...f } = obj"},
		{"g,h", true, false, "var ", "[g, , h = 1] = list"},
		{"helper", false, true, "", ""},
		{"load", false, true, "", ""},
		{"Store", false, true, "", ""},
	}
	if len(mod.Statements) != len(tests)+2 {
		t.Fatalf("expected %d statements, got %d", len(tests)+2, len(mod.Statements))
	}
	for i, tt := range tests {
		d := mod.Statements[i].Decl
		if d == nil {
			t.Errorf("statement %d: expected a declaration", i)
			continue
		}
		if got := strings.Join(d.Names, ","); got != tt.names {
			t.Errorf("statement %d: expected names %s, got %s", i, tt.names, got)
		}
		if d.Pattern != tt.pattern || d.Function != tt.function {
			t.Errorf("statement %d: unexpected declaration %+v", i, d)
		}
		if got := mod.Slice(d.Keyword); got != tt.keyword {
			t.Errorf("statement %d: expected keyword %q, got %q", i, tt.keyword, got)
		}
		if got := mod.Slice(d.Declarators); got != tt.declarators {
			t.Errorf("statement %d: expected declarators %q, got %q", i, tt.declarators, got)
		}
	}
	for _, stmt := range mod.Statements[len(tests):] {
		if stmt.Decl != nil {
			t.Errorf("unexpected declaration %+v", stmt.Decl)
		}
	}
}

func TestParseError(t *testing.T) {
	_, err := Parse(context.Background(), "broken.js", []byte("const a = 1;\nimport { from './x.js';\n"))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected a ParseError, got %v", err)
	}
	if perr.Path != "broken.js" || perr.Line < 1 {
		t.Errorf("unexpected error %+v", perr)
	}
}

func TestCache(t *testing.T) {
	cache, err := NewCache(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	src := []byte(`import a from "./a.js";`)
	m1, err := cache.Parse(context.Background(), "x.js", src)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := cache.Parse(context.Background(), "x.js", src)
	if err != nil {
		t.Fatal(err)
	}
	if m1 != m2 {
		t.Error("expected the cached module")
	}
	m3, err := cache.Parse(context.Background(), "y.js", src)
	if err != nil {
		t.Fatal(err)
	}
	if m3 == m1 || m3.Path != "y.js" {
		t.Error("expected a separate module per path")
	}
}
