package hmr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/versa-dev/versa/internal/config"
)

func TestTransformPlain(t *testing.T) {
	cfg := newConfig(`{}`, "")
	src := "import { x } from './a.js'; x();"
	ret, err := Transform(context.Background(), parse(t, "main.js", src), cfg, newResolver(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if ret.Strategy != WrapInAsyncBlock {
		t.Fatalf("got strategy %s, want wrap", ret.Strategy)
	}
	code := ret.Code
	if !strings.HasPrefix(code, "let x;\n(async () => {\n") {
		t.Fatalf("unexpected output:\n%s", code)
	}
	if strings.Contains(code, "import { x }") {
		t.Errorf("static import not removed:\n%s", code)
	}
	load := strings.Index(code, "  __versaHMR_apply0(await __versaHMR_load0());")
	call := strings.Index(code, "\n  x();")
	end := strings.LastIndex(code, "})();")
	if load < 0 || call < load || end < call {
		t.Errorf("the call must follow the initial load inside the async block:\n%s", code)
	}
	for _, s := range []string{
		`const __versaHMR_load0 = () => import("./a.js?t=" + Date.now());`,
		"    x = m.x;",
		`const __versaHMR_path0 = new URL("./a.js", import.meta.url).pathname;`,
		"__versaHMR.modules[__versaHMR_path0] ??= async () => {",
		"globalThis.__VERSA_HMR__ ??= {",
	} {
		if !strings.Contains(code, s) {
			t.Errorf("missing %q in:\n%s", s, code)
		}
	}
	if ret.Reload || strings.HasPrefix(code, ReloadMarker) {
		t.Errorf("plain file must not reload the page")
	}
	if len(ret.Dynamic) != 1 || ret.Dynamic[0] != "./a.js" {
		t.Errorf("got dynamic paths %v", ret.Dynamic)
	}
}

func TestTransformKeepsExports(t *testing.T) {
	cfg := newConfig(`{"@/*": "/src/*"}`, "public")
	src := `import { format } from '@/utils/format.ts'
import { ref } from 'vue'

const count = ref(0)
const step = 1
export function show() {
  return format(count.value)
}
export { sum } from './math'
`
	ret, err := Transform(context.Background(), parse(t, "counter.ts", src), cfg, newResolver(cfg))
	if err != nil {
		t.Fatal(err)
	}
	code := ret.Code
	if !strings.HasPrefix(code, "import { ref } from 'vue'\n") {
		t.Errorf("kept import must come first:\n%s", code)
	}
	for _, s := range []string{
		"let format;\nlet count;\nlet step;\n",
		`import("/public/utils/format.js?t=" + Date.now())`,
		"  count = ref(0)\n  step = 1\n})();",
		"export function show() {\n  return format(count.value)\n}",
		"export { sum } from './math.js'",
	} {
		if !strings.Contains(code, s) {
			t.Errorf("missing %q in:\n%s", s, code)
		}
	}
	if strings.Index(code, "})();") > strings.Index(code, "export function show()") {
		t.Errorf("exports must follow the async block:\n%s", code)
	}
}

func TestTransformWrapDeclarations(t *testing.T) {
	cfg := newConfig(`{}`, "")
	tests := []struct {
		name     string
		src      string
		contains []string
		export   string
	}{
		{
			name: "const",
			src:  "import { x } from './a.js'\nconst y = x + 1\nexport { y }\n",
			contains: []string{
				"let x;\nlet y;\n(async () => {",
				"\n  y = x + 1\n})();",
			},
			export: "export { y }",
		},
		{
			name: "function",
			src:  "import { fmt } from './fmt.js'\nfunction helper() {\n  return fmt()\n}\nexport default helper\n",
			contains: []string{
				"let fmt;\nlet helper;\n(async () => {",
				"\n  helper = function helper() {\n    return fmt()\n  };\n})();",
			},
			export: "export default helper",
		},
		{
			name: "class and destructuring",
			src:  "import { base } from './base.js'\nlet { a, b: [c] } = base\nclass Store {}\nexport { a, c, Store }\n",
			contains: []string{
				"let base;\nlet a;\nlet c;\nlet Store;\n(async () => {",
				"\n  ;({ a, b: [c] } = base)\n  Store = class Store {};\n})();",
			},
			export: "export { a, c, Store }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ret, err := Transform(context.Background(), parse(t, "main.js", tt.src), cfg, newResolver(cfg))
			if err != nil {
				t.Fatal(err)
			}
			if ret.Strategy != WrapInAsyncBlock {
				t.Fatalf("got strategy %s, want wrap", ret.Strategy)
			}
			code := ret.Code
			for _, s := range tt.contains {
				if !strings.Contains(code, s) {
					t.Errorf("missing %q in:\n%s", s, code)
				}
			}
			for _, s := range []string{"const y", "let {", "\n  function ", "\n  class "} {
				if strings.Contains(code, s) {
					t.Errorf("declaration %q left in the output:\n%s", s, code)
				}
			}
			if strings.Index(code, "})();") > strings.Index(code, tt.export) {
				t.Errorf("exports must follow the async block:\n%s", code)
			}
		})
	}
}

func TestTransformRegistersPerImporter(t *testing.T) {
	cfg := newConfig(`{}`, "")
	for _, filename := range []string{"pages/a.js", "admin/b.js"} {
		src := "import { store } from './store.js'\nstore.init()\n"
		ret, err := Transform(context.Background(), parse(t, filename, src), cfg, newResolver(cfg))
		if err != nil {
			t.Fatal(err)
		}
		code := ret.Code
		for _, s := range []string{
			"  const __versaHMR_importer = new URL(import.meta.url).pathname;",
			`  const __versaHMR_path0 = new URL("./store.js", import.meta.url).pathname;`,
			"  (__versaHMR.importers[__versaHMR_path0] ??= {})[__versaHMR_importer] = async () => {",
			"  __versaHMR.modules[__versaHMR_path0] ??= async () => {",
		} {
			if !strings.Contains(code, s) {
				t.Errorf("%s: missing %q in:\n%s", filename, s, code)
			}
		}
		if strings.Contains(code, `modules["./store.js"]`) || strings.Contains(code, "modules[__versaHMR_path0] = ") {
			t.Errorf("%s: module entry must not be keyed by specifier or overwritten:\n%s", filename, code)
		}
	}
}

func TestTransformComponent(t *testing.T) {
	cfg := newConfig(`{}`, "")
	src := `import { defineComponent, onMounted } from 'vue'
import { helper } from './helper.js'

export default defineComponent({
  name: 'Counter',
  setup() {
    const value = 1
    onMounted(() => {
      console.log(helper(value))
    })
    return { value }
  },
})
`
	ret, err := Transform(context.Background(), parse(t, "Counter.js", src), cfg, newResolver(cfg))
	if err != nil {
		t.Fatal(err)
	}
	code := ret.Code
	if ret.Kind != VueComponent || ret.Strategy != SpliceIntoComponentBody {
		t.Fatalf("got %s/%s, want component/splice", ret.Kind, ret.Strategy)
	}
	if strings.HasPrefix(code, ReloadMarker) {
		t.Errorf("component must not reload the page")
	}
	if strings.Contains(code, "import { helper }") {
		t.Errorf("rewritten import not removed:\n%s", code)
	}
	for _, s := range []string{
		"import { defineComponent, onMounted } from 'vue'\n\nlet helper;\n",
		"export default defineComponent({\n  name: 'Counter',\n  setup() {\n    const value = 1\n",
		"    const __versaHMR_ready = (async () => {\n      __versaHMR_apply0(await __versaHMR_load0());\n    })();",
		"    onMounted(async (...args) => {\n      await __versaHMR_ready;\n      return (() => {\n        console.log(helper(value))\n      })(...args);\n    });",
		"    return { value }\n  },\n})",
	} {
		if !strings.Contains(code, s) {
			t.Errorf("missing %q in:\n%s", s, code)
		}
	}
	if n := strings.Count(code, "onMounted("); n != 1 {
		t.Errorf("got %d onMounted calls, want 1:\n%s", n, code)
	}
	if strings.Index(code, "__versaHMR_ready = ") > strings.Index(code, "return { value }") {
		t.Errorf("bootstrap must precede the setup return:\n%s", code)
	}
}

func TestTransformComponentHooks(t *testing.T) {
	cfg := newConfig(`{}`, "")
	src := `import { defineComponent, onMounted } from 'vue'
import { api } from './api.js'

export default defineComponent({
  setup() {
    onMounted(() => {
      api.first()
    })
    const ready = true
    onMounted(() => api.second())
    return { ready }
  },
})
`
	ret, err := Transform(context.Background(), parse(t, "Panel.js", src), cfg, newResolver(cfg))
	if err != nil {
		t.Fatal(err)
	}
	code := ret.Code
	if ret.Strategy != SpliceIntoComponentBody {
		t.Fatalf("got strategy %s, want splice", ret.Strategy)
	}
	first := "    onMounted(async (...args) => {\n      await __versaHMR_ready;\n      return (() => {\n        api.first()\n      })(...args);\n    });"
	second := "    onMounted(async (...args) => {\n      await __versaHMR_ready;\n      return (() => api.second())(...args);\n    });"
	ready := strings.Index(code, "const __versaHMR_ready = ")
	i, j := strings.Index(code, first), strings.Index(code, second)
	if i < 0 || j < 0 {
		t.Fatalf("hooks not wrapped:\n%s", code)
	}
	if !(ready < i && i < j && j < strings.Index(code, "return { ready }")) {
		t.Errorf("hooks must follow the bootstrap in source order before the return:\n%s", code)
	}
	if !strings.Contains(code, "  setup() {\n    const ready = true\n    const __versaHMR_ready = ") {
		t.Errorf("original hooks not removed:\n%s", code)
	}
	if n := strings.Count(code, "onMounted("); n != 2 {
		t.Errorf("got %d onMounted calls, want 2:\n%s", n, code)
	}
}

func TestTransformComponentWithoutSetup(t *testing.T) {
	cfg := newConfig(`{}`, "")
	src := `import { defineComponent, h } from 'vue'
import { label } from './label.js'

export default defineComponent({
  render: () => h('span', label),
})
`
	ret, err := Transform(context.Background(), parse(t, "Label.js", src), cfg, newResolver(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if ret.Strategy != WrapInAsyncBlock {
		t.Fatalf("got strategy %s, want wrap", ret.Strategy)
	}
	if strings.Index(ret.Code, "})();") > strings.Index(ret.Code, "export default defineComponent({") {
		t.Errorf("component body must follow the async block:\n%s", ret.Code)
	}
}

func TestTransformStaticOnly(t *testing.T) {
	cfg := newConfig(`{}`, "")
	src := "import { ref } from 'vue'\nconst a = ref(1)\nexport { a }"
	ret, err := Transform(context.Background(), parse(t, "state.js", src), cfg, newResolver(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if ret.Code != src {
		t.Errorf("got\n%s\nwant the source unchanged", ret.Code)
	}
	if ret.Strategy != NoRewrite {
		t.Errorf("got strategy %s, want none", ret.Strategy)
	}
}

func TestTransformReloadMarker(t *testing.T) {
	cfg := newConfig(`{}`, "")
	tests := []struct {
		filename string
		src      string
		reload   bool
	}{
		{"main.js", "import { createApp } from 'vue'\nimport App from './App.js'\ncreateApp(App).mount('#app')\n", true},
		{"index.js", "export * from './a.js'\nimport { b } from './b.js'\nexport { b }\n", true},
		{"Button.js", "import { defineComponent } from 'vue'\nexport default defineComponent({})\n", false},
		{"util.js", "export const one = 1\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			ret, err := Transform(context.Background(), parse(t, tt.filename, tt.src), cfg, newResolver(cfg))
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.HasPrefix(ret.Code, ReloadMarker+"\n"); got != tt.reload || ret.Reload != tt.reload {
				t.Errorf("got reload %v, want %v:\n%s", got, tt.reload, ret.Code)
			}
			if strings.Count(ret.Code, ReloadMarker) > 1 {
				t.Errorf("duplicated reload marker:\n%s", ret.Code)
			}
		})
	}
}

func TestTransformEntryKeepsImports(t *testing.T) {
	cfg := newConfig(`{}`, "")
	src := "import { createApp } from 'vue'\nimport App from './App.vue'\ncreateApp(App).mount('#app')"
	ret, err := Transform(context.Background(), parse(t, "main.js", src), cfg, newResolver(cfg))
	if err != nil {
		t.Fatal(err)
	}
	want := ReloadMarker + "\nimport { createApp } from 'vue'\nimport App from './App.js'\ncreateApp(App).mount('#app')"
	if ret.Code != want {
		t.Errorf("got\n%s\nwant\n%s", ret.Code, want)
	}
	if ret.Strategy != EntryPointPassthrough {
		t.Errorf("got strategy %s, want entry", ret.Strategy)
	}
}

func TestTransformTemplateImport(t *testing.T) {
	cfg := newConfig(`{"@/*": "/src/*"}`, "public")
	src := "export const page = (name) => import(`@/pages/${name}.vue`)\n" +
		"export const chunk = (name) => import(`./chunks/${name}`)\n" +
		"export const view = () => import('@/views/Home.vue')"
	ret, err := Transform(context.Background(), parse(t, "router.js", src), cfg, newResolver(cfg))
	if err != nil {
		t.Fatal(err)
	}
	want := "export const page = (name) => import(`/public/pages/${name}.js`)\n" +
		"export const chunk = (name) => import(`./chunks/${name}`)\n" +
		"export const view = () => import('/public/views/Home.js')"
	if ret.Code != want {
		t.Errorf("got\n%s\nwant\n%s", ret.Code, want)
	}
}

func TestTransformConfigError(t *testing.T) {
	cfg := newConfig(`{"@/*": `, "public")
	src := "import { x } from '@/a.ts'\nx()\n"
	ret, err := Transform(context.Background(), parse(t, "main.js", src), cfg, newResolver(cfg))
	var cerr *config.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("got error %v, want a config error", err)
	}
	if ret.Code != src {
		t.Errorf("got\n%s\nwant the source unchanged", ret.Code)
	}
}

func TestTransformAmbiguousBinding(t *testing.T) {
	cfg := newConfig(`{}`, "")
	src := "import { a } from './a.js'\nimport { b as a } from './b.js'\na()\n"
	_, err := Transform(context.Background(), parse(t, "main.js", src), cfg, newResolver(cfg))
	var aerr *AmbiguousBindingError
	if !errors.As(err, &aerr) {
		t.Fatalf("got error %v, want an ambiguous binding error", err)
	}
	if aerr.Local != "a" || aerr.Line != 2 || len(aerr.Candidates) != 2 {
		t.Errorf("got %+v", aerr)
	}
}
