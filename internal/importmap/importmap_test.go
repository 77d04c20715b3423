package importmap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/versa-dev/versa/internal/config"
	"github.com/versa-dev/versa/internal/resolver"
)

const indexHtml = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Hello, world!</title>
  <script type="importmap">
    {
      "imports": {
        "vue": "https://esm.sh/vue@3.5.13",
        "vue/": "https://esm.sh/vue@3.5.13/"
      },
      "scopes": {
        "/vendor/": {
          "vue": "/vendor/vue.js"
        }
      }
    }
  </script>
  <script type="module" src="/public/main.js"></script>
</head>
<body>
  <div id="app"></div>
</body>
</html>
`

func TestParseHTML(t *testing.T) {
	im, err := ParseHTML(strings.NewReader(indexHtml))
	if err != nil {
		t.Fatalf("Failed to parse import map: %v", err)
	}
	if im == nil {
		t.Fatal("Expected an import map, got nil")
	}
	if len(im.Imports) != 2 {
		t.Fatalf("Expected 2 imports, got %d", len(im.Imports))
	}
	if len(im.Scopes["/vendor/"]) != 1 {
		t.Fatalf("Expected 1 import in scope, got %d", len(im.Scopes["/vendor/"]))
	}

	im, err = ParseHTML(strings.NewReader("<html><head><script>var a = 1</script></head></html>"))
	if err != nil || im != nil {
		t.Fatalf("Expected no import map, got %v, %v", im, err)
	}
}

func TestResolve(t *testing.T) {
	im, err := ParseHTML(strings.NewReader(indexHtml))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		specifier string
		referrer  string
		url       string
		ok        bool
	}{
		{"vue", "", "https://esm.sh/vue@3.5.13", true},
		{"vue?dev", "", "https://esm.sh/vue@3.5.13?dev", true},
		{"vue/server-renderer", "", "https://esm.sh/vue@3.5.13/server-renderer", true},
		{"vue", "/vendor/app.js", "/vendor/vue.js", true},
		{"vue/jsx", "/vendor/app.js", "https://esm.sh/vue@3.5.13/jsx", true},
		{"react", "", "react", false},
	}
	for _, tt := range tests {
		url, ok := im.Resolve(tt.specifier, tt.referrer)
		if url != tt.url || ok != tt.ok {
			t.Errorf("Resolve(%q, %q) = (%q, %v), want (%q, %v)", tt.specifier, tt.referrer, url, ok, tt.url, tt.ok)
		}
	}
}

func TestMergeAndFormat(t *testing.T) {
	im := Blank()
	im.Imports["vue"] = "/node_modules/vue/dist/vue.esm-browser.js"
	im.Merge(&ImportMap{
		Imports: map[string]string{"vue": "https://esm.sh/vue", "pinia": "https://esm.sh/pinia"},
		Scopes:  map[string]map[string]string{"/vendor/": {"vue": "/vendor/vue.js"}},
	})
	want := `{
  "imports": {
    "pinia": "https://esm.sh/pinia",
    "vue": "/node_modules/vue/dist/vue.esm-browser.js"
  },
  "scopes": {
    "/vendor/": {
      "vue": "/vendor/vue.js"
    }
  }
}`
	if got := im.FormatJSON(0); got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
	if got := Blank().FormatJSON(0); got != "{\n  \"imports\": {}\n}" {
		t.Fatalf("got %q", got)
	}
}

func TestFromDependencies(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"package.json":                                     `{"dependencies": {"vue": "^3.5.0", "missing": "^1.0.0"}, "devDependencies": {"typescript": "^5.0.0"}}`,
		"node_modules/vue/package.json":                    `{"name": "vue", "version": "3.5.13", "module": "dist/vue.runtime.esm-bundler.js"}`,
		"node_modules/vue/dist/vue.runtime.esm-bundler.js": "export {}",
		"node_modules/vue/dist/vue.esm-browser.js":         "export {}",
	}
	for name, content := range files {
		filename := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	r := resolver.New(config.New(config.Options{ProjectRoot: dir}))
	im, warnings, err := FromDependencies(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if im.Imports["vue"] != "/node_modules/vue/dist/vue.esm-browser.js" {
		t.Errorf("got vue -> %q", im.Imports["vue"])
	}
	if im.Imports["vue/"] != "/node_modules/vue/" {
		t.Errorf("got vue/ -> %q", im.Imports["vue/"])
	}
	if _, ok := im.Imports["typescript"]; ok {
		t.Errorf("dev dependencies must not be mapped")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "missing") {
		t.Errorf("got warnings %v", warnings)
	}
}
