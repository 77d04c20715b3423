package hmr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/versa-dev/versa/internal/config"
	"github.com/versa-dev/versa/internal/resolver"
)

func TestRewriteAlias(t *testing.T) {
	cfg := newConfig(`{"@/*": "/src/*"}`, "public")
	src := "import x from '@/utils/helper.ts'"
	code, err := Rewrite(context.Background(), parse(t, "main.ts", src), cfg, newResolver(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if want := "import x from '/public/utils/helper.js'"; code != want {
		t.Errorf("got %q, want %q", code, want)
	}
}

func TestRewrite(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "node_modules", "lodash-es", "package.json"), `{"name": "lodash-es", "version": "4.17.21", "module": "lodash.js"}`)
	writeTestFile(t, filepath.Join(dir, "node_modules", "lodash-es", "lodash.js"), "export {}")
	cfg := config.New(config.Options{
		AliasJSON:   []byte(`{"@/*": "/src/*"}`),
		ProjectRoot: dir,
		DistRoot:    "public",
	})
	src := `import x from '@/utils/helper.ts'
import { debounce } from "lodash-es"
import { missing } from 'not-installed'
export * from './lib/index'

// keep comments
const lazy = () => import('@/views/About.vue')
const page = (name) => import(` + "`@/pages/${name}.vue`" + `)
`
	want := `import x from '/public/utils/helper.js'
import { debounce } from "/node_modules/lodash-es/lodash.js"
import { missing } from 'not-installed'
export * from './lib/index.js'

// keep comments
const lazy = () => import('/public/views/About.js')
const page = (name) => import(` + "`/public/pages/${name}.js`" + `)
`
	code, err := Rewrite(context.Background(), parse(t, "main.js", src), cfg, resolver.New(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if code != want {
		t.Errorf("got\n%s\nwant\n%s", code, want)
	}
}

func TestRewriteManifestError(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "node_modules", "broken", "package.json"), `{"name": "broken",`)
	cfg := config.New(config.Options{ProjectRoot: dir})
	src := "import './a.ts'\nimport b from 'broken'\n"
	code, err := Rewrite(context.Background(), parse(t, "main.js", src), cfg, resolver.New(cfg))
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("got error %v, want a resolution error", err)
	}
	if rerr.Specifier != "broken" || rerr.Line != 2 {
		t.Errorf("got %+v", rerr)
	}
	var merr *resolver.ManifestError
	if !errors.As(err, &merr) {
		t.Errorf("got error %v, want a manifest error inside", err)
	}
	if code != src {
		t.Errorf("got\n%s\nwant the source unchanged", code)
	}
}

func TestRewriteConfigError(t *testing.T) {
	cfg := newConfig(`{"@/*": "/src/*",,}`, "public")
	src := "import x from '@/utils/helper.ts'\n"
	code, err := Rewrite(context.Background(), parse(t, "main.js", src), cfg, newResolver(cfg))
	var cerr *config.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("got error %v, want a config error", err)
	}
	if code != src {
		t.Errorf("got %q, want the source unchanged", code)
	}
}

func TestRewriteTemplate(t *testing.T) {
	cfg := newConfig(`{"@/*": "/src/*", "~icons/*": "/assets/icons/*"}`, "public")
	r := newResolver(cfg)
	tests := []struct {
		lit  string
		want string
	}{
		{"`@/pages/${name}.ts`", "`/public/pages/${name}.js`"},
		{"`@/pages/${dir}/${name}.vue`", "`/public/pages/${dir}/${name}.js`"},
		{"`~icons/${name}.svg`", "`/assets/icons/${name}.svg`"},
		{"`./locales/${lang}.json`", "`./locales/${lang}.json`"},
		{"`${base}/main.ts`", "`${base}/main.js`"},
		{"`@/views/Home.vue`", "`/public/views/Home.js`"},
	}
	for _, tt := range tests {
		t.Run(tt.lit, func(t *testing.T) {
			got, err := rewriteTemplate(tt.lit, r.ResolveLocal, r)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestQuoteLike(t *testing.T) {
	tests := []struct {
		lit  string
		s    string
		want string
	}{
		{`'./a'`, "./a.js", `'./a.js'`},
		{`"./a"`, "./a.js", `"./a.js"`},
		{`'./a'`, "./it's.js", `'./it\'s.js'`},
	}
	for _, tt := range tests {
		if got := quoteLike(tt.lit, tt.s); got != tt.want {
			t.Errorf("quoteLike(%s, %s) = %s, want %s", tt.lit, tt.s, got, tt.want)
		}
	}
}

func writeTestFile(t *testing.T, filename string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
