package resolver

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// browserPatterns are the file name markers of browser builds, best first.
var browserPatterns = []string{"esm-browser", "browser", "web", "global", "umd"}

// nonBrowserPatterns are the file name markers of builds that need a bundler
// or a server runtime.
var nonBrowserPatterns = []string{"bundler", "runtime", "node", "cjs", "commonjs"}

var (
	browserRegexps    = tokenRegexps(browserPatterns)
	nonBrowserRegexps = tokenRegexps(nonBrowserPatterns)
	prodRegexp        = regexp.MustCompile(`(^|[.\-_])prod([.\-_]|$)`)
)

// tokenRegexps matches each pattern as a whole token of a file name, where
// tokens are separated by `.`, `-` or `_`.
func tokenRegexps(patterns []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(^|[.\-_])` + regexp.QuoteMeta(p) + `([.\-_]|$)`)
	}
	return res
}

// browserRank returns the index of the best browser pattern the file name
// matches, or -1.
func browserRank(name string) int {
	for i, re := range browserRegexps {
		if re.MatchString(name) {
			return i
		}
	}
	return -1
}

func isNonBrowser(name string) bool {
	for _, re := range nonBrowserRegexps {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// browserSibling returns the browser build that sits next to the entry when
// the entry itself is a bundler/node build, e.g.
// `dist/vue.runtime.esm-bundler.js` -> `dist/vue.esm-browser.js`.
// It returns "" when the entry is fine as it is or no sibling matches.
func browserSibling(pkgDir string, entry string, production bool) string {
	dir, name := splitEntry(entry)
	if !isNonBrowser(name) || browserRank(name) >= 0 {
		return ""
	}
	entries, err := os.ReadDir(filepath.Join(pkgDir, filepath.FromSlash(dir)))
	if err != nil {
		return ""
	}

	type candidate struct {
		name string
		rank int
		prod bool
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if ext := path.Ext(n); ext != ".js" && ext != ".mjs" {
			continue
		}
		rank := browserRank(n)
		if rank < 0 {
			continue
		}
		candidates = append(candidates, candidate{name: n, rank: rank, prod: prodRegexp.MatchString(n)})
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.prod != b.prod {
			return a.prod == production
		}
		if len(a.name) != len(b.name) {
			return len(a.name) < len(b.name)
		}
		return a.name < b.name
	})
	if dir == "" {
		return candidates[0].name
	}
	return strings.TrimSuffix(dir, "/") + "/" + candidates[0].name
}
