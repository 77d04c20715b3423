package resolver

import (
	"path"
	"strings"

	"github.com/ije/gox/utils"
	"github.com/versa-dev/versa/internal/metrics"
)

// ResolveLocal resolves project-local specifiers: aliased specifiers are
// substituted and mapped from the source root to the dist root, relative
// paths get their extension normalized. Bare package specifiers are returned
// unchanged with false.
func (r *Resolver) ResolveLocal(specifier string) (string, bool, error) {
	aliases, err := r.config.Aliases()
	if err != nil {
		return "", false, err
	}
	if a, ok := aliases.Match(specifier); ok {
		resolved := NormalizeExtension(r.toDistRoot(a.Apply(specifier)))
		metrics.ResolutionsTotal.WithLabelValues("alias").Inc()
		return resolved, true, nil
	}
	if IsRelative(specifier) {
		return normalizeRelative(specifier), true, nil
	}
	return specifier, false, nil
}

// ResolvePrefix substitutes the alias of a partial specifier, such as the
// static head of a template literal, without normalizing its extension.
func (r *Resolver) ResolvePrefix(prefix string) (string, bool, error) {
	aliases, err := r.config.Aliases()
	if err != nil {
		return "", false, err
	}
	if a, ok := aliases.Match(prefix); ok {
		return r.toDistRoot(a.Apply(prefix)), true, nil
	}
	return prefix, false, nil
}

// toDistRoot maps a `/<sourceRoot>/...` path to `/<distRoot>/...`.
func (r *Resolver) toDistRoot(p string) string {
	distRoot := r.config.DistRoot()
	if distRoot == "" {
		return p
	}
	srcPrefix := "/" + r.config.SourceRoot()
	if p == srcPrefix {
		return "/" + distRoot
	}
	if strings.HasPrefix(p, srcPrefix+"/") {
		return "/" + distRoot + p[len(srcPrefix):]
	}
	return p
}

// NormalizeExtension rewrites the extension of a resolved path to the one the
// browser loads: `.ts` and `.vue` become `.js`; a path without a `.js`, `.mjs`
// or `.css` extension that contains a `/` gets `.js` appended. Query and hash
// suffixes are kept.
func NormalizeExtension(specifier string) string {
	p, suffix := splitSuffix(specifier)
	switch ext := path.Ext(p); ext {
	case ".js", ".mjs", ".css":
		return specifier
	case ".ts", ".vue":
		return strings.TrimSuffix(p, ext) + ".js" + suffix
	}
	if strings.ContainsRune(p, '/') {
		return p + ".js" + suffix
	}
	return specifier
}

// normalizeRelative normalizes a relative specifier: TypeScript and Vue
// sources are compiled to `.js`, extensionless paths get `.js` appended, any
// other extension is kept.
func normalizeRelative(specifier string) string {
	p, suffix := splitSuffix(specifier)
	switch ext := path.Ext(p); ext {
	case ".ts", ".mts", ".vue":
		return strings.TrimSuffix(p, ext) + ".js" + suffix
	case "":
		if p == "." || p == ".." || strings.HasSuffix(p, "/") {
			return specifier
		}
		return p + ".js" + suffix
	}
	return specifier
}

func splitSuffix(specifier string) (string, string) {
	if i := strings.IndexAny(specifier, "?#"); i >= 0 {
		return specifier[:i], specifier[i:]
	}
	return specifier, ""
}

// joinURLPath joins path segments to a `/`-rooted path.
func joinURLPath(segments ...string) string {
	return utils.CleanPath("/" + strings.Join(segments, "/"))
}
