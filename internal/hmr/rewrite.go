package hmr

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/versa-dev/versa/internal/config"
	"github.com/versa-dev/versa/internal/jsparser"
)

// Resolver resolves import specifiers to web-servable paths.
type Resolver interface {
	// ResolveLocal resolves aliased and relative specifiers.
	ResolveLocal(specifier string) (string, bool, error)
	// ResolvePrefix substitutes the alias of a partial specifier.
	ResolvePrefix(prefix string) (string, bool, error)
	// Resolve resolves any specifier, bare package names included.
	Resolve(ctx context.Context, specifier string) (string, bool, error)
}

type resolveFunc func(specifier string) (string, bool, error)

// Rewrite rewrites the specifiers of the static imports, `export ... from`
// statements and `import()` expressions of the module to resolved paths,
// leaving everything else untouched. Unresolvable specifiers are kept.
// On an invalid alias table the source is returned unchanged together with
// the *config.ConfigError.
func Rewrite(ctx context.Context, mod *jsparser.Module, cfg *config.TransformConfig, r Resolver) (string, error) {
	if _, err := cfg.Aliases(); err != nil {
		return mod.Source, err
	}
	resolve := func(specifier string) (string, bool, error) {
		return r.Resolve(ctx, specifier)
	}
	var edits []edit
	for _, rec := range mod.Imports {
		e, err := literalEdit(mod, rec.SpecStart, rec.SpecEnd, rec.Specifier, rec.Line, resolve)
		if err != nil {
			return mod.Source, err
		}
		edits = append(edits, e...)
	}
	more, err := expressionEdits(mod, resolve, r)
	if err != nil {
		return mod.Source, err
	}
	return splice(mod.Source, append(edits, more...)), nil
}

// expressionEdits rewrites the sources of `export ... from` statements and
// the arguments of `import()` expressions.
func expressionEdits(mod *jsparser.Module, resolve resolveFunc, r Resolver) ([]edit, error) {
	var edits []edit
	for _, ref := range mod.ExportSources {
		e, err := literalEdit(mod, ref.Start, ref.End, ref.Specifier, ref.Line, resolve)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e...)
	}
	for _, d := range mod.DynamicImports {
		if !d.Template {
			e, err := literalEdit(mod, d.Start, d.End, d.Specifier, d.Line, resolve)
			if err != nil {
				return nil, err
			}
			edits = append(edits, e...)
			continue
		}
		lit := mod.Slice(d.Range)
		rewritten, err := rewriteTemplate(lit, resolve, r)
		if err != nil {
			return nil, resolutionError(mod.Path, lit, d.Line, err)
		}
		if rewritten != lit {
			edits = append(edits, edit{start: d.Start, end: d.End, text: rewritten})
		}
	}
	return edits, nil
}

// literalEdit returns the edit replacing the string literal at [start, end)
// with the resolved specifier, keeping its quote style.
func literalEdit(mod *jsparser.Module, start int, end int, specifier string, line int, resolve resolveFunc) ([]edit, error) {
	resolved, ok, err := resolve(specifier)
	if err != nil {
		return nil, resolutionError(mod.Path, specifier, line, err)
	}
	if !ok || resolved == specifier {
		return nil, nil
	}
	return []edit{{start: start, end: end, text: quoteLike(mod.Source[start:end], resolved)}}, nil
}

// rewriteTemplate rewrites a template literal specifier such as
// `@/pages/${name}.ts`: the alias of the static head is substituted and the
// extension of the static tail is normalized.
func rewriteTemplate(lit string, resolve resolveFunc, r Resolver) (string, error) {
	if len(lit) < 2 {
		return lit, nil
	}
	body := lit[1 : len(lit)-1]
	i := strings.Index(body, "${")
	if i < 0 {
		resolved, ok, err := resolve(body)
		if err != nil || !ok {
			return lit, err
		}
		return "`" + escapeTemplate(resolved) + "`", nil
	}
	head, err := resolvePrefix(body[:i], r)
	if err != nil {
		return lit, err
	}
	tailStart := strings.LastIndexByte(body, '}') + 1
	tail := body[tailStart:]
	switch ext := path.Ext(tail); ext {
	case ".ts", ".mts", ".vue":
		tail = strings.TrimSuffix(tail, ext) + ".js"
	}
	return "`" + head + body[i:tailStart] + tail + "`", nil
}

func resolvePrefix(prefix string, r Resolver) (string, error) {
	if prefix == "" {
		return prefix, nil
	}
	resolved, ok, err := r.ResolvePrefix(prefix)
	if err != nil || !ok {
		return prefix, err
	}
	return escapeTemplate(resolved), nil
}

// quoteLike quotes s with the quote character of the literal lit.
func quoteLike(lit string, s string) string {
	q := byte('"')
	if len(lit) > 0 && (lit[0] == '\'' || lit[0] == '"') {
		q = lit[0]
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, string(q), `\`+string(q))
	return string(q) + s + string(q)
}

func escapeTemplate(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")
	return strings.ReplaceAll(s, "${", "\\${")
}

// resolutionError wraps a resolution failure with the file and line. Alias
// table errors are returned as they are, they are not about the specifier.
func resolutionError(filename string, specifier string, line int, err error) error {
	var cerr *config.ConfigError
	if errors.As(err, &cerr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ResolutionError{Path: filename, Specifier: specifier, Line: line, Err: err}
}
