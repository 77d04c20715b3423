package hmr

import (
	"context"
	"time"

	"github.com/versa-dev/versa/internal/config"
	"github.com/versa-dev/versa/internal/jsparser"
	"github.com/versa-dev/versa/internal/metrics"
)

// Result is the output of Transform.
type Result struct {
	Code     string
	Kind     FileKind
	Strategy Strategy
	// Reload tells the client to reload the page when the file changes.
	Reload bool
	// Dynamic are the paths of the imports loaded at runtime.
	Dynamic []string
}

// Transform rewrites the module for hot reloading: local imports that bind
// names are loaded through reloadable loaders registered in the global
// registry, the other specifiers are resolved in place. Bare package
// specifiers are kept, the page import map resolves them.
//
// On an invalid alias table the result holds the source unchanged and the
// *config.ConfigError is returned.
func Transform(ctx context.Context, mod *jsparser.Module, cfg *config.TransformConfig, r Resolver) (*Result, error) {
	start := time.Now()
	ret := &Result{Code: mod.Source}
	aliases, err := cfg.Aliases()
	if err != nil {
		return ret, err
	}
	if err := ctx.Err(); err != nil {
		return ret, err
	}

	cls := Classify(mod, cfg)
	ret.Kind = cls.Kind
	ret.Reload = NeedsReload(cls.Kind)

	var edits []edit
	for _, ci := range cls.Imports {
		if IsExternal(ci.Specifier, aliases) {
			continue
		}
		resolved, ok, err := r.ResolveLocal(ci.Specifier)
		if err != nil {
			return ret, resolutionError(mod.Path, ci.Specifier, ci.Line, err)
		}
		if !ok {
			continue
		}
		ci.Path = resolved
		if ci.Disposition == StaticKeep && resolved != ci.Specifier {
			edits = append(edits, edit{start: ci.SpecStart, end: ci.SpecEnd, text: quoteLike(mod.Source[ci.SpecStart:ci.SpecEnd], resolved)})
		}
	}
	more, err := expressionEdits(mod, r.ResolveLocal, r)
	if err != nil {
		return ret, err
	}
	edits = append(edits, more...)

	plan, err := Synthesize(mod.Path, cls.Dynamic(), cls.Kind)
	if err != nil {
		return ret, err
	}
	ret.Code, ret.Strategy = assemble(mod, cls, plan, edits)
	ret.Dynamic = plan.Paths

	metrics.TransformDuration.WithLabelValues("dev").Observe(time.Since(start).Seconds())
	metrics.FilesTransformedTotal.WithLabelValues(cls.Kind.String()).Inc()
	return ret, nil
}
