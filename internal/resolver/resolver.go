package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	logx "github.com/ije/gox/log"
	"github.com/versa-dev/versa/internal/config"
	"github.com/versa-dev/versa/internal/metrics"
	"golang.org/x/sync/errgroup"
)

var log = &logx.Logger{}

// SetLogger sets the logger of the package.
func SetLogger(logger *logx.Logger) {
	log = logger
}

// Resolver maps import specifiers to web-servable paths. It is safe for
// concurrent use; the only state it holds is a cache of package manifests.
type Resolver struct {
	config    *config.TransformConfig
	manifests *lru.Cache[string, *manifest]
	warned    sync.Map
}

// New creates a resolver for the configuration.
func New(cfg *config.TransformConfig) *Resolver {
	manifests, err := lru.New[string, *manifest](512)
	if err != nil {
		panic(err)
	}
	return &Resolver{config: cfg, manifests: manifests}
}

// Config returns the configuration of the resolver.
func (r *Resolver) Config() *config.TransformConfig {
	return r.config
}

// Purge drops the cached package manifests, e.g. after `node_modules` changed.
func (r *Resolver) Purge() {
	r.manifests.Purge()
	r.warned.Range(func(key, _ any) bool {
		r.warned.Delete(key)
		return true
	})
}

// Resolve maps the specifier to a web-servable path: aliases are substituted,
// relative paths get their extension normalized and bare specifiers are
// resolved to a file of the installed package. The bool result is false when
// the specifier cannot be resolved and must be left as is. The returned error
// is either a *config.ConfigError or a *ManifestError.
func (r *Resolver) Resolve(ctx context.Context, specifier string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	resolved, ok, err := r.ResolveLocal(specifier)
	if err != nil || ok {
		return resolved, ok, err
	}
	if !IsBare(specifier) {
		metrics.ResolutionsTotal.WithLabelValues("unresolved").Inc()
		return "", false, nil
	}
	resolved, ok, err = r.ResolvePackage(ctx, specifier)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return "", false, err
	}
	if !ok {
		metrics.ResolutionsTotal.WithLabelValues("unresolved").Inc()
		log.Debugf("resolve(%s): package not found", specifier)
		return "", false, nil
	}
	metrics.ResolutionsTotal.WithLabelValues("package").Inc()
	return resolved, true, nil
}

// Resolution is the result of resolving one specifier with ResolveAll.
type Resolution struct {
	Path     string
	Resolved bool
	Err      error
}

// ResolveAll resolves the specifiers concurrently. Each resolution is
// independent: a failing specifier is reported in its own Resolution and does
// not stop the others. An invalid alias table fails the whole pass.
func (r *Resolver) ResolveAll(ctx context.Context, specifiers []string) (map[string]Resolution, error) {
	if _, err := r.config.Aliases(); err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make(map[string]Resolution, len(specifiers))
		g       errgroup.Group
	)
	g.SetLimit(16)
	for _, specifier := range specifiers {
		mu.Lock()
		_, seen := results[specifier]
		if !seen {
			results[specifier] = Resolution{}
		}
		mu.Unlock()
		if seen {
			continue
		}
		specifier := specifier
		g.Go(func() error {
			path, ok, err := r.Resolve(ctx, specifier)
			mu.Lock()
			results[specifier] = Resolution{Path: path, Resolved: ok, Err: err}
			mu.Unlock()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// IsBare reports whether the specifier names a package: it is neither a
// relative or absolute path nor a URL-like specifier with a scheme.
func IsBare(specifier string) bool {
	return specifier != "" && !IsRelative(specifier) && !strings.ContainsRune(specifier, ':')
}

// IsRelative reports whether the specifier is a path starting with `.` or `/`.
func IsRelative(specifier string) bool {
	return strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/")
}
