package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	logx "github.com/ije/gox/log"
	"github.com/versa-dev/versa/internal/config"
	"github.com/versa-dev/versa/internal/hmr"
	"github.com/versa-dev/versa/internal/jsparser"
	"github.com/versa-dev/versa/internal/metrics"
	"github.com/versa-dev/versa/internal/resolver"
	"github.com/versa-dev/versa/internal/storage"
	"golang.org/x/sync/errgroup"
)

var log = &logx.Logger{}

// SetLogger sets the logger of the build package.
func SetLogger(logger *logx.Logger) {
	log = logger
}

// Options configure a Builder.
type Options struct {
	// Dev transforms modules for hot reloading. Otherwise only the import
	// specifiers are rewritten, for production.
	Dev bool
	// Include selects the module files, paths are matched relative to the
	// project root. Other files of the source root are copied as they are.
	Include []string
	// Exclude selects the files that are neither built nor copied.
	Exclude []string
	// Concurrency bounds the number of files built at once.
	Concurrency int
	// Cache is shared by the builds of a dev session. It may be nil.
	Cache *jsparser.Cache
	// Prune removes the files of the dist root that a full build did not
	// produce.
	Prune bool
}

// Builder builds the files of the source root into the dist root.
type Builder struct {
	config      *config.TransformConfig
	resolver    *resolver.Resolver
	cache       *jsparser.Cache
	out         storage.Storage
	include     []glob.Glob
	exclude     []glob.Glob
	dev         bool
	concurrency int
	prune       bool
}

// New creates a Builder. It fails on an invalid alias table, on invalid
// patterns, and when the dist root is not set or overlaps the source root.
func New(cfg *config.TransformConfig, r *resolver.Resolver, opts Options) (*Builder, error) {
	if _, err := cfg.Aliases(); err != nil {
		return nil, err
	}
	if cfg.DistRoot() == "" {
		return nil, &config.ConfigError{Source: "dist", Err: errors.New("the dist root is not set")}
	}
	if cfg.DistRoot() == cfg.SourceRoot() {
		return nil, &config.ConfigError{Source: "dist", Err: errors.New("the dist root can not be the source root")}
	}
	include, err := compileGlobs("include", opts.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileGlobs("exclude", opts.Exclude)
	if err != nil {
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	out, err := storage.NewFS(filepath.Join(cfg.ProjectRoot(), filepath.FromSlash(cfg.DistRoot())))
	if err != nil {
		return nil, err
	}
	return &Builder{
		config:      cfg,
		out:         out,
		resolver:    r,
		cache:       opts.Cache,
		include:     include,
		exclude:     exclude,
		dev:         opts.Dev,
		concurrency: concurrency,
		prune:       opts.Prune,
	}, nil
}

func compileGlobs(source string, patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, &config.ConfigError{Source: source, Err: fmt.Errorf("%q: %w", pattern, err)}
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// FileResult is the outcome of building one file.
type FileResult struct {
	// Source is the path of the file relative to the project root, with
	// forward slashes. Output is the path of the built file, likewise.
	Source string
	Output string
	// Module tells that the file was transformed, not copied.
	Module  bool
	Removed bool
	Kind    hmr.FileKind
	Reload  bool
	Err     error
}

// Report is the outcome of a build, one result per file sorted by source path.
type Report struct {
	Files    []*FileResult
	Duration time.Duration
}

// Failures returns the results of the files that failed to build.
func (r *Report) Failures() []*FileResult {
	var ret []*FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			ret = append(ret, f)
		}
	}
	return ret
}

// Build builds every file of the source root. A file that fails does not
// stop the others, its error is reported in its result. Only an invalid
// configuration or a cancelled context fails the whole build.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	start := time.Now()
	if _, err := b.config.Aliases(); err != nil {
		return nil, err
	}
	files, err := b.sourceFiles()
	if err != nil {
		return nil, err
	}

	var (
		lock    sync.Mutex
		results = make([]*FileResult, 0, len(files))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, filename := range files {
		g.Go(func() error {
			ret, err := b.BuildFile(ctx, filename)
			if err != nil {
				return err
			}
			lock.Lock()
			results = append(results, ret)
			lock.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Source < results[j].Source
	})
	if b.prune {
		if err := b.pruneOutputs(results); err != nil {
			return nil, err
		}
	}
	report := &Report{Files: results, Duration: time.Since(start)}
	log.Infof("build: %d files in %s, %d failed", len(results), report.Duration, len(report.Failures()))
	return report, nil
}

// sourceFiles returns the files of the source root that are not excluded.
func (b *Builder) sourceFiles() ([]string, error) {
	root := b.config.ProjectRoot()
	srcDir := filepath.Join(root, filepath.FromSlash(b.config.SourceRoot()))
	distDir := filepath.Join(root, filepath.FromSlash(b.config.DistRoot()))
	var files []string
	err := filepath.WalkDir(srcDir, func(filename string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if filename == distDir || (filename != srcDir && b.excluded(b.relPath(filename)+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !b.excluded(b.relPath(filename)) {
			files = append(files, filename)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read the source root: %w", err)
	}
	return files, nil
}

// BuildFile builds one file of the source root: modules are transformed,
// other files are copied. When the file does not exist any more, its output
// is removed. The returned error is reserved to configuration and context
// errors, any other failure is reported in the result.
func (b *Builder) BuildFile(ctx context.Context, filename string) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := b.relPath(filename)
	ret := &FileResult{Source: rel}
	inSource, ok := b.sourcePath(rel)
	if !ok {
		ret.Err = fmt.Errorf("%s is not in the source root %q", rel, b.config.SourceRoot())
		return ret, nil
	}
	ret.Module = b.IsModule(rel)
	ret.Output = b.outputPath(inSource, ret.Module)
	key := b.outputKey(ret.Output)

	src, err := os.ReadFile(filepath.Join(b.config.ProjectRoot(), filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			ret.Removed = true
			if err := b.out.Delete(key); err != nil && err != storage.ErrNotFound {
				ret.Err = err
			}
			return ret, nil
		}
		ret.Err = err
		return b.fail(ret), nil
	}

	out := src
	if ret.Module {
		var code string
		code, err = b.transform(ctx, ret, src)
		if err != nil {
			var cerr *config.ConfigError
			if errors.As(err, &cerr) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			ret.Err = err
			return b.fail(ret), nil
		}
		out = []byte(code)
	}

	if err := b.out.Put(key, bytes.NewReader(out)); err != nil {
		ret.Err = err
		return b.fail(ret), nil
	}
	log.Debugf("build(%s): -> %s", rel, ret.Output)
	return ret, nil
}

// Transform returns the output of one module without writing it. The file
// does not need to be under the source root.
func (b *Builder) Transform(ctx context.Context, filename string) (string, *FileResult, error) {
	ret := &FileResult{Source: b.relPath(filename), Module: true}
	src, err := os.ReadFile(filepath.Join(b.config.ProjectRoot(), filepath.FromSlash(ret.Source)))
	if err != nil {
		return "", ret, err
	}
	code, err := b.transform(ctx, ret, src)
	if err != nil {
		return "", ret, err
	}
	return code, ret, nil
}

// pruneOutputs removes the outputs that no result of a full build wrote.
// The outputs of failed files are kept, they may be fixed by the next build.
func (b *Builder) pruneOutputs(results []*FileResult) error {
	keep := make(map[string]struct{}, len(results))
	for _, ret := range results {
		keep[b.outputKey(ret.Output)] = struct{}{}
	}
	keys, err := b.out.List("")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, ok := keep[key]; ok {
			continue
		}
		if err := b.out.Delete(key); err != nil && err != storage.ErrNotFound {
			return err
		}
		log.Debugf("build: pruned %s/%s", b.config.DistRoot(), key)
	}
	return nil
}

func (b *Builder) transform(ctx context.Context, ret *FileResult, src []byte) (string, error) {
	code := src
	if isTypeScript(ret.Source) {
		var err error
		if code, err = stripTypes(ret.Source, src); err != nil {
			return "", err
		}
	}
	mod, err := b.cache.Parse(ctx, ret.Source, code)
	if err != nil {
		return "", err
	}
	if b.dev {
		res, err := hmr.Transform(ctx, mod, b.config, b.resolver)
		if err != nil {
			return "", err
		}
		ret.Kind = res.Kind
		ret.Reload = res.Reload
		return res.Code + "\n", nil
	}

	start := time.Now()
	out, err := hmr.Rewrite(ctx, mod, b.config, b.resolver)
	if err != nil {
		return "", err
	}
	metrics.TransformDuration.WithLabelValues("build").Observe(time.Since(start).Seconds())
	metrics.FilesTransformedTotal.WithLabelValues("rewrite").Inc()
	return out, nil
}

func (b *Builder) fail(ret *FileResult) *FileResult {
	metrics.FileFailuresTotal.WithLabelValues(failureReason(ret.Err)).Inc()
	log.Errorf("build(%s): %v", ret.Source, ret.Err)
	return ret
}

func failureReason(err error) string {
	var (
		perr *jsparser.ParseError
		rerr *hmr.ResolutionError
		aerr *hmr.AmbiguousBindingError
	)
	switch {
	case errors.As(err, &perr):
		return "parse"
	case errors.As(err, &rerr):
		return "resolution"
	case errors.As(err, &aerr):
		return "binding"
	default:
		return "io"
	}
}

// Match reports whether the file is built or copied, i.e. it is in the source
// root and not excluded.
func (b *Builder) Match(filename string) bool {
	rel := b.relPath(filename)
	if _, ok := b.sourcePath(rel); !ok {
		return false
	}
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if b.excluded(dir + "/") {
			return false
		}
	}
	return !b.excluded(rel)
}

// IsModule reports whether the file is transformed: it is included and not
// excluded.
func (b *Builder) IsModule(filename string) bool {
	rel := b.relPath(filename)
	if b.excluded(rel) {
		return false
	}
	for _, g := range b.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// OutputPath returns the `/`-rooted URL path of the output of a source file.
func (b *Builder) OutputPath(filename string) (string, bool) {
	rel := b.relPath(filename)
	inSource, ok := b.sourcePath(rel)
	if !ok {
		return "", false
	}
	return "/" + b.outputPath(inSource, b.IsModule(rel)), true
}

func (b *Builder) excluded(rel string) bool {
	for _, g := range b.exclude {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// relPath returns the path of the file relative to the project root, with
// forward slashes. Relative filenames are taken relative to the project root.
func (b *Builder) relPath(filename string) string {
	if filepath.IsAbs(filename) {
		root, err := filepath.Abs(b.config.ProjectRoot())
		if err == nil {
			if rel, err := filepath.Rel(root, filename); err == nil {
				filename = rel
			}
		}
	}
	return path.Clean(filepath.ToSlash(filename))
}

// sourcePath returns the path of rel inside the source root.
func (b *Builder) sourcePath(rel string) (string, bool) {
	srcRoot := b.config.SourceRoot()
	if srcRoot == "" {
		return rel, !strings.HasPrefix(rel, "../")
	}
	if !strings.HasPrefix(rel, srcRoot+"/") {
		return "", false
	}
	return rel[len(srcRoot)+1:], true
}

// outputKey returns the storage key of an output path.
func (b *Builder) outputKey(output string) string {
	return strings.TrimPrefix(output, b.config.DistRoot()+"/")
}

func (b *Builder) outputPath(inSource string, module bool) string {
	if module {
		switch ext := path.Ext(inSource); ext {
		case ".ts", ".mts", ".vue":
			inSource = strings.TrimSuffix(inSource, ext) + ".js"
		}
	}
	return path.Join(b.config.DistRoot(), inSource)
}
