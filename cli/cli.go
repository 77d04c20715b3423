package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	logx "github.com/ije/gox/log"
	"github.com/ije/gox/term"
	"github.com/spf13/cobra"
	"github.com/versa-dev/versa/internal/build"
	"github.com/versa-dev/versa/internal/config"
	"github.com/versa-dev/versa/internal/jsparser"
	"github.com/versa-dev/versa/internal/resolver"
	"github.com/versa-dev/versa/internal/watcher"
	"github.com/versa-dev/versa/web"
)

// VERSION is set via build-time ldflags.
var VERSION = "dev"

type globalOptions struct {
	dir      string
	source   string
	dist     string
	logLevel string
}

// project is the loaded configuration of the project a command runs in.
type project struct {
	dir      string
	file     *config.File
	config   *config.TransformConfig
	resolver *resolver.Resolver
	log      *logx.Logger
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "versa",
		Short: "Dev-time module transformer for Vue/TypeScript apps",
		Long: `versa rewrites the imports of a Vue/TypeScript app for the browser.

In development it turns static imports into reloadable dynamic imports so
that modules can be hot swapped. For production it rewrites the import
specifiers to the paths of the dist root.`,
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.dir, "dir", "d", "", "project root (default: current directory)")
	cmd.PersistentFlags().StringVar(&opts.source, "source", "", "source root, relative to the project root")
	cmd.PersistentFlags().StringVar(&opts.dist, "dist", "", "dist root, relative to the project root")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newBuildCommand(opts),
		newDevCommand(opts),
		newTransformCommand(opts, true),
		newTransformCommand(opts, false),
		newResolveCommand(opts),
	)
	return cmd
}

// Run runs the versa command line.
func Run() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, term.Red(err.Error()))
		os.Exit(1)
	}
}

// loadProject reads the project configuration. Flags take precedence over
// the environment and the configuration file.
func loadProject(opts *globalOptions) (*project, error) {
	dir := opts.dir
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("stat %s: not a directory", dir)
	}

	file, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if opts.source != "" {
		file.SourceRoot = opts.source
	}
	if opts.dist != "" {
		file.DistRoot = opts.dist
	}
	if opts.logLevel != "" {
		file.LogLevel = opts.logLevel
	}

	logger := &logx.Logger{}
	if file.LogFile != "" {
		logFile := file.LogFile
		if !filepath.IsAbs(logFile) {
			logFile = filepath.Join(dir, logFile)
		}
		logger, err = logx.New(fmt.Sprintf("file:%s?buffer=32k", logFile))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	if file.LogLevel != "" {
		logger.SetLevelByName(file.LogLevel)
	}
	build.SetLogger(logger)
	resolver.SetLogger(logger)
	watcher.SetLogger(logger)
	web.SetLogger(logger)

	cfg := config.New(file.Options(dir))
	if _, err := cfg.Aliases(); err != nil {
		return nil, err
	}
	if file.Path != "" {
		logger.Debugf("config: loaded %s", file.Path)
	}
	return &project{
		dir:      dir,
		file:     file,
		config:   cfg,
		resolver: resolver.New(cfg),
		log:      logger,
	}, nil
}

func (p *project) builder(dev bool, cache *jsparser.Cache, prune bool) (*build.Builder, error) {
	return build.New(p.config, p.resolver, build.Options{
		Dev:     dev,
		Cache:   cache,
		Prune:   prune,
		Include: p.file.Include,
		Exclude: p.file.Exclude,
	})
}
