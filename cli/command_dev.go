package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ije/gox/term"
	"github.com/spf13/cobra"
	"github.com/versa-dev/versa/internal/build"
	"github.com/versa-dev/versa/internal/importmap"
	"github.com/versa-dev/versa/internal/jsparser"
	"github.com/versa-dev/versa/internal/watcher"
	"github.com/versa-dev/versa/web"
)

const (
	parseCacheSize = 64 << 20
	watchDebounce  = 100 * time.Millisecond
)

func newDevCommand(opts *globalOptions) *cobra.Command {
	var port uint16
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Serve the app in development mode with hot module reloading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(opts)
			if err != nil {
				return err
			}
			if port == 0 {
				port = p.file.Port
			}
			return runDev(cmd.Context(), p, port)
		},
	}
	cmd.Flags().Uint16VarP(&port, "port", "p", 0, "port to serve on (default: 3000)")
	return cmd
}

func runDev(ctx context.Context, p *project, port uint16) error {
	cache, err := jsparser.NewCache(parseCacheSize)
	if err != nil {
		return err
	}
	defer cache.Close()

	b, err := p.builder(true, cache, false)
	if err != nil {
		return err
	}
	report, err := b.Build(ctx)
	if err != nil {
		return err
	}
	for _, f := range report.Failures() {
		p.log.Errorf("build(%s): %v", f.Source, f.Err)
	}

	im, warnings, err := importmap.FromDependencies(ctx, p.resolver)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		p.log.Warn(w)
	}

	s := web.New(web.Config{Root: p.dir, ImportMap: im, Dev: true})
	defer s.Close()

	distDir := filepath.Join(p.dir, filepath.FromSlash(p.config.DistRoot()))
	w, err := watcher.New(watchDebounce, []string{"node_modules", ".*"}, func(paths []string) {
		rebuild(ctx, p, b, s, distDir, paths)
	})
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Watch(filepath.Join(p.dir, filepath.FromSlash(p.config.SourceRoot()))); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Printf(term.Green("Server is ready on http://localhost:%d\n"), port)
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// rebuild builds the changed files and notifies the HMR clients of their
// outputs.
func rebuild(ctx context.Context, p *project, b *build.Builder, s *web.Server, distDir string, paths []string) {
	for _, filename := range paths {
		if filename == distDir || strings.HasPrefix(filename, distDir+string(filepath.Separator)) {
			continue
		}
		if filepath.Base(filename) == "package.json" {
			p.resolver.Purge()
			continue
		}
		if !b.Match(filename) {
			continue
		}
		ret, err := b.BuildFile(ctx, filename)
		if err != nil {
			p.log.Errorf("build(%s): %v", filename, err)
			return
		}
		if ret.Err != nil {
			continue
		}
		if output, ok := b.OutputPath(filename); ok {
			s.Notify(output)
		}
	}
}
