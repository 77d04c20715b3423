package web

import (
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ije/esbuild-internal/xxhash"
	logx "github.com/ije/gox/log"
	"github.com/ije/gox/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/versa-dev/versa/internal/importmap"
	"github.com/versa-dev/versa/internal/mime"
)

//go:embed client.js
var clientJS []byte

var log = &logx.Logger{}

// SetLogger sets the logger of the web package.
func SetLogger(logger *logx.Logger) {
	log = logger
}

type Config struct {
	// Root is the directory served at `/`, usually the project root, so that
	// the dist root and node_modules are both reachable.
	Root string
	// Fallback is served for missing paths without an extension.
	Fallback string
	// ImportMap is merged into the import map of HTML pages.
	ImportMap *importmap.ImportMap
	// Dev injects the HMR client into HTML pages.
	Dev bool
}

// Server is the dev server: a static file server that injects the import
// map and the HMR client into HTML pages and pushes file changes to the
// connected clients.
type Server struct {
	config  *Config
	hub     *hub
	metrics http.Handler
}

func New(config Config) *Server {
	if config.Root == "" {
		config.Root, _ = os.Getwd()
	}
	if config.Fallback == "" {
		config.Fallback = "/index.html"
	}
	if config.ImportMap == nil {
		config.ImportMap = importmap.Blank()
	}
	return &Server{
		config:  &config,
		hub:     newHub(),
		metrics: promhttp.Handler(),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pathname := utils.CleanPath(r.URL.Path)
	switch pathname {
	case "/@hmr":
		s.serveClient(w, r)
	case "/@hmr-ws":
		s.hub.serveWS(w, r)
	case "/metrics":
		s.metrics.ServeHTTP(w, r)
	default:
		s.serveFile(w, r, pathname)
	}
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, pathname string) {
	filename := filepath.Join(s.config.Root, filepath.FromSlash(pathname))
	fi, err := os.Stat(filename)
	if err == nil && fi.IsDir() {
		if pathname != "/" && !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, pathname+"/", http.StatusMovedPermanently)
			return
		}
		pathname = strings.TrimSuffix(pathname, "/") + "/index.html"
		filename = filepath.Join(s.config.Root, filepath.FromSlash(pathname))
		fi, err = os.Stat(filename)
	}
	if err != nil && os.IsNotExist(err) && path.Ext(pathname) == "" {
		pathname = s.config.Fallback
		filename = filepath.Join(s.config.Root, filepath.FromSlash(pathname))
		fi, err = os.Stat(filename)
	}
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "Not Found", 404)
		} else {
			http.Error(w, "Internal Server Error", 500)
		}
		return
	}
	if fi.IsDir() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	query := r.URL.Query()
	etag := fmt.Sprintf("w/\"%x-%x\"", fi.ModTime().UnixMilli(), fi.Size())
	header := w.Header()
	if path.Ext(pathname) == ".html" {
		if s.config.Dev {
			etag = fmt.Sprintf("w/\"%x-%x-dev\"", fi.ModTime().UnixMilli(), fi.Size())
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		header.Set("Content-Type", "text/html; charset=utf-8")
		header.Set("Cache-Control", "max-age=0, must-revalidate")
		header.Set("Etag", etag)
		s.serveHTML(w, filename)
		return
	}

	// `?t=` requests come from the HMR loaders, they are never revalidated
	if r.Header.Get("If-None-Match") == etag && !query.Has("t") {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	file, err := os.Open(filename)
	if err != nil {
		http.Error(w, "Internal Server Error", 500)
		return
	}
	defer file.Close()
	header.Set("Content-Type", mime.ContentType(filename))
	if query.Has("t") {
		header.Set("Cache-Control", "no-store")
	} else {
		header.Set("Cache-Control", "max-age=0, must-revalidate")
		header.Set("Etag", etag)
	}
	io.Copy(w, file)
}

func (s *Server) serveClient(w http.ResponseWriter, r *http.Request) {
	sha := xxhash.New()
	sha.Write(clientJS)
	etag := fmt.Sprintf("w/\"%x\"", sha.Sum(nil))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	header := w.Header()
	header.Set("Content-Type", "application/javascript; charset=utf-8")
	header.Set("Cache-Control", "max-age=0, must-revalidate")
	header.Set("Etag", etag)
	w.Write(clientJS)
}

// Clients returns the number of connected HMR clients.
func (s *Server) Clients() int {
	return s.hub.len()
}

// Notify pushes a change of the file at the URL path to the HMR clients.
// Modules starting with the reload marker reload the page, other modules
// are hot swapped; a removed file or a changed non-module file reloads the
// page too.
func (s *Server) Notify(pathname string) {
	change := ChangeOf(s.config.Root, pathname)
	log.Debugf("hmr: %s", change)
	s.hub.broadcast(change.String())
}

// Close disconnects the HMR clients.
func (s *Server) Close() {
	s.hub.close()
}
