package resolver

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ije/gox/utils"
	"github.com/versa-dev/versa/internal/jsonc"
	"github.com/versa-dev/versa/internal/metrics"
	"github.com/versa-dev/versa/internal/npm"
)

// ManifestError is returned when a package.json exists but is not valid JSON.
type ManifestError struct {
	Package string
	Path    string
	Err     error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("invalid package.json of %q (%s): %v", e.Package, e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

type manifest struct {
	pkg *npm.PackageJSON
	err error
}

// entryConditions are the export conditions checked, in this order, to pick
// the entry of a package. Nested condition objects are searched the same way.
var entryConditions = []string{"browser", "import", "module", "default", "main"}

// ResolvePackage resolves a bare specifier to a file of the package installed
// in `<projectRoot>/node_modules`. Scoped names are looked up whole. A missing
// package returns false without an error; a malformed manifest returns a
// *ManifestError.
func (r *Resolver) ResolvePackage(ctx context.Context, specifier string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	pkgName, subpath := npm.SplitPackagePath(specifier)
	if !npm.ValidatePackageName(pkgName) {
		return "", false, nil
	}
	pkgDir := filepath.Join(r.config.ProjectRoot(), "node_modules", filepath.FromSlash(pkgName))
	pkg, err := r.loadManifest(pkgName, filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return "", false, err
	}
	if pkg == nil {
		return "", false, nil
	}
	r.checkVersion(pkgName, pkg)

	var entry string
	if subpath != "" {
		entry = subpathEntry(pkg, subpath)
	} else {
		entry = packageEntry(pkg)
	}
	entry = resolveFile(pkgDir, entry)

	if subpath == "" {
		if sibling := browserSibling(pkgDir, entry, r.config.Production()); sibling != "" {
			if existsFile(filepath.Join(pkgDir, filepath.FromSlash(sibling))) {
				log.Debugf("resolve(%s): %s -> %s", specifier, entry, sibling)
				entry = sibling
			}
		}
	}
	if !existsFile(filepath.Join(pkgDir, filepath.FromSlash(entry))) {
		log.Warnf("resolve(%s): entry %q of %s@%s does not exist", specifier, entry, pkgName, pkg.Version)
	}
	return joinURLPath("node_modules", pkgName, entry), true, nil
}

// loadManifest reads a package.json through the manifest cache. A missing
// file returns a nil package.
func (r *Resolver) loadManifest(pkgName string, filename string) (*npm.PackageJSON, error) {
	if m, ok := r.manifests.Get(filename); ok {
		metrics.ManifestCacheHitsTotal.Inc()
		return m.pkg, m.err
	}
	m := &manifest{}
	data, err := os.ReadFile(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		var pkg npm.PackageJSON
		if err := pkg.UnmarshalJSON(data); err != nil {
			m.err = &ManifestError{Package: pkgName, Path: filename, Err: err}
		} else {
			m.pkg = &pkg
		}
	}
	r.manifests.Add(filename, m)
	return m.pkg, m.err
}

// checkVersion warns once per package when the installed version is outside
// the range declared by the project's package.json.
func (r *Resolver) checkVersion(pkgName string, pkg *npm.PackageJSON) {
	if pkg.Version == "" {
		return
	}
	if _, loaded := r.warned.LoadOrStore(pkgName, struct{}{}); loaded {
		return
	}
	project, err := r.loadManifest("", filepath.Join(r.config.ProjectRoot(), "package.json"))
	if err != nil || project == nil {
		return
	}
	declared, ok := project.DependencyRange(pkgName)
	if !ok {
		return
	}
	satisfied, err := npm.SatisfiesRange(pkg.Version, declared)
	if err == nil && !satisfied {
		log.Warnf("%s@%s is installed but package.json requires %q", pkgName, pkg.Version, declared)
	}
}

// packageEntry picks the entry of a package by descending priority:
// `exports["."]` conditions (browser, import, module, default, main), then the
// legacy `browser`, `module` and `main` fields, then `index.js`.
func packageEntry(pkg *npm.PackageJSON) string {
	if pkg.Exports.Len() > 0 {
		if v, ok := pkg.Exports.Get("."); ok {
			if entry := conditionEntry(v); entry != "" {
				return entry
			}
		} else if !hasSubpathKeys(pkg.Exports) {
			// exports without subpaths is a condition object for "."
			if entry := conditionEntry(pkg.Exports); entry != "" {
				return entry
			}
		}
	}
	if pkg.BrowserMain != "" && npm.IsModuleFile(pkg.BrowserMain) {
		return normalizeEntry(pkg.BrowserMain)
	}
	if pkg.Module != "" {
		return normalizeEntry(pkg.Module)
	}
	if pkg.Main != "" {
		return normalizeEntry(pkg.Main)
	}
	return "index.js"
}

// subpathEntry resolves a deep import such as `vue/dist/vue.esm-browser.js`
// through the exact `exports` subpath when there is one.
func subpathEntry(pkg *npm.PackageJSON, subpath string) string {
	if v, ok := pkg.Exports.Get("./" + subpath); ok {
		if entry := conditionEntry(v); entry != "" {
			return entry
		}
	}
	return normalizeEntry(subpath)
}

func conditionEntry(v any) string {
	switch c := v.(type) {
	case string:
		return normalizeEntry(c)
	case jsonc.Object:
		for _, name := range entryConditions {
			if sub, ok := c.Get(name); ok {
				if entry := conditionEntry(sub); entry != "" {
					return entry
				}
			}
		}
	}
	return ""
}

func hasSubpathKeys(obj jsonc.Object) bool {
	for _, key := range obj.Keys() {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

func normalizeEntry(entry string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(entry, "./")), "/")
}

// resolveFile applies the node file lookup to an extensionless entry:
// `entry.js`, then `entry/index.js`.
func resolveFile(pkgDir string, entry string) string {
	if path.Ext(entry) != "" || existsFile(filepath.Join(pkgDir, filepath.FromSlash(entry))) {
		return entry
	}
	for _, candidate := range []string{entry + ".js", entry + "/index.js"} {
		if existsFile(filepath.Join(pkgDir, filepath.FromSlash(candidate))) {
			return candidate
		}
	}
	return entry
}

func existsFile(filename string) bool {
	fi, err := os.Stat(filename)
	return err == nil && !fi.IsDir()
}

// splitEntry splits the entry into its directory and file name.
func splitEntry(entry string) (dir string, name string) {
	dir, name = utils.SplitByLastByte(entry, '/')
	if name == "" {
		return "", dir
	}
	return
}
