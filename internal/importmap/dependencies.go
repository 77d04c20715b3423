package importmap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/versa-dev/versa/internal/npm"
	"github.com/versa-dev/versa/internal/resolver"
)

// FromDependencies creates the import map of the dependencies declared in the
// package.json of the project, mapped to the browser entries of the installed
// packages. Each package also gets a `name/` entry for its subpaths.
// Dependencies that can not be resolved are reported as warnings.
func FromDependencies(ctx context.Context, r *resolver.Resolver) (im *ImportMap, warnings []string, err error) {
	im = Blank()
	data, err := os.ReadFile(filepath.Join(r.Config().ProjectRoot(), "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return im, nil, nil
		}
		return nil, nil, err
	}
	var pkg npm.PackageJSON
	if err = pkg.UnmarshalJSON(data); err != nil {
		return nil, nil, fmt.Errorf("invalid package.json: %w", err)
	}

	names := make([]string, 0, len(pkg.Dependencies)+len(pkg.PeerDependencies))
	for name := range pkg.Dependencies {
		names = append(names, name)
	}
	for name := range pkg.PeerDependencies {
		if _, ok := pkg.Dependencies[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	resolutions, err := r.ResolveAll(ctx, names)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range names {
		res := resolutions[name]
		switch {
		case res.Err != nil:
			warnings = append(warnings, res.Err.Error())
		case !res.Resolved:
			warnings = append(warnings, fmt.Sprintf("%s is not installed", name))
		default:
			im.Imports[name] = res.Path
			im.Imports[name+"/"] = "/node_modules/" + name + "/"
		}
	}
	return im, warnings, nil
}
