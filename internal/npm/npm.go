package npm

import (
	"errors"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ije/gox/utils"
)

// ValidatePackageName validates the package name.
// based on https://github.com/npm/validate-npm-package-name
func ValidatePackageName(pkgName string) bool {
	if l := len(pkgName); l == 0 || l > 214 {
		return false
	}
	if strings.HasPrefix(pkgName, "@") {
		scope, name := utils.SplitByFirstByte(pkgName, '/')
		return isNaming(scope[1:]) && isNaming(name)
	}
	return isNaming(pkgName)
}

func isNaming(s string) bool {
	if s == "" || s[0] == '.' || s[0] == '_' {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '.', c == '-', c == '+', c == '$', c == '!', c == '~':
		default:
			return false
		}
	}
	return true
}

// SplitPackagePath splits a bare specifier into the package name and the
// subpath, e.g. "@scope/pkg/dist/x.js" -> ("@scope/pkg", "dist/x.js").
// Scoped names are kept whole.
func SplitPackagePath(specifier string) (pkgName string, subpath string) {
	if strings.HasPrefix(specifier, "@") {
		scope, rest := utils.SplitByFirstByte(specifier, '/')
		if rest == "" {
			return specifier, ""
		}
		name, sub := utils.SplitByFirstByte(rest, '/')
		return scope + "/" + name, sub
	}
	return utils.SplitByFirstByte(specifier, '/')
}

// IsExactVersion returns true if the given version is an exact version.
func IsExactVersion(version string) bool {
	a := strings.SplitN(version, ".", 3)
	if len(a) != 3 {
		return false
	}
	if len(a[0]) == 0 || !isNumericString(a[0]) || len(a[1]) == 0 || !isNumericString(a[1]) {
		return false
	}
	p := a[2]
	if len(p) == 0 {
		return false
	}
	patchEnd := false
	for i, c := range p {
		if !patchEnd {
			if c == '-' || c == '+' {
				if i == 0 || i == len(p)-1 {
					return false
				}
				patchEnd = true
			} else if c < '0' || c > '9' {
				return false
			}
		} else if !(c == '.' || c == '-' || c == '+' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func isNumericString(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// NormalizePackageVersion normalizes the package version.
// It removes the leading `=` or `v` and returns "latest" for empty or "*" versions.
func NormalizePackageVersion(version string) string {
	if strings.HasPrefix(version, "=") {
		version = version[1:]
	} else if strings.HasPrefix(version, "v") && IsExactVersion(version[1:]) {
		version = version[1:]
	}
	if version == "" || version == "*" {
		return "latest"
	}
	return version
}

// ErrUncheckableRange is returned by SatisfiesRange for ranges that are not
// semver ranges, e.g. "workspace:*", "file:../x" or dist tags.
var ErrUncheckableRange = errors.New("range is not a semver range")

// SatisfiesRange reports whether the installed version satisfies the range
// declared for it by the project.
func SatisfiesRange(installed string, declared string) (bool, error) {
	declared = strings.TrimPrefix(declared, "npm:")
	if i := strings.LastIndexByte(declared, '@'); i > 0 {
		// aliased dependency, e.g. "npm:vue@^3.4.0"
		declared = declared[i+1:]
	}
	declared = NormalizePackageVersion(declared)
	if declared == "latest" {
		return true, nil
	}
	if strings.ContainsRune(declared, ':') || IsDistTag(declared) {
		return false, ErrUncheckableRange
	}
	c, err := semver.NewConstraint(declared)
	if err != nil {
		return false, ErrUncheckableRange
	}
	v, err := semver.NewVersion(installed)
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}

// IsDistTag returns true if the given version is a distribution tag.
// https://docs.npmjs.com/cli/v9/commands/npm-dist-tag
func IsDistTag(s string) bool {
	switch s {
	case "latest", "next", "beta", "alpha", "canary", "rc", "experimental":
		return true
	default:
		return false
	}
}
