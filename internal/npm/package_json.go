package npm

import (
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/versa-dev/versa/internal/jsonc"
)

// PackageJSONRaw defines the package.json of an installed package as found on disk
type PackageJSONRaw struct {
	Name             string          `json:"name"`
	Version          string          `json:"version"`
	Type             string          `json:"type"`
	Main             JSONAny         `json:"main"`
	Module           JSONAny         `json:"module"`
	ES2015           JSONAny         `json:"es2015"`
	JsNextMain       JSONAny         `json:"jsnext:main"`
	Browser          JSONAny         `json:"browser"`
	Dependencies     any             `json:"dependencies"`
	DevDependencies  any             `json:"devDependencies"`
	PeerDependencies any             `json:"peerDependencies"`
	Exports          json.RawMessage `json:"exports"`
}

// PackageJSON defines the package.json of an installed package
type PackageJSON struct {
	Name    string
	Version string
	Type    string
	Main    string
	Module  string
	// BrowserMain is the legacy `browser` field when it is a plain string.
	BrowserMain string
	// Browser holds the `browser` field when it is a replacement map.
	Browser          map[string]string
	Dependencies     map[string]string
	DevDependencies  map[string]string
	PeerDependencies map[string]string
	// Exports is the `exports` field. A string `exports` is stored as the "." key.
	Exports jsonc.Object
}

// ToPackageJSON converts PackageJSONRaw to PackageJSON
func (a *PackageJSONRaw) ToPackageJSON() (*PackageJSON, error) {
	browser := map[string]string{}
	if a.Browser.Map != nil {
		for k, v := range a.Browser.Map {
			s, isStr := v.(string)
			if isStr {
				browser[k] = s
			} else if b, ok := v.(bool); ok && !b {
				browser[k] = ""
			}
		}
	}

	var exports jsonc.Object
	if rawExports := a.Exports; len(rawExports) > 0 && string(rawExports) != "null" {
		var s string
		if json.Unmarshal(rawExports, &s) == nil {
			if len(s) > 0 {
				exports = jsonc.NewObject([]string{"."}, map[string]any{".": s})
			}
		} else if err := exports.UnmarshalJSON(rawExports); err != nil {
			return nil, err
		}
	}

	p := &PackageJSON{
		Name:             a.Name,
		Version:          a.Version,
		Type:             a.Type,
		Main:             a.Main.MainString(),
		Module:           a.Module.MainString(),
		BrowserMain:      a.Browser.Str,
		Browser:          browser,
		Dependencies:     toStringMap(a.Dependencies),
		DevDependencies:  toStringMap(a.DevDependencies),
		PeerDependencies: toStringMap(a.PeerDependencies),
		Exports:          exports,
	}

	// normalize package module field
	if p.Module == "" {
		if es2015 := a.ES2015.MainString(); es2015 != "" {
			p.Module = es2015
		} else if jsNextMain := a.JsNextMain.MainString(); jsNextMain != "" {
			p.Module = jsNextMain
		}
	}

	return p, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (a *PackageJSON) UnmarshalJSON(b []byte) error {
	var raw PackageJSONRaw
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p, err := raw.ToPackageJSON()
	if err != nil {
		return err
	}
	*a = *p
	return nil
}

// DependencyRange returns the version range the manifest declares for the
// given dependency, looking at dependencies, devDependencies and peerDependencies.
func (a *PackageJSON) DependencyRange(name string) (string, bool) {
	for _, m := range []map[string]string{a.Dependencies, a.DevDependencies, a.PeerDependencies} {
		if v, ok := m[name]; ok {
			return v, true
		}
	}
	return "", false
}

// JSONAny holds a JSON value that is either a string, an object or anything else
type JSONAny struct {
	Str string
	Map map[string]any
	Any any
}

func (a *JSONAny) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		a.Str = s
		return nil
	}
	var m map[string]any
	if json.Unmarshal(b, &m) == nil {
		a.Map = m
		return nil
	}
	return json.Unmarshal(b, &a.Any)
}

// MainString returns the string value, or the "." entry of an object value.
func (a *JSONAny) MainString() string {
	if a.Str != "" {
		return a.Str
	}
	if a.Map != nil {
		if v, ok := a.Map["."]; ok {
			if s, isStr := v.(string); isStr {
				return s
			}
		}
	}
	return ""
}

// IsModuleFile checks if the given path names a JavaScript module file
func IsModuleFile(s string) bool {
	switch strings.ToLower(path.Ext(s)) {
	case ".js", ".mjs", ".cjs":
		return true
	default:
		return false
	}
}

func toStringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	ret := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok && k != "" && s != "" {
			ret[k] = s
		}
	}
	return ret
}
