package hmr

import (
	"path"
	"regexp"
	"strings"

	"github.com/versa-dev/versa/internal/config"
	"github.com/versa-dev/versa/internal/jsparser"
)

// FileKind is the kind of a source file. At most one kind applies.
type FileKind int

const (
	Plain FileKind = iota
	// VueComponent is a file that defines a component.
	VueComponent
	// VueEntryPoint is a file that creates and mounts the application.
	VueEntryPoint
	// CoreDefinitionFile is a re-export aggregator, which is never rewritten.
	CoreDefinitionFile
)

func (k FileKind) String() string {
	switch k {
	case VueComponent:
		return "component"
	case VueEntryPoint:
		return "entry"
	case CoreDefinitionFile:
		return "core"
	default:
		return "plain"
	}
}

// Disposition tells whether an import stays static or is loaded at runtime.
type Disposition int

const (
	StaticKeep Disposition = iota
	DynamicRewrite
)

func (d Disposition) String() string {
	if d == DynamicRewrite {
		return "dynamic"
	}
	return "static"
}

// ClassifiedImport is an import declaration with its disposition.
type ClassifiedImport struct {
	*jsparser.ImportRecord
	Disposition Disposition
	// Path is the specifier the output refers to. It is set by the caller
	// after resolving; an empty Path means the specifier is used as is.
	Path string
}

// Target returns the specifier the output should use for the import.
func (ci *ClassifiedImport) Target() string {
	if ci.Path != "" {
		return ci.Path
	}
	return ci.Specifier
}

// Classification is the result of Classify.
type Classification struct {
	Kind    FileKind
	Imports []*ClassifiedImport
	Exports []jsparser.Statement
	Body    []jsparser.Statement
}

// Dynamic returns the imports to be rewritten, in source order.
func (c *Classification) Dynamic() []*ClassifiedImport {
	var ret []*ClassifiedImport
	for _, ci := range c.Imports {
		if ci.Disposition == DynamicRewrite {
			ret = append(ret, ci)
		}
	}
	return ret
}

var (
	componentMarker = regexp.MustCompile(`\bdefineComponent\s*\(`)
	createAppMarker = regexp.MustCompile(`\bcreateApp\s*\(`)
	mountMarker     = regexp.MustCompile(`\.mount\s*\(`)
)

// moduleExts are the extensions of imports that may be rewritten, other
// imports (styles, json, images) are assets.
var moduleExts = map[string]bool{
	"":     true,
	".js":  true,
	".mjs": true,
	".jsx": true,
	".ts":  true,
	".mts": true,
	".tsx": true,
	".vue": true,
}

// Classify computes the file kind of the module and the disposition of each of
// its imports. It never fails.
func Classify(mod *jsparser.Module, cfg *config.TransformConfig) *Classification {
	aliases, _ := cfg.Aliases()
	c := &Classification{Kind: fileKind(mod, cfg, aliases)}

	for _, rec := range mod.Imports {
		c.Imports = append(c.Imports, &ClassifiedImport{
			ImportRecord: rec,
			Disposition:  disposition(mod, c.Kind, rec, aliases),
		})
	}
	for _, stmt := range mod.Statements {
		switch stmt.Kind {
		case jsparser.ExportStatement:
			c.Exports = append(c.Exports, stmt)
		case jsparser.OtherStatement:
			c.Body = append(c.Body, stmt)
		}
	}
	return c
}

func fileKind(mod *jsparser.Module, cfg *config.TransformConfig, aliases config.AliasTable) FileKind {
	if componentMarker.MatchString(mod.Source) {
		return VueComponent
	}
	if createAppMarker.MatchString(mod.Source) && mountMarker.MatchString(mod.Source) {
		return VueEntryPoint
	}
	if isCoreDefinitionFile(mod, cfg, aliases) {
		return CoreDefinitionFile
	}
	return Plain
}

// isCoreDefinitionFile reports whether the top-level statements are mostly
// imports and exports, and at least one import is a local file with the
// extension of the module itself.
func isCoreDefinitionFile(mod *jsparser.Module, cfg *config.TransformConfig, aliases config.AliasTable) bool {
	total := len(mod.Statements)
	if total < cfg.CoreDefinitionMinNodes() {
		return false
	}
	n := 0
	for _, stmt := range mod.Statements {
		if stmt.Kind != jsparser.OtherStatement {
			n++
		}
	}
	if float64(n)/float64(total) < cfg.CoreDefinitionRatio() {
		return false
	}
	ext := path.Ext(mod.Path)
	for _, rec := range mod.Imports {
		if !IsExternal(rec.Specifier, aliases) && specifierExt(rec.Specifier) == ext {
			return true
		}
	}
	return false
}

func disposition(mod *jsparser.Module, kind FileKind, rec *jsparser.ImportRecord, aliases config.AliasTable) Disposition {
	switch {
	case kind == VueEntryPoint || kind == CoreDefinitionFile:
		return StaticKeep
	case IsExternal(rec.Specifier, aliases):
		return StaticKeep
	case rec.TypeOnly || !rec.HasBindings() || !moduleExts[specifierExt(rec.Specifier)]:
		return StaticKeep
	}
	for _, name := range rec.LocalNames() {
		if IsResolvedComponentName(mod.Source, name) {
			return StaticKeep
		}
	}
	return DynamicRewrite
}

// IsExternal reports whether the specifier names a package: it does not
// start with `.` or `/`, has no scheme-like colon and matches no alias.
func IsExternal(specifier string, aliases config.AliasTable) bool {
	if strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") || strings.ContainsRune(specifier, ':') {
		return false
	}
	_, ok := aliases.Match(specifier)
	return !ok
}

// IsResolvedComponentName reports whether name is passed to a component
// resolution call, e.g. `resolveComponent("MyButton")` or the compiled
// `_resolveDynamicComponent(MyButton)`, anywhere in the source text.
// The scan is textual: a shadowing local of the same name also matches.
func IsResolvedComponentName(src string, name string) bool {
	if name == "" {
		return false
	}
	re, err := regexp.Compile(`\b_?resolve(?:Dynamic)?Component\s*\(\s*["'` + "`" + `]?` + regexp.QuoteMeta(name) + `(?:["'` + "`" + `\s,)]|$)`)
	if err != nil {
		return false
	}
	return re.MatchString(src)
}

func specifierExt(specifier string) string {
	if i := strings.IndexAny(specifier, "?#"); i >= 0 {
		specifier = specifier[:i]
	}
	return path.Ext(specifier)
}
