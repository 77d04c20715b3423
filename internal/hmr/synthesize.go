package hmr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// RegistryGlobal is the global object through which the runtime client
// reloads rewritten imports: `modules` maps the URL pathname of a module to an
// async reload function resolving to true or false, `importers` maps it to the
// reload functions of every importing module keyed by the importer's
// pathname, `reload()` runs all modules.
const RegistryGlobal = "__VERSA_HMR__"

const (
	loaderPrefix = "__versaHMR_load"
	applyPrefix  = "__versaHMR_apply"
	readyName    = "__versaHMR_ready"
	registryName = "__versaHMR"
	importerName = "__versaHMR_importer"
	pathPrefix   = "__versaHMR_path"
)

// Plan is the code generated for the rewritten imports of a module.
type Plan struct {
	// Declarations declare one mutable binding per imported local name.
	Declarations []string
	// Loaders define one cache-busting loader and one assignment function per
	// imported path.
	Loaders []string
	// InitialLoads load every path once. In a component they run in the
	// `__versaHMR_ready` promise, elsewhere they are awaited in place.
	InitialLoads []string
	// Registrations register one reload function per path for this importer.
	Registrations []string
	// Paths are the imported paths, in first-import order.
	Paths []string
}

// Empty reports whether the plan rewrites nothing.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Paths) == 0
}

type assignment struct {
	local string
	// expr is the property read on the loaded module `m`.
	expr string
}

type loadGroup struct {
	path        string
	assignments []assignment
}

// Synthesize generates the declarations, loaders, initial loads and registry
// entries for the rewritten imports of the file. Imports of the same path share
// one loader.
func Synthesize(filename string, imports []*ClassifiedImport, kind FileKind) (*Plan, error) {
	plan := &Plan{}
	if len(imports) == 0 {
		return plan, nil
	}

	var (
		groups   []*loadGroup
		byPath   = map[string]*loadGroup{}
		bound    = map[string]string{}
		declared = map[string]bool{}
	)
	for _, ci := range imports {
		target := ci.Target()
		g, ok := byPath[target]
		if !ok {
			g = &loadGroup{path: target}
			byPath[target] = g
			groups = append(groups, g)
		}

		assignments, err := assignmentPlan(filename, ci, bound)
		if err != nil {
			return nil, err
		}
		for _, a := range assignments {
			if !declared[a.local] {
				declared[a.local] = true
				plan.Declarations = append(plan.Declarations, "let "+a.local+";")
			}
		}
		g.assignments = append(g.assignments, assignments...)
	}

	for i, g := range groups {
		loader := loaderPrefix + strconv.Itoa(i)
		apply := applyPrefix + strconv.Itoa(i)
		plan.Paths = append(plan.Paths, g.path)
		plan.Loaders = append(plan.Loaders, loaderCode(loader, g.path), applyCode(apply, g.assignments))
		plan.InitialLoads = append(plan.InitialLoads, fmt.Sprintf("%s(await %s());", apply, loader))
		plan.Registrations = append(plan.Registrations, registrationCode(pathPrefix+strconv.Itoa(i), g.path, loader, apply))
	}
	if kind == VueComponent {
		plan.InitialLoads = []string{
			"const " + readyName + " = (async () => {\n" + indent(strings.Join(plan.InitialLoads, "\n"), "  ") + "\n})();",
		}
	}
	plan.Registrations = append([]string{registryCode()}, plan.Registrations...)
	return plan, nil
}

// assignmentPlan maps each local name of the import to the property of the
// loaded module it receives. bound tracks the export each local name was
// bound to by earlier imports of the file.
func assignmentPlan(filename string, ci *ClassifiedImport, bound map[string]string) ([]assignment, error) {
	var ret []assignment
	bind := func(local string, export string, expr string) error {
		if local == "" || export == "" {
			return &AmbiguousBindingError{Path: filename, Specifier: ci.Specifier, Local: local, Line: ci.Line}
		}
		key := ci.Target() + "\x00" + export
		if prev, ok := bound[local]; ok && prev != key {
			candidates := []string{exportName(prev), ci.Target() + "#" + export}
			sort.Strings(candidates)
			return &AmbiguousBindingError{Path: filename, Specifier: ci.Specifier, Local: local, Candidates: candidates, Line: ci.Line}
		}
		bound[local] = key
		ret = append(ret, assignment{local: local, expr: expr})
		return nil
	}
	if ci.Default != "" {
		if err := bind(ci.Default, "default", "m.default"); err != nil {
			return nil, err
		}
	}
	if ci.Namespace != "" {
		if err := bind(ci.Namespace, "*", "m"); err != nil {
			return nil, err
		}
	}
	for _, b := range ci.Named {
		if err := bind(b.Local, b.Imported, propertyRead("m", b.Imported)); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func exportName(key string) string {
	path, name, _ := strings.Cut(key, "\x00")
	return path + "#" + name
}

func loaderCode(name string, path string) string {
	sep := "?"
	if strings.ContainsRune(path, '?') {
		sep = "&"
	}
	return fmt.Sprintf("const %s = () => import(%s + Date.now());", name, jsString(path+sep+"t="))
}

func applyCode(name string, assignments []assignment) string {
	var b strings.Builder
	b.WriteString("const " + name + " = (m) => {\n")
	for _, a := range assignments {
		b.WriteString("  " + a.local + " = " + a.expr + ";\n")
	}
	b.WriteString("};")
	return b.String()
}

func registryCode() string {
	return "const " + registryName + " = (globalThis." + RegistryGlobal + " ??= {\n" +
		"  modules: {},\n" +
		"  importers: {},\n" +
		"  reload() {\n" +
		"    return Promise.all(Object.values(this.modules).map((reload) => reload()));\n" +
		"  },\n" +
		"});\n" +
		"const " + importerName + " = new URL(import.meta.url).pathname;"
}

// registrationCode registers the reload function of the importer under the
// URL pathname of the imported module. The module entry runs the reload
// functions of all importers.
func registrationCode(name string, path string, loader string, apply string) string {
	importers := registryName + ".importers[" + name + "]"
	return "const " + name + " = new URL(" + jsString(path) + ", import.meta.url).pathname;\n" +
		"(" + importers + " ??= {})[" + importerName + "] = async () => {\n" +
		"  try {\n" +
		"    " + apply + "(await " + loader + "());\n" +
		"    return true;\n" +
		"  } catch (err) {\n" +
		"    console.error(" + jsString("[versa] failed to reload "+path) + ", err);\n" +
		"    return false;\n" +
		"  }\n" +
		"};\n" +
		registryName + ".modules[" + name + "] ??= async () => {\n" +
		"  const results = await Promise.all(Object.values(" + importers + ").map((reload) => reload()));\n" +
		"  return results.every(Boolean);\n" +
		"};"
}

// propertyRead returns `obj.name`, or `obj["name"]` when name is not an
// identifier.
func propertyRead(obj string, name string) string {
	if isIdentifier(name) {
		return obj + "." + name
	}
	return obj + "[" + jsString(name) + "]"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// jsString quotes s as a JavaScript string literal. JSON strings are valid
// JavaScript strings.
func jsString(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(data)
}

// indent prefixes every non-empty line of s with prefix.
func indent(s string, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
