package build

import (
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/versa-dev/versa/internal/jsparser"
)

// tsconfigRaw keeps the value imports TypeScript would elide when unused, the
// transform decides what happens to them.
const tsconfigRaw = `{"compilerOptions":{"preserveValueImports":true,"importsNotUsedAsValues":"preserve"}}`

func isTypeScript(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".ts", ".mts", ".cts":
		return !strings.HasSuffix(filename, ".d.ts")
	}
	return false
}

// stripTypes compiles a TypeScript module to JavaScript, keeping the module
// syntax.
func stripTypes(filename string, src []byte) ([]byte, error) {
	ret := api.Transform(string(src), api.TransformOptions{
		Sourcefile:  filename,
		Loader:      api.LoaderTS,
		Format:      api.FormatESModule,
		Target:      api.ESNext,
		Platform:    api.PlatformBrowser,
		TsconfigRaw: tsconfigRaw,
	})
	if len(ret.Errors) > 0 {
		msg := ret.Errors[0]
		perr := &jsparser.ParseError{Path: filename, Line: 1, Near: msg.Text}
		if msg.Location != nil {
			perr.Line = msg.Location.Line
			perr.Near = strings.TrimSpace(msg.Location.LineText)
		}
		return nil, perr
	}
	return ret.Code, nil
}
