package mime

import (
	"path"
	"strings"
)

// typeExts lists the file types the dev server serves. A trailing `;` marks
// a textual type that gets a utf-8 charset.
var typeExts = map[string][]string{
	"application/javascript;": {"js", "mjs", "cjs"},
	"application/json;":       {"json", "map"},
	"application/wasm":        {"wasm"},
	"application/xml;":        {"xml"},
	"font/otf":                {"otf"},
	"font/ttf":                {"ttf"},
	"font/woff":               {"woff"},
	"font/woff2":              {"woff2"},
	"image/avif":              {"avif"},
	"image/gif":               {"gif"},
	"image/jpeg":              {"jpg", "jpeg"},
	"image/png":               {"png"},
	"image/svg+xml;":          {"svg"},
	"image/webp":              {"webp"},
	"image/x-icon":            {"ico"},
	"text/css":                {"css"},
	"text/html":               {"html", "htm"},
	"text/markdown":           {"md"},
	"text/plain":              {"txt"},
	"text/typescript":         {"ts", "mts", "cts"},
	"text/vue":                {"vue"},
	"video/mp4":               {"mp4"},
	"video/webm":              {"webm"},
}

var extTypes = map[string]string{}

func init() {
	for t, exts := range typeExts {
		if strings.HasSuffix(t, ";") || strings.HasPrefix(t, "text/") {
			t = strings.TrimSuffix(t, ";") + "; charset=utf-8"
		}
		for _, ext := range exts {
			extTypes["."+ext] = t
		}
	}
}

// ContentType returns the MIME type of the file, or "application/octet-stream"
// for unknown extensions.
func ContentType(filename string) string {
	if t, ok := extTypes[strings.ToLower(path.Ext(filename))]; ok {
		return t
	}
	return "application/octet-stream"
}

// IsModule reports whether browsers load the file as a JavaScript module.
func IsModule(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".js", ".mjs":
		return true
	}
	return false
}
