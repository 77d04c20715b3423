package importmap

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/ije/gox/utils"
	"golang.org/x/net/html"
)

// ImportMap represents an import map that follows the import maps specification:
// https://developer.mozilla.org/en-US/docs/Web/HTML/Reference/Elements/script/type/importmap
type ImportMap struct {
	Imports map[string]string            `json:"imports,omitempty"`
	Scopes  map[string]map[string]string `json:"scopes,omitempty"`
}

// Blank creates a new import map with empty imports and scopes.
func Blank() *ImportMap {
	return &ImportMap{
		Imports: map[string]string{},
		Scopes:  map[string]map[string]string{},
	}
}

// Parse parses an import map from a JSON string.
func Parse(data []byte) (*ImportMap, error) {
	im := Blank()
	if err := json.Unmarshal(data, im); err != nil {
		return nil, err
	}
	if im.Imports == nil {
		im.Imports = map[string]string{}
	}
	if im.Scopes == nil {
		im.Scopes = map[string]map[string]string{}
	}
	return im, nil
}

// ParseHTML parses the first `<script type="importmap">` of an HTML document.
// It returns nil without an error when the document has no import map.
func ParseHTML(r io.Reader) (*ImportMap, error) {
	tokenizer := html.NewTokenizer(r)
	inImportMap := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != io.EOF {
				return nil, err
			}
			return nil, nil
		case html.StartTagToken:
			tagName, moreAttr := tokenizer.TagName()
			if string(tagName) != "script" {
				continue
			}
			for moreAttr {
				var key, val []byte
				key, val, moreAttr = tokenizer.TagAttr()
				if string(key) == "type" && string(val) == "importmap" {
					inImportMap = true
				}
			}
		case html.TextToken:
			if inImportMap {
				return Parse(bytes.TrimSpace(tokenizer.Text()))
			}
		case html.EndTagToken:
			inImportMap = false
		}
	}
}

// Resolve resolves a specifier to a URL.
// It returns the URL and a boolean indicating if the specifier was found.
// Scopes matching the referrer are tried first, the most specific one first.
func (im *ImportMap) Resolve(specifier string, referrer string) (string, bool) {
	var hash string
	specifier, hash = utils.SplitByFirstByte(specifier, '#')
	if hash != "" {
		hash = "#" + hash
	}
	var query string
	specifier, query = utils.SplitByFirstByte(specifier, '?')
	if query != "" {
		query = "?" + query
	}

	if referrer != "" && len(im.Scopes) > 0 {
		scopeKeys := make(ScopeKeys, 0, len(im.Scopes))
		for prefix := range im.Scopes {
			scopeKeys = append(scopeKeys, prefix)
		}
		sort.Sort(scopeKeys)
		for _, scopeKey := range scopeKeys {
			if strings.HasPrefix(referrer, scopeKey) {
				if url, ok := resolveIn(im.Scopes[scopeKey], specifier); ok {
					return url + query + hash, true
				}
			}
		}
	}
	if url, ok := resolveIn(im.Imports, specifier); ok {
		return url + query + hash, true
	}
	return specifier + query + hash, false
}

// resolveIn looks up an exact entry first, then the longest `/`-terminated
// prefix entry.
func resolveIn(imports map[string]string, specifier string) (string, bool) {
	if url, ok := imports[specifier]; ok {
		return url, true
	}
	var match string
	for k := range imports {
		if strings.HasSuffix(k, "/") && strings.HasPrefix(specifier, k) && len(k) > len(match) {
			match = k
		}
	}
	if match == "" {
		return "", false
	}
	return imports[match] + specifier[len(match):], true
}

// Merge adds the imports and scopes of other that im does not define.
func (im *ImportMap) Merge(other *ImportMap) {
	if other == nil {
		return
	}
	for k, v := range other.Imports {
		if _, ok := im.Imports[k]; !ok {
			im.Imports[k] = v
		}
	}
	for scope, imports := range other.Scopes {
		target, ok := im.Scopes[scope]
		if !ok {
			target = map[string]string{}
			im.Scopes[scope] = target
		}
		for k, v := range imports {
			if _, ok := target[k]; !ok {
				target[k] = v
			}
		}
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (im *ImportMap) MarshalJSON() ([]byte, error) {
	return []byte(im.FormatJSON(0)), nil
}

// FormatJSON formats the import map as a JSON string with sorted keys.
func (im *ImportMap) FormatJSON(indent int) string {
	buf := strings.Builder{}
	indentStr := bytes.Repeat([]byte{' ', ' '}, indent+1)
	buf.Write(indentStr[0 : 2*indent])
	buf.WriteString("{\n")
	buf.Write(indentStr)
	buf.WriteString("\"imports\": {")
	if len(im.Imports) > 0 {
		buf.WriteByte('\n')
		formatImports(&buf, im.Imports, indent+2)
		buf.Write(indentStr)
	}
	buf.WriteByte('}')
	scopes := make([]string, 0, len(im.Scopes))
	for key, imports := range im.Scopes {
		if len(imports) > 0 {
			scopes = append(scopes, key)
		}
	}
	sort.Strings(scopes)
	if len(scopes) > 0 {
		buf.WriteString(",\n")
		buf.Write(indentStr)
		buf.WriteString("\"scopes\": {\n")
		for i, scope := range scopes {
			buf.Write(indentStr)
			buf.WriteString("  ")
			buf.WriteString(jsonString(scope))
			buf.WriteString(": {\n")
			formatImports(&buf, im.Scopes[scope], indent+3)
			buf.Write(indentStr)
			buf.WriteString("  }")
			if i < len(scopes)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.Write(indentStr)
		buf.WriteByte('}')
	}
	buf.WriteByte('\n')
	buf.Write(indentStr[0 : 2*indent])
	buf.WriteByte('}')
	return buf.String()
}

func formatImports(buf *strings.Builder, imports map[string]string, indent int) {
	keys := make([]string, 0, len(imports))
	for key, url := range imports {
		// ignore empty values
		if url != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	indentStr := bytes.Repeat([]byte{' ', ' '}, indent)
	for i, key := range keys {
		buf.Write(indentStr)
		buf.WriteString(jsonString(key))
		buf.WriteString(": ")
		buf.WriteString(jsonString(imports[key]))
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
