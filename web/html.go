package web

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/versa-dev/versa/internal/importmap"
	"golang.org/x/net/html"
)

const clientScript = `<script type="module" src="/@hmr"></script>`

func (s *Server) serveHTML(w http.ResponseWriter, filename string) {
	data, err := os.ReadFile(filename)
	if err != nil {
		http.Error(w, "Internal Server Error", 500)
		return
	}
	out, err := s.injectHTML(data)
	if err != nil {
		log.Errorf("web: %s: %v", filename, err)
		w.Write(data)
		return
	}
	w.Write(out)
}

// injectHTML writes the merged import map into the page and, in dev mode,
// the HMR client at the end of it. The page's own import map entries take
// precedence over the configured ones.
func (s *Server) injectHTML(data []byte) ([]byte, error) {
	im, err := importmap.ParseHTML(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if im == nil {
		im = importmap.Blank()
	}
	im.Merge(s.config.ImportMap)
	var importMapScript string
	if len(im.Imports) > 0 || len(im.Scopes) > 0 {
		importMapScript = "<script type=\"importmap\">\n" + im.FormatJSON(0) + "\n</script>"
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(data)+len(importMapScript)+len(clientScript)+2))
	tokenizer := html.NewTokenizer(bytes.NewReader(data))
	injected := importMapScript == ""
	inject := func() {
		if !injected {
			buf.WriteString(importMapScript)
			injected = true
		}
	}
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			if err := tokenizer.Err(); err != io.EOF {
				return nil, err
			}
			break
		}
		name, hasAttr := tokenizer.TagName()
		tag := string(name)
		if tt == html.StartTagToken && tag == "script" && hasAttr && isImportMapScript(tokenizer) {
			// drop the original import map, the merged one replaces it
			for {
				tt := tokenizer.Next()
				if tt == html.ErrorToken || (tt == html.EndTagToken && tagName(tokenizer) == "script") {
					break
				}
			}
			inject()
			continue
		}
		if (tt == html.StartTagToken || tt == html.SelfClosingTagToken) && !injected {
			switch tag {
			case "script", "link", "body":
				inject()
			}
		}
		if tt == html.EndTagToken && tag == "head" {
			inject()
		}
		if tt == html.EndTagToken && tag == "body" && s.config.Dev {
			buf.WriteString(clientScript)
			buf.Write(tokenizer.Raw())
			return append(buf.Bytes(), rest(tokenizer)...), nil
		}
		buf.Write(tokenizer.Raw())
		if tt == html.StartTagToken && tag == "head" {
			inject()
		}
	}
	inject()
	if s.config.Dev {
		buf.WriteString(clientScript)
	}
	return buf.Bytes(), nil
}

func isImportMapScript(tokenizer *html.Tokenizer) bool {
	for {
		key, val, more := tokenizer.TagAttr()
		if string(key) == "type" && strings.EqualFold(string(val), "importmap") {
			return true
		}
		if !more {
			return false
		}
	}
}

func tagName(tokenizer *html.Tokenizer) string {
	name, _ := tokenizer.TagName()
	return string(name)
}

// rest returns the remaining raw input of the tokenizer.
func rest(tokenizer *html.Tokenizer) []byte {
	var buf bytes.Buffer
	for {
		if tokenizer.Next() == html.ErrorToken {
			return buf.Bytes()
		}
		buf.Write(tokenizer.Raw())
	}
}
