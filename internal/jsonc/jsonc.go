package jsonc

import (
	"github.com/goccy/go-json"
)

// Strip replaces line comments, block comments and trailing commas in a JSONC
// document with spaces so the result is plain JSON.
// Offsets and line breaks are preserved, decoder errors still point at the
// right line of the original file.
func Strip(src []byte) []byte {
	dst := make([]byte, 0, len(src))
	inString := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			dst = append(dst, c)
			if c == '\\' && i+1 < len(src) {
				i++
				dst = append(dst, src[i])
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			dst = append(dst, c)
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for ; i < len(src) && src[i] != '\n'; i++ {
				dst = append(dst, blank(src[i]))
			}
			if i < len(src) {
				dst = append(dst, '\n')
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			dst = append(dst, ' ', ' ')
			i += 2
			for ; i < len(src); i++ {
				if src[i] == '*' && i+1 < len(src) && src[i+1] == '/' {
					dst = append(dst, ' ', ' ')
					i++
					break
				}
				dst = append(dst, blank(src[i]))
			}
		case c == '}' || c == ']':
			dropTrailingComma(dst)
			dst = append(dst, c)
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// Unmarshal strips the JSONC extensions and decodes the result into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(Strip(data), v)
}

func blank(c byte) byte {
	switch c {
	case '\n', '\r', '\t':
		return c
	default:
		return ' '
	}
}

func dropTrailingComma(dst []byte) {
	for j := len(dst) - 1; j >= 0; j-- {
		if dst[j] <= ' ' {
			continue
		}
		if dst[j] == ',' {
			dst[j] = ' '
		}
		return
	}
}
