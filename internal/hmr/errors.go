package hmr

import (
	"fmt"
	"strings"
)

// ResolutionError is returned when a specifier of the file cannot be mapped
// to a path because resolving it failed, e.g. on a malformed package manifest.
// Specifiers that are simply not found are left as they are instead.
type ResolutionError struct {
	Path      string
	Specifier string
	Line      int
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s:%d: can not resolve %q: %v", e.Path, e.Line, e.Specifier, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// AmbiguousBindingError is returned when a local name of a rewritten import
// can not be traced back to exactly one exported name.
type AmbiguousBindingError struct {
	Path      string
	Specifier string
	Local     string
	// Candidates are the exported names the local name is bound to.
	Candidates []string
	Line       int
}

func (e *AmbiguousBindingError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("%s:%d: import of %q: can not find the exported name bound to %q", e.Path, e.Line, e.Specifier, e.Local)
	}
	return fmt.Sprintf("%s:%d: import of %q: %q is bound to more than one export (%s)", e.Path, e.Line, e.Specifier, e.Local, strings.Join(e.Candidates, ", "))
}
