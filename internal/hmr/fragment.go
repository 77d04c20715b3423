package hmr

import (
	"regexp"
	"sort"
	"strings"

	"github.com/versa-dev/versa/internal/jsparser"
)

// edit replaces the source range [start, end) with text. A removal has an
// empty text, an insertion an empty range.
type edit struct {
	start int
	end   int
	text  string
}

// splice applies non-overlapping edits to src. Edits are applied from the
// highest start offset down, so that applying an edit never shifts the
// offsets of the edits still to be applied. Insertions at the same offset
// keep their order.
func splice(src string, edits []edit) string {
	order := make([]int, len(edits))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := edits[order[i]], edits[order[j]]
		if a.start != b.start {
			return a.start > b.start
		}
		if a.end != b.end {
			// a removal at an offset goes before an insertion at the same offset
			return a.end > b.end
		}
		return order[i] > order[j]
	})
	out := src
	for _, i := range order {
		e := edits[i]
		out = out[:e.start] + e.text + out[e.end:]
	}
	return out
}

// spliceRange returns the source text of r with the edits that fall inside r
// applied.
func spliceRange(src string, r jsparser.Range, edits []edit) string {
	var local []edit
	for _, e := range edits {
		if e.start >= r.Start && e.end <= r.End {
			local = append(local, edit{start: e.start - r.Start, end: e.end - r.Start, text: e.text})
		}
	}
	return splice(src[r.Start:r.End], local)
}

// fragment is either a range of the source or generated text.
type fragment struct {
	span jsparser.Range
	text string
	// generated marks text fragments
	generated bool
	// ownLine starts the fragment on a new line
	ownLine bool
}

// fragments is the ordered list the output of a module is assembled from.
// Source ranges are copied verbatim with the edits inside them applied.
type fragments struct {
	src   string
	edits []edit
	list  []fragment
}

func (f *fragments) source(r jsparser.Range) {
	f.list = append(f.list, fragment{span: r, ownLine: true})
}

func (f *fragments) text(s string) {
	f.list = append(f.list, fragment{text: s, generated: true, ownLine: true})
}

// linearize concatenates the fragments in order. It is the only place output
// text is built from fragments.
func (f *fragments) linearize() string {
	var b strings.Builder
	for _, frag := range f.list {
		s := frag.text
		if !frag.generated {
			s = spliceRange(f.src, frag.span, f.edits)
		}
		if s == "" {
			continue
		}
		if frag.ownLine && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") && !strings.HasPrefix(s, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(s)
	}
	return b.String()
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// finish collapses runs of three or more newlines to two and trims the output.
func finish(s string) string {
	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}

// indentEdits returns the insertions that indent every non-empty line of r.
// Lines starting inside a template literal are left alone, their leading
// whitespace is part of the string.
func indentEdits(mod *jsparser.Module, r jsparser.Range, prefix string) []edit {
	var edits []edit
	src := mod.Source
	for i := r.Start; i < r.End; i++ {
		lineStart := i == r.Start || src[i-1] == '\n'
		if !lineStart || src[i] == '\n' || src[i] == '\r' || mod.InTemplate(i) {
			continue
		}
		edits = append(edits, edit{start: i, end: i, text: prefix})
	}
	return edits
}
