package web

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/versa-dev/versa/internal/hmr"
	"github.com/versa-dev/versa/internal/mime"
)

// ChangeKind is the action a client takes for a changed file.
type ChangeKind string

const (
	// Reload reloads the page.
	Reload ChangeKind = "reload"
	// HotSwap reloads the modules through the HMR registry.
	HotSwap ChangeKind = "hmr"
	// Remove reloads the page after a file was removed.
	Remove ChangeKind = "remove"
)

// Change is a message sent to HMR clients, `<kind>:<path>` on the wire.
type Change struct {
	Kind ChangeKind
	Path string
}

func (c Change) String() string {
	return string(c.Kind) + ":" + c.Path
}

// ChangeOf inspects the file at the URL path under root and returns the
// change clients must apply.
func ChangeOf(root string, pathname string) Change {
	file, err := os.Open(filepath.Join(root, filepath.FromSlash(pathname)))
	if err != nil {
		if os.IsNotExist(err) {
			return Change{Kind: Remove, Path: pathname}
		}
		return Change{Kind: Reload, Path: pathname}
	}
	defer file.Close()
	if !mime.IsModule(pathname) {
		return Change{Kind: Reload, Path: pathname}
	}
	firstLine, _ := bufio.NewReader(file).ReadString('\n')
	if strings.TrimRight(firstLine, "\r\n") == hmr.ReloadMarker {
		return Change{Kind: Reload, Path: pathname}
	}
	return Change{Kind: HotSwap, Path: pathname}
}
