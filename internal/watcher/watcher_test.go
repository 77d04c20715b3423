package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "node_modules"), 0755); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 10)
	w, err := New(50*time.Millisecond, []string{"node_modules", "*.swp"}, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}

	a := filepath.Join(dir, "a.ts")
	b := filepath.Join(dir, "b.ts")
	for _, filename := range []string{a, b, filepath.Join(dir, ".a.ts.swp"), filepath.Join(dir, "node_modules", "x.js")} {
		if err := os.WriteFile(filename, []byte("export {}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case paths := <-changed:
		if len(paths) != 2 || paths[0] != a || paths[1] != b {
			t.Errorf("got %v, want [%s %s]", paths, a, b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for changes")
	}

	sub := filepath.Join(dir, "pages")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	c := filepath.Join(sub, "c.ts")
	if err := os.WriteFile(c, []byte("export {}"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == c {
					return
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for a change in a new directory")
		}
	}
}

func TestNewRequiresCallback(t *testing.T) {
	if _, err := New(time.Millisecond, nil, nil); err == nil {
		t.Fatal("expected an error")
	}
}
