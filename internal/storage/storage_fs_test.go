package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFSStorage(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dist")
	fs, err := NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatal("the root should be created lazily")
	}

	err = fs.Put("main.js", bytes.NewBufferString("console.log(1)"))
	if err != nil {
		t.Fatal(err)
	}

	err = fs.Put("utils/helper.js", bytes.NewBufferString("export {}"))
	if err != nil {
		t.Fatal(err)
	}

	fi, err := fs.Stat("main.js")
	if err != nil {
		t.Fatal(err)
	}

	if fi.Size() != 14 {
		t.Fatalf("invalid file size(%d), shoud be 14", fi.Size())
	}

	f, _, err := fs.Get("main.js")
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "console.log(1)" {
		t.Fatalf("invalid file content('%s'), shoud be 'console.log(1)'", string(data))
	}

	keys, err := fs.List("")
	if err != nil {
		t.Fatal(err)
	}

	if len(keys) != 2 || keys[0] != "main.js" || keys[1] != "utils/helper.js" {
		t.Fatalf("invalid keys %v", keys)
	}

	keys, err = fs.List("utils/")
	if err != nil {
		t.Fatal(err)
	}

	if len(keys) != 1 || keys[0] != "utils/helper.js" {
		t.Fatalf("invalid keys %v", keys)
	}

	if _, err := fs.Stat("utils"); err != ErrNotFound {
		t.Fatal("directories are not stored files")
	}

	err = fs.Delete("main.js")
	if err != nil {
		t.Fatal(err)
	}

	_, err = fs.Stat("main.js")
	if err != ErrNotFound {
		t.Fatalf("File should be not existent")
	}

	_, _, err = fs.Get("main.js")
	if err != ErrNotFound {
		t.Fatalf("File should be not existent")
	}

	if err := fs.Delete("main.js"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	if err := fs.Put("../escape.js", bytes.NewBufferString("")); err == nil {
		t.Fatal("keys must stay within the root")
	}
}
