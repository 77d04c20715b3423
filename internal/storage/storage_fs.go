package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ije/gox/utils"
)

// NewFS creates a storage that keeps the files under the root directory.
// The root is created by the first Put.
func NewFS(root string) (Storage, error) {
	if root == "" {
		return nil, errors.New("root is required")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &fsStorage{root: root}, nil
}

type fsStorage struct {
	root string
}

// safeJoinPath joins the key to the root and checks that the result stays
// within the root.
func (fs *fsStorage) safeJoinPath(key string) (string, error) {
	absPath := filepath.Join(fs.root, filepath.FromSlash(key))
	if !strings.HasPrefix(absPath, fs.root+string(os.PathSeparator)) && absPath != fs.root {
		return "", errors.New("invalid file path")
	}
	return absPath, nil
}

func (fs *fsStorage) Stat(key string) (Stat, error) {
	filename, err := fs.safeJoinPath(key)
	if err != nil {
		return nil, ErrNotFound
	}
	fi, err := os.Lstat(filename)
	if err != nil {
		if os.IsNotExist(err) || strings.HasSuffix(err.Error(), "not a directory") {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if fi.IsDir() {
		return nil, ErrNotFound
	}
	return fi, nil
}

func (fs *fsStorage) Get(key string) (io.ReadCloser, Stat, error) {
	filename, err := fs.safeJoinPath(key)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) || strings.HasSuffix(err.Error(), "not a directory") {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return file, stat, nil
}

// List returns the keys under the prefix, a directory key ending with `/`
// or empty for all keys.
func (fs *fsStorage) List(prefix string) ([]string, error) {
	dir := strings.TrimSuffix(utils.CleanPath(prefix)[1:], "/")
	absDir, err := fs.safeJoinPath(dir)
	if err != nil {
		return nil, err
	}
	return findFiles(absDir, dir)
}

// Put writes the content to a temporary file renamed over the key, so that
// readers never see a partial file.
func (fs *fsStorage) Put(key string, content io.Reader) error {
	filename, err := fs.safeJoinPath(key)
	if err != nil || filename == fs.root {
		return errors.New("invalid file path")
	}
	dir := filepath.Dir(filename)
	if err := ensureDir(dir); err != nil {
		return err
	}

	file, err := os.CreateTemp(dir, ".versa-*")
	if err != nil {
		return err
	}
	_, err = io.Copy(file, content)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(file.Name(), 0644)
	}
	if err == nil {
		err = os.Rename(file.Name(), filename)
	}
	if err != nil {
		os.Remove(file.Name()) // clean up if error occurs
		return err
	}
	return nil
}

func (fs *fsStorage) Delete(key string) error {
	filename, err := fs.safeJoinPath(key)
	if err != nil {
		return ErrNotFound
	}
	err = os.Remove(filename)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// ensureDir ensures the given directory exists.
func ensureDir(dir string) error {
	_, err := os.Lstat(dir)
	if err != nil && os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// findFiles returns a list of files in the given directory.
func findFiles(root string, parentDir string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		path := name
		if parentDir != "" {
			path = parentDir + "/" + name
		}
		if entry.IsDir() {
			subFiles, err := findFiles(filepath.Join(root, name), path)
			if err != nil {
				return nil, err
			}
			files = append(files, subFiles...)
		} else if !strings.HasPrefix(name, ".versa-") {
			files = append(files, path)
		}
	}
	return files, nil
}
