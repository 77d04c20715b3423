package storage

import (
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned for keys that are not stored.
var ErrNotFound = errors.New("storage: not found")

// Stat describes a stored file.
type Stat interface {
	Size() int64
	ModTime() time.Time
}

// Storage stores the built files by key, a slash separated path relative to
// the storage root.
type Storage interface {
	Stat(key string) (Stat, error)
	Get(key string) (io.ReadCloser, Stat, error)
	List(prefix string) ([]string, error)
	Put(key string, content io.Reader) error
	Delete(key string) error
}
