// Package storage persists the task document and the app settings.
//
// Two backends exist: FileStore keeps todos.json and settings.json on disk, KVStore
// keeps the same JSON documents as rows of a SQLite key-value table. Both treat a
// missing task document as an empty collection and rewrite the whole document on
// every save.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/harrisonrobin/quadra/pkg/config"
	"github.com/harrisonrobin/quadra/pkg/model"
)

// Store loads and saves the task document and the settings document.
type Store interface {
	Load(ctx context.Context) (*model.Collection, error)
	// Save stamps LastModified on c and rewrites the whole document.
	Save(ctx context.Context, c *model.Collection) error
	LoadSettings(ctx context.Context) (*config.Settings, error)
	SaveSettings(ctx context.Context, s *config.Settings) error
	// Path is where the task document lives.
	Path() string
	Close() error
}

// Error is a local I/O or parse failure.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStorageError reports whether err came from a Store.
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// Transient reports whether err is a storage failure worth retrying.
// Malformed documents will not parse any better on a second attempt.
func Transient(err error) bool {
	return IsStorageError(err) && !errors.Is(err, model.ErrMalformed) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Factory opens a Store rooted at dir.
type Factory func(dir string) (Store, error)

var backends = map[string]Factory{
	config.BackendFile: func(dir string) (Store, error) {
		return NewFileStore(dir), nil
	},
	config.BackendSQLite: func(dir string) (Store, error) {
		return NewKVStore(KVPath(dir))
	},
}

// Backends lists the registered backend names.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the Store selected by cfg.Storage.
func Open(cfg *config.Config) (Store, error) {
	factory, ok := backends[cfg.Storage.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend %q (available: %v)", cfg.Storage.Backend, Backends())
	}
	return factory(cfg.Storage.Dir)
}
