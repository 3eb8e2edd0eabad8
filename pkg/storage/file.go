package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/harrisonrobin/quadra/pkg/config"
	"github.com/harrisonrobin/quadra/pkg/model"
)

const (
	TasksFile    = "todos.json"
	SettingsFile = "settings.json"
)

// FileStore keeps the documents as JSON files in one directory.
type FileStore struct {
	dir string
	now func() time.Time
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

func (s *FileStore) Path() string {
	return filepath.Join(s.dir, TasksFile)
}

func (s *FileStore) settingsPath() string {
	return filepath.Join(s.dir, SettingsFile)
}

func (s *FileStore) Load(ctx context.Context) (*model.Collection, error) {
	path := s.Path()
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "load", Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewCollection(), nil
		}
		return nil, &Error{Op: "load", Path: path, Err: err}
	}

	c, err := model.ParseCollection(data)
	if err != nil {
		s.quarantine(path)
		return nil, &Error{Op: "load", Path: path, Err: err}
	}
	return c, nil
}

// quarantine moves an unreadable document aside so the next save cannot overwrite it.
func (s *FileStore) quarantine(path string) {
	aside := fmt.Sprintf("%s.corrupt-%d", path, s.now().UnixMilli())
	if err := os.Rename(path, aside); err != nil {
		log.Printf("Warning: could not move corrupt task document %s aside: %v", path, err)
		return
	}
	log.Printf("Warning: task document %s was unreadable and has been moved to %s", path, aside)
}

func (s *FileStore) Save(ctx context.Context, c *model.Collection) error {
	path := s.Path()
	if err := ctx.Err(); err != nil {
		return &Error{Op: "save", Path: path, Err: err}
	}

	c.Touch(s.now())
	data, err := model.MarshalCollection(c)
	if err != nil {
		return &Error{Op: "save", Path: path, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &Error{Op: "save", Path: path, Err: err}
	}
	return nil
}

func (s *FileStore) LoadSettings(ctx context.Context) (*config.Settings, error) {
	path := s.settingsPath()
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "load settings", Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config.DefaultSettings(), nil
		}
		return nil, &Error{Op: "load settings", Path: path, Err: err}
	}

	settings, err := config.ParseSettings(data)
	if err != nil {
		log.Printf("Warning: %s is unreadable, using default settings: %v", path, err)
	}
	return settings, nil
}

func (s *FileStore) SaveSettings(ctx context.Context, settings *config.Settings) error {
	path := s.settingsPath()
	if err := ctx.Err(); err != nil {
		return &Error{Op: "save settings", Path: path, Err: err}
	}

	data, err := config.MarshalSettings(settings)
	if err != nil {
		return &Error{Op: "save settings", Path: path, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &Error{Op: "save settings", Path: path, Err: err}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// writeAtomic writes data to a temp file next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Printf("Warning: could not remove %s: %v", tmpPath, rmErr)
		}
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
