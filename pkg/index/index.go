// Package index remembers the last remote version token seen for each synced file.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const indexFile = "remote.json"

type VersionIndex struct {
	Versions map[string]string `json:"versions"`
	Path     string            `json:"-"`
	mu       sync.RWMutex
	dirty    bool
}

// Key identifies a file inside a repository.
func Key(repo, path string) string {
	return repo + ":" + path
}

// NewVersionIndex opens the index stored in dir, starting empty when none exists.
func NewVersionIndex(dir string) (*VersionIndex, error) {
	idx := &VersionIndex{
		Versions: make(map[string]string),
		Path:     filepath.Join(dir, indexFile),
	}

	if _, err := os.Stat(idx.Path); err == nil {
		if err := idx.Load(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *VersionIndex) Load() error {
	f, err := os.Open(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := json.NewDecoder(f).Decode(&idx.Versions); err != nil {
		return err
	}
	if idx.Versions == nil {
		idx.Versions = make(map[string]string)
	}
	return nil
}

func (idx *VersionIndex) Save() error {
	idx.mu.RLock()
	if !idx.dirty || idx.Path == "" {
		idx.mu.RUnlock()
		return nil
	}
	idx.mu.RUnlock()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(idx.Path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(idx.Versions, "", "  ")
	if err != nil {
		return err
	}
	tmp := idx.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, idx.Path); err != nil {
		os.Remove(tmp)
		return err
	}
	idx.dirty = false
	return nil
}

func (idx *VersionIndex) Get(key string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Versions[key]
}

func (idx *VersionIndex) Set(key, version string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Versions[key] != version {
		idx.Versions[key] = version
		idx.dirty = true
	}
}

func (idx *VersionIndex) Remove(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.Versions[key]; exists {
		delete(idx.Versions, key)
		idx.dirty = true
	}
}
