package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/harrisonrobin/quadra/pkg/config"
	"github.com/harrisonrobin/quadra/pkg/model"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	kv, err := NewKVStore(KVPath(t.TempDir()))
	if err != nil {
		t.Fatalf("NewKVStore failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested")),
		"sqlite": kv,
	}
}

func sampleCollection() *model.Collection {
	c := model.NewCollection()
	c.Todos = []model.Task{
		{ID: "a", Title: "Write report", Quadrant: model.UrgentImportant, Order: 0, CreatedAt: 1, UpdatedAt: 2},
		{ID: "b", Title: "Plan trip", Description: "Summer", Quadrant: model.NotUrgentImportant, Order: 3, CreatedAt: 3, UpdatedAt: 4},
	}
	return c
}

func TestLoadMissingDocumentIsEmpty(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			c, err := store.Load(context.Background())
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(c.Todos) != 0 || c.Version != model.DocumentVersion {
				t.Errorf("Expected empty collection, got %+v", c)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Save(ctx, sampleCollection()); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			first, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			stamp := first.LastModified

			if err := store.Save(ctx, first); err != nil {
				t.Fatalf("second Save failed: %v", err)
			}
			second, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("second Load failed: %v", err)
			}
			if !reflect.DeepEqual(second.Todos, sampleCollection().Todos) {
				t.Errorf("Tasks changed across round trip:\n got %+v\nwant %+v", second.Todos, sampleCollection().Todos)
			}
			if second.Version != model.DocumentVersion {
				t.Errorf("Expected version %s, got %s", model.DocumentVersion, second.Version)
			}
			if !second.LastModified.After(stamp) {
				t.Errorf("Expected lastModified to advance past %v, got %v", stamp, second.LastModified)
			}
		})
	}
}

func TestSettingsDefaultsAndSave(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			s, err := store.LoadSettings(ctx)
			if err != nil {
				t.Fatalf("LoadSettings failed: %v", err)
			}
			if !s.ShowFloatingIcon || s.GitHubSync == nil || s.GitHubSync.Enabled {
				t.Errorf("Expected defaults, got %+v", s)
			}

			s.GitHubSync = &config.SyncConfig{Enabled: true, Repo: "me/todos", Token: "tok"}
			if err := store.SaveSettings(ctx, s); err != nil {
				t.Fatalf("SaveSettings failed: %v", err)
			}
			got, err := store.LoadSettings(ctx)
			if err != nil {
				t.Fatalf("LoadSettings failed: %v", err)
			}
			if !got.GitHubSync.Ready() {
				t.Errorf("Expected saved sync config, got %+v", got.GitHubSync)
			}
		})
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	if err := os.WriteFile(store.Path(), []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load(context.Background())
	if !IsStorageError(err) || !errors.Is(err, model.ErrMalformed) {
		t.Fatalf("Expected malformed storage error, got %v", err)
	}
	if Transient(err) {
		t.Error("Malformed documents must not be retried")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	moved := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), TasksFile+".corrupt-") {
			moved = true
		}
	}
	if !moved {
		t.Error("Expected corrupt document to be moved aside")
	}

	c, err := store.Load(context.Background())
	if err != nil || len(c.Todos) != 0 {
		t.Errorf("Expected empty collection after quarantine, got %+v (%v)", c, err)
	}
}

func TestFileStoreSaveFailureIsStorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	// A regular file where the directory should be makes MkdirAll fail.
	store := NewFileStore(filepath.Join(blocker, "sub"))

	err := store.Save(context.Background(), sampleCollection())
	if !IsStorageError(err) {
		t.Fatalf("Expected storage error, got %v", err)
	}
	if !Transient(err) {
		t.Error("I/O failures should be retryable")
	}
}

func TestFileStoreCorruptSettingsUseDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SettingsFile), []byte("nope"), 0600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(dir).LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if !s.ShowFloatingIcon {
		t.Errorf("Expected default settings, got %+v", s)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()

	cfg.Storage.Backend = config.BackendFile
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Errorf("Expected *FileStore, got %T", store)
	}

	cfg.Storage.Backend = config.BackendSQLite
	store, err = Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()
	if store.Path() != KVPath(cfg.Storage.Dir) {
		t.Errorf("Unexpected path %s", store.Path())
	}

	cfg.Storage.Backend = "cloud"
	if _, err := Open(cfg); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
