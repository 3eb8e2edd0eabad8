package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/harrisonrobin/quadra/pkg/config"
	"github.com/harrisonrobin/quadra/pkg/model"
)

const (
	KVFile = "quadra.db"

	keyTodos    = "todos"
	keySettings = "settings"
)

// document is one row of the key-value table.
type document struct {
	Name      string `gorm:"primaryKey"`
	Body      string
	UpdatedAt time.Time
}

func (document) TableName() string { return "documents" }

// KVPath returns the SQLite file used by KVStore inside dir.
func KVPath(dir string) string {
	return filepath.Join(dir, KVFile)
}

// KVStore keeps the JSON documents in a SQLite key-value table.
type KVStore struct {
	db   *gorm.DB
	path string
	now  func() time.Time
}

// NewKVStore opens (and migrates) the SQLite database at path.
func NewKVStore(path string) (*KVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create db dir %q: %w", filepath.Dir(path), err)
	}

	dbLogger := logger.New(
		log.New(os.Stderr, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &KVStore{db: db, path: path, now: time.Now}, nil
}

func (s *KVStore) Path() string { return s.path }

func (s *KVStore) get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc document
	err := s.db.WithContext(ctx).First(&doc, "name = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(doc.Body), true, nil
}

func (s *KVStore) put(ctx context.Context, key string, body []byte) error {
	doc := document{Name: key, Body: string(body), UpdatedAt: s.now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&doc).Error
}

func (s *KVStore) Load(ctx context.Context) (*model.Collection, error) {
	data, ok, err := s.get(ctx, keyTodos)
	if err != nil {
		return nil, &Error{Op: "load", Path: s.path, Err: err}
	}
	if !ok {
		return model.NewCollection(), nil
	}
	c, err := model.ParseCollection(data)
	if err != nil {
		return nil, &Error{Op: "load", Path: s.path, Err: err}
	}
	return c, nil
}

func (s *KVStore) Save(ctx context.Context, c *model.Collection) error {
	c.Touch(s.now())
	data, err := model.MarshalCollection(c)
	if err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	if err := s.put(ctx, keyTodos, data); err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

func (s *KVStore) LoadSettings(ctx context.Context) (*config.Settings, error) {
	data, ok, err := s.get(ctx, keySettings)
	if err != nil {
		return nil, &Error{Op: "load settings", Path: s.path, Err: err}
	}
	if !ok {
		return config.DefaultSettings(), nil
	}
	settings, err := config.ParseSettings(data)
	if err != nil {
		log.Printf("Warning: stored settings are unreadable, using defaults: %v", err)
	}
	return settings, nil
}

func (s *KVStore) SaveSettings(ctx context.Context, settings *config.Settings) error {
	data, err := config.MarshalSettings(settings)
	if err != nil {
		return &Error{Op: "save settings", Path: s.path, Err: err}
	}
	if err := s.put(ctx, keySettings, data); err != nil {
		return &Error{Op: "save settings", Path: s.path, Err: err}
	}
	return nil
}

func (s *KVStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
