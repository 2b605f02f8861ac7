package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/railguard/railguard/models"
)

// gorm row types; the full documents ride along as JSON so schema evolution
// never requires a column migration.

type contentRecord struct {
	Seq       uint   `gorm:"primarykey"`
	ContentID string `gorm:"index"`
	Timestamp string
	Source    string
	Doc       []byte
	CreatedAt time.Time
}

type actionRecord struct {
	Seq       uint   `gorm:"primarykey"`
	ActionID  string `gorm:"index"`
	ContentID string `gorm:"index"`
	Doc       []byte
	CreatedAt time.Time
}

// GormStorage is the database-backed event log: rows are only ever inserted,
// never updated, preserving the same append-only semantics as JsonlStorage.
type GormStorage struct {
	db *gorm.DB
}

var _ Storage = (*GormStorage)(nil)

// NewGormStorage opens a sqlite:// or postgres(ql):// DATABASE_URL style
// connection and migrates the event tables.
func NewGormStorage(dbURL string) (*GormStorage, error) {
	var dial gorm.Dialector
	switch {
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := dbURL[len("sqlite://"):]
		if !strings.Contains(path, ":memory:") {
			os.MkdirAll(filepath.Dir(path), os.ModePerm)
		}
		dial = sqlite.Open(path)
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		dial = postgres.Open(dbURL)
	default:
		return nil, fmt.Errorf("unsupported or unrecognized database URL: %s", dbURL)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: slogGorm.New(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&contentRecord{}, &actionRecord{}); err != nil {
		return nil, fmt.Errorf("migrating event tables: %w", err)
	}
	return &GormStorage{db: db}, nil
}

func (s *GormStorage) SaveContent(ctx context.Context, item *models.ContentItem) error {
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding content item: %w", err)
	}
	rec := contentRecord{
		ContentID: item.ID,
		Timestamp: item.Timestamp,
		Source:    item.Source,
		Doc:       doc,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *GormStorage) SaveAction(ctx context.Context, action *models.HumanAction) error {
	doc, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("encoding human action: %w", err)
	}
	rec := actionRecord{
		ActionID:  action.ActionID,
		ContentID: action.ContentID,
		Doc:       doc,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *GormStorage) LoadAllContent(ctx context.Context) ([]models.ContentItem, error) {
	var recs []contentRecord
	if err := s.db.WithContext(ctx).Order("seq").Find(&recs).Error; err != nil {
		return nil, err
	}
	items := make([]models.ContentItem, 0, len(recs))
	for _, rec := range recs {
		item, err := models.ContentItemFromJSON(rec.Doc)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *GormStorage) LoadAllActions(ctx context.Context) ([]models.HumanAction, error) {
	var recs []actionRecord
	if err := s.db.WithContext(ctx).Order("seq").Find(&recs).Error; err != nil {
		return nil, err
	}
	actions := make([]models.HumanAction, 0, len(recs))
	for _, rec := range recs {
		action, err := models.HumanActionFromJSON(rec.Doc)
		if err != nil {
			continue
		}
		actions = append(actions, action)
	}
	return actions, nil
}
