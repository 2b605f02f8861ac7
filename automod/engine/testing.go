package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/railguard/railguard/automod/cachestore"
	"github.com/railguard/railguard/automod/countstore"
	"github.com/railguard/railguard/automod/rules"
	"github.com/railguard/railguard/detectors"
	"github.com/railguard/railguard/models"
)

// MemStorage is an in-memory Storage for engine tests.
type MemStorage struct {
	mu        sync.Mutex
	Content   []models.ContentItem
	Actions   []models.HumanAction
	FailSaves bool
}

func (m *MemStorage) SaveContent(ctx context.Context, item *models.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return os.ErrPermission
	}
	m.Content = append(m.Content, *item)
	return nil
}

func (m *MemStorage) SaveAction(ctx context.Context, action *models.HumanAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return os.ErrPermission
	}
	m.Actions = append(m.Actions, *action)
	return nil
}

func (m *MemStorage) LoadAllContent(ctx context.Context) ([]models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ContentItem, len(m.Content))
	copy(out, m.Content)
	return out, nil
}

func (m *MemStorage) LoadAllActions(ctx context.Context) ([]models.HumanAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.HumanAction, len(m.Actions))
	copy(out, m.Actions)
	return out, nil
}

// EngineTestFixture returns an engine wired with disabled detectors, an
// empty rule set, memory-backed stores, and a throwaway cache log.
func EngineTestFixture(dir string) (*Engine, *MemStorage) {
	store := &MemStorage{}
	eng := &Engine{
		Logger:      slog.Default(),
		TextAI:      detectors.DisabledTextAIDetector{},
		TextPolicy:  detectors.DisabledTextPolicyModerator{},
		ImagePolicy: detectors.DisabledImagePolicyModerator{},
		Rules:       rules.NewEngine(nil),
		Cache:       cachestore.NewFileCacheStore(filepath.Join(dir, "cache.jsonl"), nil),
		Counters:    countstore.NewMemCountStore(),
		Store:       store,
	}
	return eng, store
}
