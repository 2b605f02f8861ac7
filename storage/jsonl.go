package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/railguard/railguard/models"
)

// JsonlStorage appends one JSON object per line to content.jsonl and
// actions.jsonl under a base directory. Appends are serialized per file so
// concurrent writers never interleave partial lines.
type JsonlStorage struct {
	basePath    string
	contentFile string
	actionFile  string

	contentMu sync.Mutex
	actionMu  sync.Mutex

	logger *slog.Logger
}

var _ Storage = (*JsonlStorage)(nil)

func NewJsonlStorage(basePath string, logger *slog.Logger) (*JsonlStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{basePath, filepath.Join(basePath, "images"), filepath.Join(basePath, "cache")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
		}
	}
	return &JsonlStorage{
		basePath:    basePath,
		contentFile: filepath.Join(basePath, "content.jsonl"),
		actionFile:  filepath.Join(basePath, "actions.jsonl"),
		logger:      logger.With("subsystem", "storage"),
	}, nil
}

// BasePath returns the storage root (images and the cache log live under it).
func (s *JsonlStorage) BasePath() string {
	return s.basePath
}

func (s *JsonlStorage) SaveContent(ctx context.Context, item *models.ContentItem) error {
	line, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding content item: %w", err)
	}
	s.contentMu.Lock()
	defer s.contentMu.Unlock()
	return appendLine(s.contentFile, line)
}

func (s *JsonlStorage) SaveAction(ctx context.Context, action *models.HumanAction) error {
	line, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("encoding human action: %w", err)
	}
	s.actionMu.Lock()
	defer s.actionMu.Unlock()
	return appendLine(s.actionFile, line)
}

func (s *JsonlStorage) LoadAllContent(ctx context.Context) ([]models.ContentItem, error) {
	var items []models.ContentItem
	err := s.readLines(s.contentFile, func(line []byte, lineNo int) {
		item, err := models.ContentItemFromJSON(line)
		if err != nil {
			s.logger.Warn("skipping corrupt line in content log", "line", lineNo, "err", err)
			return
		}
		items = append(items, item)
	})
	return items, err
}

func (s *JsonlStorage) LoadAllActions(ctx context.Context) ([]models.HumanAction, error) {
	var actions []models.HumanAction
	err := s.readLines(s.actionFile, func(line []byte, lineNo int) {
		action, err := models.HumanActionFromJSON(line)
		if err != nil {
			s.logger.Warn("skipping corrupt line in action log", "line", lineNo, "err", err)
			return
		}
		actions = append(actions, action)
	})
	return actions, err
}

func (s *JsonlStorage) readLines(path string, handle func(line []byte, lineNo int)) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		handle(line, lineNo)
	}
	return scanner.Err()
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s for append: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return nil
}
