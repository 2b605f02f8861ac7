package cachestore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// one JSON object per line in the cache log
type logEntry struct {
	Hash      string `json:"hash"`
	Result    string `json:"result"`
	Timestamp int64  `json:"timestamp"`
}

// FileCacheStore keeps the whole cache in memory and persists it as an
// append-only JSONL log. Construction replays the log; corrupt lines are
// skipped with a warning rather than invalidating the rest of the file.
type FileCacheStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
	logger  *slog.Logger
}

var _ ResultCache = (*FileCacheStore)(nil)

func NewFileCacheStore(path string, logger *slog.Logger) *FileCacheStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileCacheStore{
		path:    path,
		entries: make(map[string]string),
		logger:  logger.With("subsystem", "cachestore"),
	}
	s.replay()
	return s
}

func (s *FileCacheStore) replay() {
	f, err := os.Open(s.path)
	if err != nil {
		// a missing log just means an empty cache
		return
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
		var entry logEntry
		if err := json.Unmarshal(line, &entry); err != nil || entry.Hash == "" {
			s.logger.Warn("skipping corrupt cache log line", "path", s.path, "line", lineNo)
			continue
		}
		if _, ok := s.entries[entry.Hash]; ok {
			continue
		}
		s.entries[entry.Hash] = entry.Result
	}
	s.logger.Info("replayed result cache log", "path", s.path, "entries", len(s.entries))
}

func (s *FileCacheStore) Get(ctx context.Context, hash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[hash]
	return v, ok
}

// Put records the result for hash, appending it to the log. Idempotent by
// hash: an existing entry is left untouched and nothing is re-appended.
func (s *FileCacheStore) Put(ctx context.Context, hash, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[hash]; ok {
		return nil
	}
	s.entries[hash] = result

	if err := s.append(logEntry{Hash: hash, Result: result, Timestamp: time.Now().Unix()}); err != nil {
		// the in-memory entry stands; only persistence failed
		s.logger.Error("failed to append cache log entry", "path", s.path, "err", err)
		return err
	}
	return nil
}

func (s *FileCacheStore) append(entry logEntry) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening cache log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending cache log: %w", err)
	}
	return nil
}

// Size returns the number of cached results.
func (s *FileCacheStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
