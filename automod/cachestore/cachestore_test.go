package cachestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstWriteWins(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewFileCacheStore(filepath.Join(t.TempDir(), "cache.jsonl"), nil)

	assert.NoError(s.Put(ctx, "h1", "result-one"))
	assert.NoError(s.Put(ctx, "h1", "result-two"))

	v, ok := s.Get(ctx, "h1")
	assert.True(ok)
	assert.Equal("result-one", v)
	assert.Equal(1, s.Size())
}

func TestGetMiss(t *testing.T) {
	assert := assert.New(t)

	s := NewFileCacheStore(filepath.Join(t.TempDir(), "cache.jsonl"), nil)
	_, ok := s.Get(context.Background(), "missing")
	assert.False(ok)
}

func TestReplayAcrossRestart(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.jsonl")

	first := NewFileCacheStore(path, nil)
	assert.NoError(first.Put(ctx, "aaa", `{"sexual":0.9}`))
	assert.NoError(first.Put(ctx, "bbb", `{"violence":0.2}`))

	second := NewFileCacheStore(path, nil)
	v, ok := second.Get(ctx, "aaa")
	assert.True(ok)
	assert.Equal(`{"sexual":0.9}`, v)
	v, ok = second.Get(ctx, "bbb")
	assert.True(ok)
	assert.Equal(`{"violence":0.2}`, v)
}

func TestReplaySkipsCorruptLines(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "cache.jsonl")

	log := `{"hash":"good1","result":"r1","timestamp":1700000000}
this line is not json
{"result":"no hash field","timestamp":1700000001}
{"hash":"good2","result":"r2","timestamp":1700000002}
`
	require.NoError(os.WriteFile(path, []byte(log), 0o644))

	s := NewFileCacheStore(path, nil)
	assert.Equal(2, s.Size())
	v, ok := s.Get(context.Background(), "good1")
	assert.True(ok)
	assert.Equal("r1", v)
	v, ok = s.Get(context.Background(), "good2")
	assert.True(ok)
	assert.Equal("r2", v)
}

func TestPutDoesNotReappendExisting(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.jsonl")

	s := NewFileCacheStore(path, nil)
	require.NoError(s.Put(ctx, "h1", "r1"))
	require.NoError(s.Put(ctx, "h1", "r1"))
	require.NoError(s.Put(ctx, "h1", "other"))

	data, err := os.ReadFile(path)
	require.NoError(err)
	assert.Equal(1, len(splitNonEmptyLines(data)))
}

func splitNonEmptyLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
