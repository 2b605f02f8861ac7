package cachestore

import (
	"context"
)

// ResultCache maps a content hash (SHA-256 hex of raw bytes) to a previously
// computed classification result. Write-once: a Put for an existing hash is a
// no-op, so the first classification always wins and is never refreshed.
type ResultCache interface {
	Get(ctx context.Context, hash string) (string, bool)
	Put(ctx context.Context, hash, result string) error
}
