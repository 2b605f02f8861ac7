// Package storage persists content items and human-override actions as an
// append-only event log. "Updating" an item means appending a superseding
// record with the same id; readers project current state with Reduce.
package storage

import (
	"context"

	"github.com/railguard/railguard/models"
)

type Storage interface {
	SaveContent(ctx context.Context, item *models.ContentItem) error
	SaveAction(ctx context.Context, action *models.HumanAction) error
	LoadAllContent(ctx context.Context) ([]models.ContentItem, error)
	LoadAllActions(ctx context.Context) ([]models.HumanAction, error)
}

// ReconcileMode selects how Reduce folds multiple records per content id.
type ReconcileMode int

const (
	// ReconcileLatestWins keeps only the newest record per id.
	ReconcileLatestWins ReconcileMode = iota
	// ReconcileMarkSuperseded keeps every record, tagging all but the newest
	// with metadata["superseded"] = "true" so audit views can show history.
	ReconcileMarkSuperseded
)

// Reduce projects "current state" from the append-only content log. Records
// share an id when a human override appended a superseding snapshot; within
// an id, the record with the greatest timestamp wins (ties: last appended).
func Reduce(items []models.ContentItem, mode ReconcileMode) []models.ContentItem {
	latest := make(map[string]int, len(items))
	for i, item := range items {
		prev, ok := latest[item.ID]
		if !ok || items[prev].Timestamp <= item.Timestamp {
			latest[item.ID] = i
		}
	}

	out := make([]models.ContentItem, 0, len(latest))
	switch mode {
	case ReconcileMarkSuperseded:
		for i, item := range items {
			if latest[item.ID] != i {
				if item.Metadata == nil {
					item.Metadata = make(map[string]string)
				}
				item.Metadata["superseded"] = "true"
			}
			out = append(out, item)
		}
	default:
		for i, item := range items {
			if latest[item.ID] == i {
				out = append(out, item)
			}
		}
	}
	return out
}
