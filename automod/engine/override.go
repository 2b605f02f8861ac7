package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/railguard/railguard/models"
)

// ApplyHumanOverride records a manual review decision: it appends a
// HumanAction audit record and a superseding content snapshot carrying the
// human decision. The original records are never touched; readers reconcile
// by id and timestamp (storage.Reduce).
func (eng *Engine) ApplyHumanOverride(ctx context.Context, item models.ContentItem, reviewer, newStatus, reason, notes string) (models.HumanAction, error) {
	previous := item.Decision.AutoAction
	if item.Decision.HumanDecision != "" {
		previous = item.Decision.HumanDecision
	}

	action := models.NewHumanAction(item.ID, reviewer, previous, newStatus, reason)
	action.Notes = notes

	if err := eng.Store.SaveAction(ctx, &action); err != nil {
		return action, fmt.Errorf("persisting human action: %w", err)
	}

	now := time.Now().UTC()
	item.Timestamp = now.Format(time.RFC3339)
	item.Decision.HumanDecision = newStatus
	item.Decision.HumanReviewer = reviewer
	item.Decision.HumanNotes = notes
	item.Decision.HumanReviewTimestamp = now.Unix()

	if err := eng.Store.SaveContent(ctx, &item); err != nil {
		return action, fmt.Errorf("persisting superseding snapshot: %w", err)
	}

	overrideCount.WithLabelValues(newStatus).Inc()
	eng.Logger.Info("recorded human override", "id", item.ID, "reviewer", reviewer,
		"previous", previous, "new", newStatus)
	return action, nil
}
