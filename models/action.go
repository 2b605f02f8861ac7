package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HumanAction is an append-only audit record of a manual override. It never
// mutates a prior ContentItem record; readers reconcile by content_id.
type HumanAction struct {
	ActionID       string `json:"action_id"`
	ContentID      string `json:"content_id"`
	Timestamp      string `json:"timestamp"` // RFC3339
	Reviewer       string `json:"reviewer"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	Reason         string `json:"reason"`
	Notes          string `json:"notes,omitempty"`
	SchemaVersion  int    `json:"schema_version"`
}

// NewHumanAction stamps a fresh audit record with a generated action ID.
func NewHumanAction(contentID, reviewer, previousStatus, newStatus, reason string) HumanAction {
	return HumanAction{
		ActionID:       uuid.New().String(),
		ContentID:      contentID,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Reviewer:       reviewer,
		PreviousStatus: previousStatus,
		NewStatus:      newStatus,
		Reason:         reason,
		SchemaVersion:  1,
	}
}

func HumanActionFromJSON(data []byte) (HumanAction, error) {
	var action HumanAction
	err := json.Unmarshal(data, &action)
	return action, err
}
