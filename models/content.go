package models

import (
	"encoding/json"
	"time"
)

// Content type values for ContentItem.ContentType.
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
	ContentTypeBoth  = "both"
)

// Automated decision actions.
const (
	ActionAllow  = "allow"
	ActionBlock  = "block"
	ActionReview = "review"
)

// AIDetection holds the output of an AI-generated-text detector for one item.
type AIDetection struct {
	Model      string  `json:"model,omitempty"`
	AIScore    float64 `json:"ai_score"`
	Label      string  `json:"label,omitempty"` // "ai_generated" or "human"
	Confidence float64 `json:"confidence"`
}

// ModerationLabels are policy-violation scores in [0,1]. The named slots are
// the labels the rule DSL can always resolve; anything else a detector
// returns lands in AdditionalLabels.
type ModerationLabels struct {
	Sexual           float64            `json:"sexual"`
	Violence         float64            `json:"violence"`
	Hate             float64            `json:"hate"`
	Drugs            float64            `json:"drugs"`
	Harassment       float64            `json:"harassment"`
	SelfHarm         float64            `json:"self_harm"`
	Illicit          float64            `json:"illicit"`
	AdditionalLabels map[string]float64 `json:"additional_labels,omitempty"`
}

type ModerationResult struct {
	Provider string           `json:"provider,omitempty"`
	Labels   ModerationLabels `json:"labels"`
}

// Decision is stamped exactly once per processing pass. The human_* fields
// are only ever set on superseding snapshots appended by a human override.
type Decision struct {
	AutoAction           string `json:"auto_action"`
	RuleID               string `json:"rule_id,omitempty"`
	ThresholdTriggered   bool   `json:"threshold_triggered"`
	HumanDecision        string `json:"human_decision,omitempty"`
	HumanReviewer        string `json:"human_reviewer,omitempty"`
	HumanNotes           string `json:"human_notes,omitempty"`
	HumanReviewTimestamp int64  `json:"human_review_timestamp,omitempty"`
}

// ContentItem is the unit of work flowing through the pipeline: constructed
// by the scraper (or a front-end request), stamped once by the moderation
// engine, then appended immutably to storage.
type ContentItem struct {
	ID            string            `json:"id"`
	Timestamp     string            `json:"timestamp"` // RFC3339
	Source        string            `json:"source"`    // eg "reddit", "reddit_comment", "api"
	Subreddit     string            `json:"subreddit,omitempty"`
	Author        string            `json:"author,omitempty"`
	ContentType   string            `json:"content_type"`
	Text          string            `json:"text,omitempty"`
	ImagePath     string            `json:"image_path,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	AIDetection   AIDetection       `json:"ai_detection"`
	Moderation    ModerationResult  `json:"moderation"`
	Decision      Decision          `json:"decision"`
	SchemaVersion int               `json:"schema_version"`
}

// NewContentItem returns an item with the timestamp set to now and the
// current schema version.
func NewContentItem(source, contentType string) ContentItem {
	return ContentItem{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Source:        source,
		ContentType:   contentType,
		SchemaVersion: 1,
	}
}

// HasText reports whether the item carries text content to classify.
func (c *ContentItem) HasText() bool {
	return (c.ContentType == ContentTypeText || c.ContentType == ContentTypeBoth) && c.Text != ""
}

// HasImage reports whether the item carries image content to classify.
func (c *ContentItem) HasImage() bool {
	return (c.ContentType == ContentTypeImage || c.ContentType == ContentTypeBoth) && c.ImagePath != ""
}

func (c *ContentItem) MarshalJSONL() ([]byte, error) {
	return json.Marshal(c)
}

func ContentItemFromJSON(data []byte) (ContentItem, error) {
	var item ContentItem
	err := json.Unmarshal(data, &item)
	return item, err
}
