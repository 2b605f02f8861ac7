package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentItemRoundTrip(t *testing.T) {
	assert := assert.New(t)

	item := NewContentItem("reddit", ContentTypeText)
	item.ID = "t3_abc123"
	item.Subreddit = "golang"
	item.Author = "someone"
	item.Text = "some post text"
	item.Metadata = map[string]string{"permalink": "/r/golang/abc123"}
	item.AIDetection = AIDetection{
		Model:      "desklib/ai-text-detector-v1.01",
		AIScore:    0.93,
		Label:      "ai_generated",
		Confidence: 0.93,
	}
	item.Moderation = ModerationResult{
		Provider: "hive",
		Labels: ModerationLabels{
			Sexual:           0.01,
			Violence:         0.2,
			Hate:             0.05,
			Drugs:            0.8,
			AdditionalLabels: map[string]float64{"spam": 0.4},
		},
	}
	item.Decision = Decision{
		AutoAction:         ActionBlock,
		RuleID:             "rule-drugs",
		ThresholdTriggered: true,
	}

	raw, err := json.Marshal(&item)
	assert.NoError(err)

	back, err := ContentItemFromJSON(raw)
	assert.NoError(err)
	assert.Equal(item.ID, back.ID)
	assert.Equal(item.Decision.AutoAction, back.Decision.AutoAction)
	assert.Equal(item.Moderation.Labels.Sexual, back.Moderation.Labels.Sexual)
	assert.Equal(item.Moderation.Labels.Violence, back.Moderation.Labels.Violence)
	assert.Equal(item.Moderation.Labels.Hate, back.Moderation.Labels.Hate)
	assert.Equal(item.Moderation.Labels.Drugs, back.Moderation.Labels.Drugs)
	assert.Equal(item.Moderation.Labels.AdditionalLabels["spam"], back.Moderation.Labels.AdditionalLabels["spam"])

	// serialize/parse is idempotent
	raw2, err := json.Marshal(&back)
	assert.NoError(err)
	assert.JSONEq(string(raw), string(raw2))
}

func TestContentTypeHelpers(t *testing.T) {
	assert := assert.New(t)

	item := NewContentItem("api", ContentTypeText)
	assert.False(item.HasText())
	item.Text = "hello"
	assert.True(item.HasText())
	assert.False(item.HasImage())

	both := NewContentItem("reddit", ContentTypeBoth)
	both.Text = "caption"
	both.ImagePath = "/tmp/img.jpg"
	assert.True(both.HasText())
	assert.True(both.HasImage())
}

func TestNewHumanAction(t *testing.T) {
	assert := assert.New(t)

	a := NewHumanAction("t3_abc", "mod1", "block", "allow", "false positive")
	assert.NotEmpty(a.ActionID)
	assert.Equal("t3_abc", a.ContentID)
	assert.Equal(1, a.SchemaVersion)

	b := NewHumanAction("t3_abc", "mod1", "block", "allow", "false positive")
	assert.NotEqual(a.ActionID, b.ActionID)
}
