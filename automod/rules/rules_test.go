package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railguard/railguard/models"
)

func itemWithAIScore(score float64) *models.ContentItem {
	item := models.NewContentItem("api", models.ContentTypeText)
	item.AIDetection.AIScore = score
	return &item
}

func TestRulePrecedence(t *testing.T) {
	assert := assert.New(t)

	eng := NewEngine(nil)
	eng.SetRules([]Rule{
		{ID: "r1", Condition: "ai_score > 0.9", Action: "block", Enabled: true},
		{ID: "r2", Condition: "ai_score > 0.5", Action: "review", Enabled: true},
	})

	assert.Equal("block", eng.Evaluate(itemWithAIScore(0.95)))
	assert.Equal("review", eng.Evaluate(itemWithAIScore(0.6)))
	assert.Equal("allow", eng.Evaluate(itemWithAIScore(0.1)))
}

func TestSubredditScope(t *testing.T) {
	assert := assert.New(t)

	eng := NewEngine(nil)
	eng.SetRules([]Rule{
		{ID: "r1", Condition: "ai_score > 0.1", Action: "block", Subreddit: "x", Enabled: true},
	})

	item := itemWithAIScore(0.99)
	item.Subreddit = "y"
	assert.Equal("allow", eng.Evaluate(item))
	assert.Empty(eng.GetMatchingRules(item))

	item.Subreddit = "x"
	assert.Equal("block", eng.Evaluate(item))
}

func TestDisabledRulesSkipped(t *testing.T) {
	assert := assert.New(t)

	eng := NewEngine(nil)
	eng.SetRules([]Rule{
		{ID: "r1", Condition: "ai_score > 0.1", Action: "block", Enabled: false},
	})
	assert.Equal("allow", eng.Evaluate(itemWithAIScore(0.99)))
}

func TestOperators(t *testing.T) {
	assert := assert.New(t)

	eng := NewEngine(nil)
	item := models.NewContentItem("api", models.ContentTypeText)
	item.Moderation.Labels.Drugs = 0.5

	cases := []struct {
		condition string
		matches   bool
	}{
		{"drugs > 0.4", true},
		{"drugs > 0.5", false},
		{"drugs >= 0.5", true},
		{"drugs < 0.6", true},
		{"drugs < 0.5", false},
		{"drugs <= 0.5", true},
		{"drugs == 0.5", true},
		{"drugs == 0.50009", true}, // within epsilon
		{"drugs == 0.51", false},
	}
	for _, tc := range cases {
		eng.SetRules([]Rule{{ID: "r", Condition: tc.condition, Action: "block", Enabled: true}})
		want := "allow"
		if tc.matches {
			want = "block"
		}
		assert.Equal(want, eng.Evaluate(&item), "condition %q", tc.condition)
	}
}

func TestAdditionalLabelLookup(t *testing.T) {
	assert := assert.New(t)

	eng := NewEngine(nil)
	eng.SetRules([]Rule{
		{ID: "r1", Condition: "spam > 0.7", Action: "review", Enabled: true},
	})

	item := models.NewContentItem("api", models.ContentTypeText)
	assert.Equal("allow", eng.Evaluate(&item)) // absent label defaults to 0

	item.Moderation.Labels.AdditionalLabels = map[string]float64{"spam": 0.8}
	assert.Equal("review", eng.Evaluate(&item))
}

// evaluate() and the head of getMatchingRules() must always agree
func TestEvaluateAgreesWithFirstMatch(t *testing.T) {
	assert := assert.New(t)

	eng := NewEngine(nil)
	eng.SetRules([]Rule{
		{ID: "r1", Condition: "ai_score > 0.9", Action: "block", Enabled: true},
		{ID: "r2", Condition: "drugs >= 0.5", Action: "review", Enabled: true},
		{ID: "r3", Condition: "hate > 0.3", Action: "block", Subreddit: "x", Enabled: true},
		{ID: "r4", Condition: "spam > 0.6", Action: "review", Enabled: false},
	})

	for _, ai := range []float64{0.0, 0.5, 0.91, 0.95} {
		for _, drugs := range []float64{0.0, 0.5, 0.9} {
			for _, hate := range []float64{0.0, 0.4} {
				for _, sub := range []string{"", "x", "y"} {
					item := models.NewContentItem("api", models.ContentTypeText)
					item.Subreddit = sub
					item.AIDetection.AIScore = ai
					item.Moderation.Labels.Drugs = drugs
					item.Moderation.Labels.Hate = hate

					matches := eng.GetMatchingRules(&item)
					action := eng.Evaluate(&item)
					if len(matches) == 0 {
						assert.Equal("allow", action)
					} else {
						assert.Equal(matches[0].Action, action,
							"ai=%v drugs=%v hate=%v sub=%q", ai, drugs, hate, sub)
					}
				}
			}
		}
	}
}

func TestLoadRulesJSON(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "rules.json")
	doc := `{"rules": [
		{"id": "r1", "name": "hi ai", "condition": "ai_score > 0.9", "action": "block", "subreddit": "", "enabled": true},
		{"id": "", "condition": "drugs > 0.5", "action": "block", "enabled": true},
		{"id": "r3", "condition": "", "action": "review", "enabled": true},
		{"id": "r4", "name": "drugs", "condition": "drugs > 0.5", "action": "review", "enabled": true}
	]}`
	require.NoError(os.WriteFile(path, []byte(doc), 0o644))

	eng := NewEngine(nil)
	require.NoError(eng.LoadRulesJSON(path))

	loaded := eng.Rules()
	require.Len(loaded, 2) // incomplete entries silently skipped
	assert.Equal("r1", loaded[0].ID)
	assert.Equal("r4", loaded[1].ID)
}

func TestLoadRulesJSONMissingFile(t *testing.T) {
	assert := assert.New(t)

	eng := NewEngine(nil)
	eng.AddRule(Rule{ID: "stale", Condition: "drugs > 0.1", Action: "block", Enabled: true})

	err := eng.LoadRulesJSON(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(err)
	// failed load leaves an empty set: everything defaults to allow
	assert.Empty(eng.Rules())
	assert.Equal("allow", eng.Evaluate(itemWithAIScore(0.99)))
}

func TestLoadRulesJSONAtomicReplace(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	write := func(name, doc string) string {
		p := filepath.Join(dir, name)
		require.NoError(os.WriteFile(p, []byte(doc), 0o644))
		return p
	}

	eng := NewEngine(nil)
	first := write("a.json", `{"rules":[{"id":"r1","condition":"drugs > 0.5","action":"block","enabled":true}]}`)
	require.NoError(eng.LoadRulesJSON(first))
	require.Len(eng.Rules(), 1)

	second := write("b.json", `{"rules":[{"id":"r9","condition":"hate > 0.5","action":"review","enabled":true}]}`)
	require.NoError(eng.LoadRulesJSON(second))
	loaded := eng.Rules()
	require.Len(loaded, 1)
	assert.Equal("r9", loaded[0].ID)
}
