package rules

import (
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"regexp"
	"strconv"
	"sync"

	"github.com/railguard/railguard/models"
)

// Rule is one entry of the moderation policy. Rules are kept in list order
// and evaluated first-match-wins; ordering is policy, not an artifact.
type Rule struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Condition string `json:"condition"` // eg "drugs > 0.5"
	Action    string `json:"action"`    // allow, block, review
	Subreddit string `json:"subreddit"` // empty = global
	Enabled   bool   `json:"enabled"`
}

// condition DSL: a single "<field> <op> <threshold>" comparison
var conditionPattern = regexp.MustCompile(`(\w+)\s*(>=|<=|>|<|==)\s*([\d.]+)`)

// epsilon tolerance for the == operator
const equalityEpsilon = 1e-4

type condition struct {
	field     string
	op        string
	threshold float64
}

func parseCondition(expr string) (condition, bool) {
	m := conditionPattern.FindStringSubmatch(expr)
	if m == nil {
		return condition{}, false
	}
	threshold, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return condition{}, false
	}
	return condition{field: m[1], op: m[2], threshold: threshold}, true
}

// Engine evaluates the rule list against item scores. Safe for concurrent
// readers; LoadRulesJSON and SetRules replace the whole list atomically.
type Engine struct {
	mu     sync.RWMutex
	rules  []Rule
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("subsystem", "rules")}
}

type rulesFile struct {
	Rules []Rule `json:"rules"`
}

// LoadRulesJSON replaces the entire rule set from a JSON definition file.
// Entries missing an id or condition are silently skipped. A missing or
// malformed file logs a warning and leaves an empty set, which defaults every
// item to allow.
func (e *Engine) LoadRulesJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("could not open rules file", "path", path, "err", err)
		e.SetRules(nil)
		return err
	}

	var parsed rulesFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		e.logger.Warn("malformed rules file", "path", path, "err", err)
		e.SetRules(nil)
		return err
	}

	loaded := make([]Rule, 0, len(parsed.Rules))
	for _, r := range parsed.Rules {
		if r.ID == "" || r.Condition == "" {
			continue
		}
		if r.Action == "" {
			r.Action = models.ActionAllow
		}
		loaded = append(loaded, r)
	}
	e.SetRules(loaded)
	e.logger.Info("loaded rules", "count", len(loaded), "path", path)
	return nil
}

func (e *Engine) SetRules(rules []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
}

func (e *Engine) AddRule(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
}

func (e *Engine) ClearRules() {
	e.SetRules(nil)
}

func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns the action of the first enabled, scope-matching rule whose
// condition holds, or "allow" when none match. Always agrees with
// GetMatchingRules: when that returns a non-empty list, the first element's
// action is this result.
func (e *Engine) Evaluate(item *models.ContentItem) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, rule := range e.rules {
		if ruleApplies(rule, item) {
			return rule.Action
		}
	}
	return models.ActionAllow
}

// GetMatchingRules returns every enabled, scope-matching rule whose condition
// holds, in list order. The first element, if any, is authoritative for the
// automated decision.
func (e *Engine) GetMatchingRules(item *models.ContentItem) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var matching []Rule
	for _, rule := range e.rules {
		if ruleApplies(rule, item) {
			matching = append(matching, rule)
		}
	}
	return matching
}

func ruleApplies(rule Rule, item *models.ContentItem) bool {
	if !rule.Enabled {
		return false
	}
	if rule.Subreddit != "" && rule.Subreddit != item.Subreddit {
		return false
	}
	cond, ok := parseCondition(rule.Condition)
	if !ok {
		return false
	}
	value := fieldValue(cond.field, item)
	switch cond.op {
	case ">":
		return value > cond.threshold
	case ">=":
		return value >= cond.threshold
	case "<":
		return value < cond.threshold
	case "<=":
		return value <= cond.threshold
	case "==":
		return math.Abs(value-cond.threshold) < equalityEpsilon
	}
	return false
}

// fieldValue resolves a condition field against the item's detector scores.
// Unknown fields fall through to the additional-labels map, defaulting 0.0.
func fieldValue(field string, item *models.ContentItem) float64 {
	labels := item.Moderation.Labels
	switch field {
	case "ai_score":
		return item.AIDetection.AIScore
	case "sexual":
		return labels.Sexual
	case "violence":
		return labels.Violence
	case "hate":
		return labels.Hate
	case "drugs":
		return labels.Drugs
	case "harassment":
		return labels.Harassment
	case "self_harm":
		return labels.SelfHarm
	case "illicit":
		return labels.Illicit
	}
	if v, ok := labels.AdditionalLabels[field]; ok {
		return v
	}
	return 0.0
}
