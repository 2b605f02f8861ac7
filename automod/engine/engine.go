package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/railguard/railguard/automod/cachestore"
	"github.com/railguard/railguard/automod/countstore"
	"github.com/railguard/railguard/automod/rules"
	"github.com/railguard/railguard/detectors"
	"github.com/railguard/railguard/models"
	"github.com/railguard/railguard/storage"
)

// Engine sequences detection, caching, rule evaluation, and persistence for
// each content item. Failures inside a pass degrade the item (zero scores,
// unpersisted result) rather than dropping it or stopping the pipeline.
type Engine struct {
	Logger      *slog.Logger
	TextAI      detectors.TextAIDetector
	TextPolicy  detectors.TextPolicyModerator
	ImagePolicy detectors.ImagePolicyModerator
	Rules       *rules.Engine
	Cache       cachestore.ResultCache
	Counters    countstore.CountStore
	Store       storage.Storage

	cbMu            sync.Mutex
	onItemProcessed func(models.ContentItem)
}

// SetOnItemProcessed registers a callback invoked after each item is fully
// stamped and persisted. It fires on whatever goroutine runs ProcessItem.
func (eng *Engine) SetOnItemProcessed(cb func(models.ContentItem)) {
	eng.cbMu.Lock()
	defer eng.cbMu.Unlock()
	eng.onItemProcessed = cb
}

func (eng *Engine) callback() func(models.ContentItem) {
	eng.cbMu.Lock()
	defer eng.cbMu.Unlock()
	return eng.onItemProcessed
}

// ProcessItem runs one item through the full pipeline and stamps its
// decision. The decision auto_action is always set on return. Detector and
// persistence failures are logged and absorbed; only the callback sees the
// final item either way.
func (eng *Engine) ProcessItem(ctx context.Context, item *models.ContentItem) {
	// recover any panics from detector or rule execution, like an HTTP server would
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("moderation pass panicked", "err", r, "id", item.ID)
			if item.Decision.AutoAction == "" {
				item.Decision.AutoAction = models.ActionAllow
			}
		}
	}()

	start := time.Now()
	eng.Logger.Info("processing content item", "id", item.ID, "source", item.Source, "type", item.ContentType)

	if item.HasText() {
		eng.analyzeText(ctx, item)
	}
	if item.HasImage() {
		eng.analyzeImage(ctx, item)
	}

	eng.decide(item)

	if err := eng.Store.SaveContent(ctx, item); err != nil {
		// non-fatal: losing persistence must not lose the detector results
		eng.Logger.Error("failed to persist content item", "id", item.ID, "err", err)
		itemErrorCount.WithLabelValues("persist").Inc()
	}

	eng.count(ctx, "processed", item.Source)
	eng.count(ctx, "action", item.Decision.AutoAction)
	itemProcessCount.WithLabelValues(item.Source).Inc()
	itemProcessDuration.Observe(time.Since(start).Seconds())

	if cb := eng.callback(); cb != nil {
		cb(*item)
	}
}

func (eng *Engine) analyzeText(ctx context.Context, item *models.ContentItem) {
	detection, err := eng.TextAI.Analyze(ctx, item.Text)
	if err != nil {
		eng.Logger.Warn("ai text detection failed, keeping default scores", "id", item.ID, "err", err)
		itemErrorCount.WithLabelValues("text_ai").Inc()
	} else {
		item.AIDetection = detection
	}

	labels, err := eng.TextPolicy.AnalyzeText(ctx, item.Text)
	if err != nil {
		eng.Logger.Warn("text moderation failed, keeping default scores", "id", item.ID, "err", err)
		itemErrorCount.WithLabelValues("text_policy").Inc()
		return
	}
	for _, ls := range labels {
		applyLabel(&item.Moderation.Labels, ls.Label, ls.Confidence)
	}
	if len(labels) > 0 {
		item.Moderation.Provider = "hive"
	}
}

func (eng *Engine) analyzeImage(ctx context.Context, item *models.ContentItem) {
	data, err := os.ReadFile(item.ImagePath)
	if err != nil {
		eng.Logger.Warn("could not read image for classification", "id", item.ID, "path", item.ImagePath, "err", err)
		itemErrorCount.WithLabelValues("image_read").Inc()
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if cached, ok := eng.Cache.Get(ctx, hash); ok {
		var labels models.ModerationLabels
		if err := json.Unmarshal([]byte(cached), &labels); err == nil {
			item.Moderation.Labels = labels
			item.Moderation.Provider = "hive"
			cacheHitCount.Inc()
			eng.Logger.Debug("image classification cache hit", "id", item.ID, "hash", hash)
			return
		}
		eng.Logger.Warn("discarding unreadable cached result", "hash", hash, "err", err)
	}
	cacheMissCount.Inc()

	scores, err := eng.ImagePolicy.AnalyzeImage(ctx, data, mimeTypeForPath(item.ImagePath))
	if err != nil {
		eng.Logger.Warn("image moderation failed, keeping default scores", "id", item.ID, "err", err)
		itemErrorCount.WithLabelValues("image_policy").Inc()
		return
	}
	for label, confidence := range scores {
		applyLabel(&item.Moderation.Labels, label, confidence)
	}
	if len(scores) > 0 {
		item.Moderation.Provider = "hive"
	}

	if encoded, err := json.Marshal(item.Moderation.Labels); err == nil {
		if err := eng.Cache.Put(ctx, hash, string(encoded)); err != nil {
			eng.Logger.Warn("failed to cache image classification", "hash", hash, "err", err)
		}
	}
}

// decide stamps the automated decision from the first matching rule. This is
// the only place auto_action is written during a pass.
func (eng *Engine) decide(item *models.ContentItem) {
	matching := eng.Rules.GetMatchingRules(item)
	if len(matching) > 0 {
		item.Decision.AutoAction = matching[0].Action
		item.Decision.RuleID = matching[0].ID
		item.Decision.ThresholdTriggered = true
	} else {
		item.Decision.AutoAction = models.ActionAllow
		item.Decision.RuleID = ""
		item.Decision.ThresholdTriggered = false
	}
}

func (eng *Engine) count(ctx context.Context, name, val string) {
	if eng.Counters == nil {
		return
	}
	if err := eng.Counters.Increment(ctx, name, val); err != nil {
		eng.Logger.Warn("failed to increment counter", "name", name, "val", val, "err", err)
	}
}

// applyLabel routes a detector label to its named slot, or to the
// additional-labels map when the name is unknown.
func applyLabel(labels *models.ModerationLabels, label string, confidence float64) {
	switch label {
	case "sexual":
		labels.Sexual = confidence
	case "violence":
		labels.Violence = confidence
	case "hate":
		labels.Hate = confidence
	case "drugs":
		labels.Drugs = confidence
	case "harassment":
		labels.Harassment = confidence
	case "self_harm":
		labels.SelfHarm = confidence
	case "illicit":
		labels.Illicit = confidence
	default:
		if labels.AdditionalLabels == nil {
			labels.AdditionalLabels = make(map[string]float64)
		}
		labels.AdditionalLabels[label] = confidence
	}
}

func mimeTypeForPath(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "image/jpeg"
}
