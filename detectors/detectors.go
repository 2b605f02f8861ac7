// Package detectors defines the pluggable classification capabilities the
// moderation engine consumes, plus remote implementations backed by
// third-party classification APIs. Implementations honor "return defaults if
// unconfigured" rather than failing, and never let transport errors escape
// as panics: an API failure comes back as an error the engine degrades on.
package detectors

import (
	"context"

	"github.com/railguard/railguard/models"
)

// LabelScore is one (label, confidence) pair from a policy moderator, in the
// order the provider returned it.
type LabelScore struct {
	Label      string
	Confidence float64
}

// TextAIDetector scores text for AI-generation likelihood.
type TextAIDetector interface {
	Analyze(ctx context.Context, text string) (models.AIDetection, error)
}

// TextPolicyModerator scores text for policy violations.
type TextPolicyModerator interface {
	AnalyzeText(ctx context.Context, text string) ([]LabelScore, error)
}

// ImagePolicyModerator scores raw image bytes for policy violations.
type ImagePolicyModerator interface {
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (map[string]float64, error)
}

// Disabled variants stand in when no API credentials are configured: they
// return zero scores and no error, so unclassified content degrades to
// conservative defaults instead of erroring out.

type DisabledTextAIDetector struct{}

func (DisabledTextAIDetector) Analyze(ctx context.Context, text string) (models.AIDetection, error) {
	return models.AIDetection{}, nil
}

type DisabledTextPolicyModerator struct{}

func (DisabledTextPolicyModerator) AnalyzeText(ctx context.Context, text string) ([]LabelScore, error) {
	return nil, nil
}

type DisabledImagePolicyModerator struct{}

func (DisabledImagePolicyModerator) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (map[string]float64, error) {
	return nil, nil
}
