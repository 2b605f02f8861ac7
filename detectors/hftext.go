package detectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/railguard/railguard/models"
	"github.com/railguard/railguard/pkg/ratelimit"
	"github.com/railguard/railguard/transport"
)

const DefaultAIDetectorModel = "desklib/ai-text-detector-v1.01"

// HFTextDetector scores text for AI generation via the HuggingFace hosted
// inference API.
type HFTextDetector struct {
	client   *transport.Client
	apiToken string
	modelID  string
	baseURL  string
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

var _ TextAIDetector = (*HFTextDetector)(nil)

func NewHFTextDetector(client *transport.Client, apiToken string, logger *slog.Logger) *HFTextDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &HFTextDetector{
		client:   client,
		apiToken: apiToken,
		modelID:  DefaultAIDetectorModel,
		baseURL:  "https://api-inference.huggingface.co",
		limiter:  ratelimit.New(30, time.Minute),
		logger:   logger.With("detector", "hf-text"),
	}
}

type hfClassification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (d *HFTextDetector) Analyze(ctx context.Context, text string) (models.AIDetection, error) {
	result := models.AIDetection{Model: d.modelID}

	if err := d.limiter.Wait(ctx); err != nil {
		return result, err
	}

	payload, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return result, err
	}

	start := time.Now()
	resp := d.client.Post(ctx, transport.Request{
		URL: d.baseURL + "/models/" + d.modelID,
		Headers: map[string]string{
			"Authorization": "Bearer " + d.apiToken,
		},
		Body:        payload,
		ContentType: "application/json",
	})
	hfAPIDuration.Observe(time.Since(start).Seconds())
	hfAPICount.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()

	if !resp.Success {
		return result, fmt.Errorf("hf inference request failed: status=%d err=%s", resp.StatusCode, resp.ErrorMessage)
	}

	cls, err := parseHFResponse(resp.Body)
	if err != nil {
		return result, err
	}

	result.Label = cls.Label
	result.Confidence = cls.Score
	if cls.Label == "ai_generated" {
		result.AIScore = cls.Score
	} else {
		result.AIScore = 1.0 - cls.Score
	}
	return result, nil
}

// The inference API wraps classification output in one or two levels of
// array depending on the model pipeline; unwrap until an object appears.
func parseHFResponse(body []byte) (hfClassification, error) {
	var raw json.RawMessage = body
	for i := 0; i < 2; i++ {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			break
		}
		if len(arr) == 0 {
			return hfClassification{}, fmt.Errorf("empty hf inference response")
		}
		raw = arr[0]
	}

	var cls hfClassification
	if err := json.Unmarshal(raw, &cls); err != nil {
		return hfClassification{}, fmt.Errorf("failed to parse hf inference resp JSON: %w", err)
	}
	return cls, nil
}
