package detectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/railguard/railguard/pkg/ratelimit"
	"github.com/railguard/railguard/transport"
)

const hiveSyncURL = "https://api.thehive.ai/api/v2/task/sync"

// schema: https://docs.thehive.ai/reference/classification
type HiveResp struct {
	Status []HiveResp_Status `json:"status"`
}

type HiveResp_Status struct {
	Response HiveResp_Response `json:"response"`
}

type HiveResp_Response struct {
	Output []HiveResp_Out `json:"output"`
}

type HiveResp_Out struct {
	Time    float64          `json:"time"`
	Classes []HiveResp_Class `json:"classes"`
}

type HiveResp_Class struct {
	Class string  `json:"class"`
	Score float64 `json:"score"`
}

// flattens every output block into ordered (class, score) pairs
func (resp *HiveResp) LabelScores() []LabelScore {
	var scores []LabelScore
	for _, status := range resp.Status {
		for _, out := range status.Response.Output {
			for _, cls := range out.Classes {
				scores = append(scores, LabelScore{Label: cls.Class, Confidence: cls.Score})
			}
		}
	}
	return scores
}

// HiveTextModerator scores text via the thehive.ai sync classification API.
type HiveTextModerator struct {
	client   *transport.Client
	apiToken string
	endpoint string
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

var _ TextPolicyModerator = (*HiveTextModerator)(nil)

func NewHiveTextModerator(client *transport.Client, apiToken string, logger *slog.Logger) *HiveTextModerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &HiveTextModerator{
		client:   client,
		apiToken: apiToken,
		endpoint: hiveSyncURL,
		limiter:  ratelimit.New(100, time.Minute),
		logger:   logger.With("detector", "hive-text"),
	}
}

func (m *HiveTextModerator) AnalyzeText(ctx context.Context, text string) ([]LabelScore, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{"text_data": text})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp := m.client.Post(ctx, transport.Request{
		URL: m.endpoint,
		Headers: map[string]string{
			"Authorization": "Token " + m.apiToken,
			"Accept":        "application/json",
		},
		Body:        payload,
		ContentType: "application/json",
	})
	hiveAPIDuration.Observe(time.Since(start).Seconds())
	hiveAPICount.WithLabelValues("text", fmt.Sprint(resp.StatusCode)).Inc()

	if !resp.Success {
		return nil, fmt.Errorf("hive text request failed: status=%d err=%s", resp.StatusCode, resp.ErrorMessage)
	}

	var respObj HiveResp
	if err := json.Unmarshal(resp.Body, &respObj); err != nil {
		return nil, fmt.Errorf("failed to parse hive text resp JSON: %w", err)
	}
	return respObj.LabelScores(), nil
}

// HiveImageModerator uploads image bytes to the same sync endpoint as a
// multipart form file and returns class scores keyed by label.
type HiveImageModerator struct {
	client   *transport.Client
	apiToken string
	endpoint string
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

var _ ImagePolicyModerator = (*HiveImageModerator)(nil)

func NewHiveImageModerator(client *transport.Client, apiToken string, logger *slog.Logger) *HiveImageModerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &HiveImageModerator{
		client:   client,
		apiToken: apiToken,
		endpoint: hiveSyncURL,
		limiter:  ratelimit.New(100, time.Minute),
		logger:   logger.With("detector", "hive-image"),
	}
}

func (m *HiveImageModerator) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (map[string]float64, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	m.logger.Debug("sending image to thehive.ai", "mimetype", mimeType, "size", len(data))

	fileName := "image.jpg"
	if mimeType == "image/png" {
		fileName = "image.png"
	}

	start := time.Now()
	resp := m.client.Post(ctx, transport.Request{
		URL: m.endpoint,
		Headers: map[string]string{
			"Authorization": "Token " + m.apiToken,
			"Accept":        "application/json",
		},
		ContentType: "multipart/form-data",
		BinaryData:  data,
		FileField:   "media",
		FileName:    fileName,
	})
	hiveAPIDuration.Observe(time.Since(start).Seconds())
	hiveAPICount.WithLabelValues("image", fmt.Sprint(resp.StatusCode)).Inc()

	if !resp.Success {
		return nil, fmt.Errorf("hive image request failed: status=%d err=%s", resp.StatusCode, resp.ErrorMessage)
	}

	var respObj HiveResp
	if err := json.Unmarshal(resp.Body, &respObj); err != nil {
		return nil, fmt.Errorf("failed to parse hive image resp JSON: %w", err)
	}

	scores := make(map[string]float64)
	for _, ls := range respObj.LabelScores() {
		scores[ls.Label] = ls.Confidence
	}
	return scores, nil
}
