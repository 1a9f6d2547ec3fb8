package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/datapilot-io/datapilot/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// MLClient is the HTTP client for the external model training service.
type MLClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewMLClient creates a new MLClient with OpenTelemetry instrumentation
func NewMLClient(cfg *config.Config, log *zap.Logger) *MLClient {
	timeout := cfg.ML.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &MLClient{
		BaseURL: strings.TrimRight(cfg.ML.BaseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Logger: log,
	}
}

type TrainRequest struct {
	JobID           string         `json:"job_id"`
	DatasetID       int64          `json:"dataset_id"`
	FilePath        string         `json:"file_path"`
	ModelType       string         `json:"model_type"`
	Features        []string       `json:"features"`
	Target          string         `json:"target"`
	Hyperparameters map[string]any `json:"hyperparameters,omitempty"`
}

type TrainResponse struct {
	ModelID  string             `json:"model_id"`
	Metrics  map[string]float64 `json:"metrics"`
	Duration float64            `json:"duration_s"`
}

type PredictRequest struct {
	JobID     string `json:"job_id"`
	DatasetID int64  `json:"dataset_id"`
	ModelID   string `json:"model_id"`
	Input     any    `json:"input"`
}

type PredictResponse struct {
	Predictions []any   `json:"predictions"`
	Confidence  float64 `json:"confidence"`
}

func (c *MLClient) Train(ctx context.Context, req TrainRequest) (*TrainResponse, error) {
	var out TrainResponse
	if err := c.postJSON(ctx, "/api/v1/train", "train", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MLClient) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	var out PredictResponse
	if err := c.postJSON(ctx, "/api/v1/predict", "predict", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MLClient) postJSON(ctx context.Context, path, op string, body any, out any) error {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Logger.Error(op+" request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(respBody)))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := sonic.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
