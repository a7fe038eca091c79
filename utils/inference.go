package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Perceptus-Labs/roomscout/config"
	"github.com/Perceptus-Labs/roomscout/metrics"
	"github.com/Perceptus-Labs/roomscout/models"
)

// Detector runs object detection on one encoded frame.
type Detector interface {
	Detect(ctx context.Context, frame []byte, threshold float64) ([]models.Detection, error)
}

// InferenceClient calls an external object detection service.
type InferenceClient struct {
	BaseURL string
	Client  *http.Client

	breaker *gobreaker.CircuitBreaker[[]models.Detection]
}

type detectResponse struct {
	Detections []models.Detection `json:"detections"`
}

func NewInferenceClient(cfg config.DetectorConfig) *InferenceClient {
	timeout := cfg.InferenceTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &InferenceClient{
		BaseURL: strings.TrimRight(cfg.InferenceURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		breaker: newBreaker[[]models.Detection]("inference"),
	}
}

func (c *InferenceClient) Detect(ctx context.Context, frame []byte, threshold float64) ([]models.Detection, error) {
	start := time.Now()
	detections, err := c.breaker.Execute(func() ([]models.Detection, error) {
		return c.detect(ctx, frame, threshold)
	})
	elapsed := time.Since(start)
	metrics.RecordExternalCall("inference", err, elapsed)
	metrics.InferenceDuration.Observe(elapsed.Seconds())
	return detections, err
}

func (c *InferenceClient) detect(ctx context.Context, frame []byte, threshold float64) ([]models.Detection, error) {
	query := url.Values{}
	query.Set("conf", strconv.FormatFloat(threshold, 'f', -1, 64))
	endpoint := c.BaseURL + "/detect?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var response detectResponse
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}

	zap.L().Debug("Inference response", zap.Int("detections", len(response.Detections)))
	return response.Detections, nil
}
