package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JhanXXX/webGIS-for-GVI/internal/features"
)

// Scorer maps a batch of feature stacks to one scalar score per stack. The
// model behind it is a black box; only its tensor shape is a contract here.
type Scorer interface {
	Score(ctx context.Context, stacks []features.Stack) ([]float64, error)
}

// Info is the scoring service's self-reported metadata.
type Info struct {
	Loaded     bool   `json:"model_loaded"`
	Name       string `json:"model_name,omitempty"`
	Device     string `json:"device,omitempty"`
	Parameters int    `json:"parameter_count,omitempty"`
	Version    string `json:"version,omitempty"`
}

// RESTClient talks to the model server over HTTP.
type RESTClient struct {
	baseURL string
	http    *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Instances []features.Stack `json:"instances"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

func (c *RESTClient) Score(ctx context.Context, stacks []features.Stack) ([]float64, error) {
	if len(stacks) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(predictRequest{Instances: stacks})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode predictions: %w", err)
	}
	if len(parsed.Predictions) != len(stacks) {
		return nil, fmt.Errorf("model returned %d predictions for %d inputs",
			len(parsed.Predictions), len(stacks))
	}
	return parsed.Predictions, nil
}

func (c *RESTClient) Info(ctx context.Context) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create info request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode model info: %w", err)
	}
	return &info, nil
}

// Healthy reports whether the model server is reachable and loaded.
func (c *RESTClient) Healthy(ctx context.Context) bool {
	info, err := c.Info(ctx)
	return err == nil && info.Loaded
}
