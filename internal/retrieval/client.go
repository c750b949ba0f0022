package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// searchRequest is the request body for the search endpoint
type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// searchResponse is the response from the search endpoint
type searchResponse struct {
	Results []struct {
		Text     string `json:"text"`
		Metadata struct {
			Source string `json:"source"`
			Page   string `json:"page"`
		} `json:"metadata"`
	} `json:"results"`
}

// Client is an HTTP client for the vector search service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	meter      metric.Meter
}

// NewClient creates a retrieval client for the service at baseURL.
func NewClient(baseURL string, tracer trace.Tracer, meter metric.Meter) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tracer:     tracer,
		meter:      meter,
	}
}

// Search calls the vector search service
func (c *Client) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	ctx, span := c.tracer.Start(ctx, "vector_search")
	defer span.End()

	start := time.Now()

	reqBody := searchRequest{Query: query, K: k}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search error: %s - %s", resp.Status, string(body))
	}

	var apiResp searchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	duration := time.Since(start)
	histogram, err := c.meter.Float64Histogram(
		"retrieval.request.duration",
		metric.WithDescription("Vector search request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(duration.Milliseconds()))
	}

	passages := make([]Passage, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		passages = append(passages, Passage{
			Text:   r.Text,
			Source: r.Metadata.Source,
			Page:   r.Metadata.Page,
		})
	}

	return passages, nil
}
