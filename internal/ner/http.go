package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/chartrisk/internal/llm"
	"github.com/ppiankov/chartrisk/internal/model"
)

// HTTPClient calls a remote NER service.
//
// Request:  POST {endpoint} {"text": "..."}
// Response: {"entities": [{"text", "label", "score", "start", "end"}]} or a bare array.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
}

type nerRequest struct {
	Text string `json:"text"`
}

type nerResponse struct {
	Entities []model.Entity `json:"entities"`
}

// NewHTTPClient creates a client for endpoint. timeout <= 0 defaults to 10s.
func NewHTTPClient(endpoint string, timeout time.Duration) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("NER endpoint is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Extract implements Extractor. 429 and 5xx responses return *llm.RetryableError.
func (c *HTTPClient) Extract(ctx context.Context, text string) ([]model.Entity, error) {
	body, err := json.Marshal(nerRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, llm.StatusError("NER", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	entities, err := decodeEntities(respBody)
	if err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return entities, nil
}

func decodeEntities(data []byte) ([]model.Entity, error) {
	trimmed := bytes.TrimSpace(data)
	var raw []model.Entity
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, err
		}
	} else {
		var env nerResponse
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, err
		}
		raw = env.Entities
	}

	out := raw[:0]
	for _, e := range raw {
		e.Text = strings.TrimSpace(e.Text)
		if e.Text != "" {
			out = append(out, e)
		}
	}
	return out, nil
}
