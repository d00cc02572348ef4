package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient talks JSON to one provider's HTTP API
type apiClient struct {
	service string
	baseURL string
	header  http.Header
	http    *http.Client

	// errorMessage extracts a readable message from an error body; "" keeps the raw body
	errorMessage func(body []byte) string
}

func newAPIClient(service string, config Config, defaultBaseURL string, defaultTimeout time.Duration) *apiClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &apiClient{
		service: service,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		header:  http.Header{},
		http: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: newProxyFunc(config.HTTPProxy, config.HTTPSProxy)},
		},
	}
}

// do sends in (when non-nil) as JSON and decodes a 200 response into out
// (when non-nil). Other statuses become StatusError, retryable for 429/5xx.
func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if c.errorMessage != nil {
			if m := c.errorMessage(data); m != "" {
				msg = m
			}
		}
		return StatusError(c.service, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
