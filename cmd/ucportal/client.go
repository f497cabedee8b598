package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kalambet/ucportal/internal/config"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	token, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return nil, fmt.Errorf("getting API token: %w", err)
	}

	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *apiClient) send(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is ucportal running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if body == nil {
		return c.send(ctx, method, path, "", nil)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}
	return c.send(ctx, method, path, "application/json", bytes.NewReader(data))
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// result is the envelope every /api route answers with.
type result struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

// decodeResult unwraps the envelope into v. A failed envelope, or a non-JSON
// error body, becomes an error carrying the server's message.
func decodeResult(resp *http.Response, v any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
	}

	var res result
	if err := json.Unmarshal(body, &res); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	if !res.Success || resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, res.Message)
	}
	if v == nil || len(res.Response) == 0 {
		return nil
	}
	return json.Unmarshal(res.Response, v)
}
