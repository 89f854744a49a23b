package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// apiClient talks to a running rex server.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(host string, port int) *apiClient {
	return &apiClient{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is rex serve running? (%w)", err)
	}
	return resp, nil
}

// health reports the server's status field.
func (c *apiClient) health(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, "/api/health")
	if err != nil {
		return "", err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return "", err
	}
	return body.Status, nil
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
