// Package redcap is a minimal client for the REDCap export API: token-based
// POST requests that export survey records as CSV. The token comes from
// REDCAP_TOKEN.
package redcap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one REDCap instance's API endpoint.
type Client struct {
	apiURL string
	token  string
	http   *http.Client
}

// NewClient creates a client for the REDCap API at apiURL.
func NewClient(apiURL, token string) (*Client, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("REDCap API URL cannot be empty")
	}
	if token == "" {
		return nil, fmt.Errorf("REDCap token cannot be empty")
	}

	return &Client{
		apiURL: apiURL,
		token:  token,
		http:   &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// ExportRecords streams the project's records as CSV into w.
// Returns the number of bytes written.
func (c *Client) ExportRecords(ctx context.Context, w io.Writer) (int64, error) {
	form := url.Values{
		"token":   {c.token},
		"content": {"record"},
		"format":  {"csv"},
		"type":    {"flat"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("failed to build REDCap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("REDCap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("REDCap returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read REDCap export: %w", err)
	}

	return n, nil
}
