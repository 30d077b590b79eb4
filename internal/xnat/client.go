// Package xnat is a minimal client for the XNAT REST API: just enough to
// list a project's imaging sessions and pull session archives into the
// study's dcm root. Credentials come from XNAT_USER/XNAT_PASS.
package xnat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Client talks to one XNAT server with basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient creates a client for the XNAT server at baseURL.
func NewClient(baseURL, username, password string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("XNAT server URL cannot be empty")
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("XNAT credentials cannot be empty")
	}

	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// Experiment is one imaging session record as returned by XNAT.
type Experiment struct {
	ID      string `json:"ID"`
	Label   string `json:"label"`
	Project string `json:"project"`
	Date    string `json:"date"`
}

// resultSet mirrors XNAT's standard JSON envelope.
type resultSet struct {
	ResultSet struct {
		Result []Experiment `json:"Result"`
	} `json:"ResultSet"`
}

// ListExperiments returns the imaging sessions for a project.
func (c *Client) ListExperiments(ctx context.Context, project string) ([]Experiment, error) {
	endpoint := fmt.Sprintf("%s/data/projects/%s/experiments?format=json",
		c.baseURL, url.PathEscape(project))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build XNAT request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("XNAT request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("XNAT returned %s for project %s", resp.Status, project)
	}

	var rs resultSet
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to decode XNAT response: %w", err)
	}

	return rs.ResultSet.Result, nil
}

// DownloadSession downloads a session's archive zip into destDir.
// The file is written as {label}.zip via a temp file so a partial download
// never looks like a finished one. Returns the final path.
func (c *Client) DownloadSession(ctx context.Context, project, label, destDir string) (string, error) {
	endpoint := fmt.Sprintf("%s/data/projects/%s/experiments/%s/scans/ALL/files?format=zip",
		c.baseURL, url.PathEscape(project), url.PathEscape(label))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build XNAT request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("XNAT download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("XNAT returned %s for session %s", resp.Status, label)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	finalPath := filepath.Join(destDir, label+".zip")
	tmpPath := finalPath + ".part"

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write session archive: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finish session archive: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("failed to finalize session archive: %w", err)
	}

	return finalPath, nil
}
