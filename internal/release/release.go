// Package release knows which version this build is and whether a newer one
// has been published. The version string doubles as the region cache schema
// version, so a cache written by another build is rebuilt instead of reused.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Version is the current release.
const Version = "1.2.0"

// DefaultTimeout bounds the manifest fetch. The check runs during startup,
// so it stays short instead of inheriting the general request timeout.
const DefaultTimeout = 6 * time.Second

type manifest struct {
	Latest      string `json:"latest"`
	DownloadURL string `json:"download_url"`
}

// Checker fetches the published release manifest.
type Checker struct {
	url        string
	httpClient *http.Client
}

// NewChecker builds a checker for the given manifest URL. A zero timeout
// falls back to DefaultTimeout.
func NewChecker(url string, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Notice returns a user-facing upgrade message, or an empty string when this
// build is current.
func (c *Checker) Notice(ctx context.Context) (string, error) {
	if c.url == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch release manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch release manifest: unexpected status %s", resp.Status)
	}

	var m manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return "", fmt.Errorf("decode release manifest: %w", err)
	}

	if m.Latest == "" || m.Latest == Version {
		return "", nil
	}
	if m.DownloadURL != "" {
		return fmt.Sprintf("New version %s available for download at:\n%s", m.Latest, m.DownloadURL), nil
	}
	return fmt.Sprintf("New version %s available", m.Latest), nil
}
