// Package update checks the project's GitHub releases for a newer version.
// The checker only reports; it never downloads or replaces the binary.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultRepo is the GitHub repository polled for releases.
const DefaultRepo = "wg-console/wg-console"

const (
	defaultGitHubAPIBaseURL = "https://api.github.com"

	// cacheTTL bounds how often the GitHub API is hit. Unauthenticated
	// requests are rate limited to 60/hour per source IP.
	cacheTTL = time.Hour
)

// HTTPDoer allows tests to stub HTTP transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Status is the outcome of a release check.
type Status struct {
	CurrentVersion  string     `json:"current_version"`
	LatestVersion   string     `json:"latest_version,omitempty"`
	UpdateAvailable bool       `json:"update_available"`
	ReleaseName     string     `json:"release_name,omitempty"`
	ReleaseURL      string     `json:"release_url,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	CheckedAt       time.Time  `json:"checked_at"`
}

// Checker queries the GitHub releases API and caches the last answer for an
// hour so the API endpoint can be polled freely.
type Checker struct {
	repo    string
	baseURL string
	current string
	client  HTTPDoer
	now     func() time.Time

	mu     sync.Mutex
	cached *Status
}

// NewChecker builds a checker for repo comparing against currentVersion.
// A nil doer falls back to a plain HTTP client with a request timeout.
func NewChecker(repo, currentVersion string, doer HTTPDoer) *Checker {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	return &Checker{
		repo:    repo,
		baseURL: defaultGitHubAPIBaseURL,
		current: strings.TrimSpace(currentVersion),
		client:  doer,
		now:     time.Now,
	}
}

// Check returns the latest release status. A result younger than an hour is
// served from cache without touching the network.
func (c *Checker) Check(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil && c.now().Sub(c.cached.CheckedAt) < cacheTTL {
		return *c.cached, nil
	}

	release, err := c.latestRelease(ctx)
	if err != nil {
		return Status{}, err
	}
	status := Status{
		CurrentVersion:  c.current,
		LatestVersion:   release.Tag,
		UpdateAvailable: !release.Prerelease && isNewerVersion(c.current, release.Tag),
		ReleaseName:     release.Name,
		ReleaseURL:      release.URL,
		CheckedAt:       c.now(),
	}
	if !release.PublishedAt.IsZero() {
		published := release.PublishedAt
		status.PublishedAt = &published
	}
	c.cached = &status
	return status, nil
}

type releaseMetadata struct {
	Tag         string
	Name        string
	URL         string
	PublishedAt time.Time
	Prerelease  bool
}

type releaseAPIResponse struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	HTMLURL     string `json:"html_url"`
	Prerelease  bool   `json:"prerelease"`
	PublishedAt string `json:"published_at"`
}

func (c *Checker) latestRelease(ctx context.Context) (releaseMetadata, error) {
	url := strings.TrimRight(c.baseURL, "/") + "/repos/" + c.repo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return releaseMetadata{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "wg-console-update-check")
	resp, err := c.client.Do(req)
	if err != nil {
		return releaseMetadata{}, fmt.Errorf("github release request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return releaseMetadata{}, fmt.Errorf("github release request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload releaseAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return releaseMetadata{}, fmt.Errorf("decode github release response: %w", err)
	}
	meta := releaseMetadata{
		Tag:        strings.TrimSpace(payload.TagName),
		Name:       strings.TrimSpace(payload.Name),
		URL:        strings.TrimSpace(payload.HTMLURL),
		Prerelease: payload.Prerelease,
	}
	if payload.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, payload.PublishedAt); err == nil {
			meta.PublishedAt = t.UTC()
		}
	}
	if meta.Tag == "" {
		return releaseMetadata{}, fmt.Errorf("release metadata missing tag")
	}
	return meta, nil
}
