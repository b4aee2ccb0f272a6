package update

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestIsNewerVersionSemver(t *testing.T) {
	cases := []struct {
		current   string
		candidate string
		want      bool
	}{
		{current: "v1.0.0", candidate: "v1.0.1", want: true},
		{current: "v1.9.0", candidate: "v2.0.0", want: true},
		{current: "v1.2.3", candidate: "v1.2.3", want: false},
		{current: "v1.2.3", candidate: "v1.1.9", want: false},
		{current: "v1.2.3", candidate: "v1.2.4-rc.1", want: true},
		{current: "dev", candidate: "v1.0.0", want: true},
		{current: "v1.0.0", candidate: "dev", want: true},
		{current: "v1.0.0", candidate: "", want: false},
	}
	for _, tc := range cases {
		got := isNewerVersion(tc.current, tc.candidate)
		if got != tc.want {
			t.Fatalf("isNewerVersion(%q, %q) = %v, want %v", tc.current, tc.candidate, got, tc.want)
		}
	}
}

func TestCheckReportsNewerRelease(t *testing.T) {
	var gotReq *http.Request
	checker := NewChecker("wg-console/wg-console", "v1.0.0", doerFunc(func(req *http.Request) (*http.Response, error) {
		gotReq = req
		return jsonResponse(http.StatusOK, `{
			"tag_name": "v1.2.0",
			"name": "wg-console v1.2.0",
			"html_url": "https://github.com/wg-console/wg-console/releases/tag/v1.2.0",
			"prerelease": false,
			"published_at": "2026-01-05T10:00:00Z"
		}`), nil
	}))

	status, err := checker.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if gotReq.URL.Path != "/repos/wg-console/wg-console/releases/latest" {
		t.Fatalf("unexpected request path %q", gotReq.URL.Path)
	}
	if accept := gotReq.Header.Get("Accept"); accept != "application/vnd.github+json" {
		t.Fatalf("unexpected Accept header %q", accept)
	}
	if !status.UpdateAvailable {
		t.Fatalf("expected update available, got %+v", status)
	}
	if status.CurrentVersion != "v1.0.0" || status.LatestVersion != "v1.2.0" {
		t.Fatalf("unexpected versions: %+v", status)
	}
	if status.PublishedAt == nil || !status.PublishedAt.Equal(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published time: %v", status.PublishedAt)
	}
}

func TestCheckIgnoresPrerelease(t *testing.T) {
	checker := NewChecker("wg-console/wg-console", "v1.0.0", doerFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"tag_name":"v2.0.0-beta.1","prerelease":true}`), nil
	}))
	status, err := checker.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if status.UpdateAvailable {
		t.Fatalf("prerelease must not be offered as update: %+v", status)
	}
}

func TestCheckCachesResult(t *testing.T) {
	calls := 0
	checker := NewChecker("wg-console/wg-console", "v1.0.0", doerFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusOK, `{"tag_name":"v1.1.0"}`), nil
	}))
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	now := base
	checker.now = func() time.Time { return now }

	first, err := checker.Check(context.Background())
	if err != nil {
		t.Fatalf("first Check failed: %v", err)
	}
	now = base.Add(30 * time.Minute)
	second, err := checker.Check(context.Background())
	if err != nil {
		t.Fatalf("second Check failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cached result, saw %d API calls", calls)
	}
	if !second.CheckedAt.Equal(first.CheckedAt) {
		t.Fatalf("cached result must keep its check time: %v vs %v", second.CheckedAt, first.CheckedAt)
	}

	now = base.Add(2 * time.Hour)
	if _, err := checker.Check(context.Background()); err != nil {
		t.Fatalf("third Check failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected cache expiry after an hour, saw %d API calls", calls)
	}
}

func TestCheckRejectsBadResponses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "api error", status: http.StatusForbidden, body: `{"message":"rate limited"}`},
		{name: "missing tag", status: http.StatusOK, body: `{"name":"no tag here"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checker := NewChecker("wg-console/wg-console", "v1.0.0", doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			}))
			if _, err := checker.Check(context.Background()); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}
