package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
)

// githubBlobRe matches github.com/:owner/:repo/blob/:ref/:path
var githubBlobRe = regexp.MustCompile(`^https?://github\.com/([^/]+/[^/]+)/blob/([^/]+)/(.+)$`)

// rawGitHubRe matches raw.githubusercontent.com/:owner/:repo/:ref/:path
var rawGitHubRe = regexp.MustCompile(`^https?://raw\.githubusercontent\.com/([^/]+)/([^/]+)/([^/]+)/(.+)$`)

// GithubRawURL converts a GitHub blob URL to raw.githubusercontent.com.
// Other URLs are returned unchanged.
func GithubRawURL(u string) string {
	m := githubBlobRe.FindStringSubmatch(u)
	if m == nil {
		return u
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", m[1], m[2], m[3])
}

// IsRawGitHubURL returns true for raw.githubusercontent.com URLs.
func IsRawGitHubURL(u string) bool {
	return rawGitHubRe.MatchString(u)
}

// rawFileTitle names a raw GitHub file as "owner/repo: path".
func rawFileTitle(rawURL string) string {
	m := rawGitHubRe.FindStringSubmatch(rawURL)
	if m == nil {
		return path.Base(rawURL)
	}
	return fmt.Sprintf("%s/%s: %s", m[1], m[2], m[4])
}

// fetchRawText GETs rawURL as plain text, without readability extraction.
func fetchRawText(ctx context.Context, rawURL string) (string, error) {
	body, err := FetchBody(ctx, rawURL, map[string]string{"Accept": "text/plain,*/*;q=0.8"})
	if err != nil {
		return "", err
	}
	return TruncateRunes(strings.TrimSpace(string(body)), cfg.MaxContentChars, "..."), nil
}

// fetchGitHubFile fetches a raw GitHub file. On 404 the other default
// branch (main or master) is tried once.
func fetchGitHubFile(ctx context.Context, rawURL string) (title, content string, err error) {
	title = rawFileTitle(rawURL)
	content, err = fetchRawText(ctx, rawURL)
	if err == nil || StatusOf(err) != http.StatusNotFound {
		return title, content, err
	}

	m := rawGitHubRe.FindStringSubmatch(rawURL)
	alt := map[string]string{"main": "master", "master": "main"}[m[3]]
	if alt == "" {
		return "", "", err
	}
	altURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", m[1], m[2], alt, m[4])
	content, altErr := fetchRawText(ctx, altURL)
	if altErr != nil {
		return "", "", errors.Join(err, altErr)
	}
	return title, content, nil
}
