package source

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/moltup/molt/progress"
)

const feedSizeLimit = 1 << 20 // 1 MiB of manifest is already generous

// WebFeed resolves versions from a plain text manifest served over HTTP.
// Each non-empty, non-comment line reads `<version> <archiveURL>`.
type WebFeed struct {
	manifestURL string
	client      *http.Client
	retryDelay  time.Duration
}

// NewWebFeed creates a resolver for the given manifest URL.
func NewWebFeed(manifestURL string) *WebFeed {
	return &WebFeed{
		manifestURL: manifestURL,
		client:      &http.Client{Timeout: 5 * time.Minute},
		retryDelay:  DefaultRetryDelay,
	}
}

// Versions fetches and parses the manifest.
func (f *WebFeed) Versions(ctx context.Context) ([]*goversion.Version, error) {
	entries, err := f.entries(ctx)
	if err != nil {
		return nil, err
	}

	versions := make([]*goversion.Version, 0, len(entries))
	for v := range entries {
		versions = append(versions, v)
	}
	return versions, nil
}

// Download fetches the archive of a version to destPath.
func (f *WebFeed) Download(ctx context.Context, v *goversion.Version, destPath string, reporter progress.Reporter) error {
	entries, err := f.entries(ctx)
	if err != nil {
		return err
	}

	for candidate, url := range entries {
		if candidate.Equal(v) {
			return downloadToFile(ctx, f.client, f.retryDelay, url, destPath, reporter)
		}
	}
	return fmt.Errorf("version %s not present in feed %s", v, f.manifestURL)
}

// ArchiveExt assumes zip archives, the common case for web feeds.
func (f *WebFeed) ArchiveExt() string { return "zip" }

func (f *WebFeed) entries(ctx context.Context) (map[*goversion.Version]string, error) {
	body, err := fetchBody(ctx, f.client, f.manifestURL, feedSizeLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.manifestURL, err)
	}

	entries := make(map[*goversion.Version]string)
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed feed line %q", line)
		}

		v, err := goversion.NewVersion(fields[0])
		if err != nil {
			return nil, fmt.Errorf("malformed feed version %q: %w", fields[0], err)
		}
		entries[v] = f.resolveURL(fields[1])
	}
	return entries, nil
}

// resolveURL allows manifest entries to be relative to the manifest itself.
func (f *WebFeed) resolveURL(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	base := f.manifestURL
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[:idx]
	}
	return base + "/" + path.Clean(raw)
}
