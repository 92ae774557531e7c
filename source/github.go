package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/moltup/molt/progress"
)

// GitHub resolves versions from a repository's releases via the GitHub API.
// Release tags are parsed as versions; the artifact of a release is the
// asset whose name matches the configured pattern.
type GitHub struct {
	owner string
	repo  string
	token string
	// assetPattern names the release asset to download. The placeholders
	// %version, %os and %arch are substituted before matching.
	assetPattern string
	client       *http.Client
	retryDelay   time.Duration
	baseURL      string
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	Assets     []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// NewGitHub creates a resolver for the given repository. The default asset
// pattern is "<repo>-%os-%arch.zip".
func NewGitHub(owner, repo string) *GitHub {
	return &GitHub{
		owner:        owner,
		repo:         repo,
		assetPattern: repo + "-%os-%arch.zip",
		client:       &http.Client{Timeout: 5 * time.Minute},
		retryDelay:   DefaultRetryDelay,
		baseURL:      "https://api.github.com",
	}
}

// WithToken sets an optional API token, mostly to avoid rate limiting.
func (g *GitHub) WithToken(token string) *GitHub {
	g.token = token
	return g
}

// WithAssetPattern overrides the release asset name pattern.
func (g *GitHub) WithAssetPattern(pattern string) *GitHub {
	g.assetPattern = pattern
	return g
}

// Versions lists the repository's releases. Drafts are skipped; tags that do
// not parse as versions are skipped rather than treated as errors.
func (g *GitHub) Versions(ctx context.Context) ([]*goversion.Version, error) {
	releases, err := g.releases(ctx)
	if err != nil {
		return nil, err
	}

	var versions []*goversion.Version
	for _, release := range releases {
		if release.Draft {
			continue
		}
		v, err := goversion.NewVersion(release.TagName)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// Download fetches the matching asset of a version's release to destPath.
func (g *GitHub) Download(ctx context.Context, v *goversion.Version, destPath string, reporter progress.Reporter) error {
	releases, err := g.releases(ctx)
	if err != nil {
		return err
	}

	assetName := g.assetName(v)
	for _, release := range releases {
		parsed, err := goversion.NewVersion(release.TagName)
		if err != nil || !parsed.Equal(v) {
			continue
		}
		for _, asset := range release.Assets {
			if asset.Name == assetName {
				return downloadToFile(ctx, g.client, g.retryDelay, asset.BrowserDownloadURL, destPath, reporter)
			}
		}
		return fmt.Errorf("release %s has no asset named %s", release.TagName, assetName)
	}
	return fmt.Errorf("no release found for version %s", v)
}

// ArchiveExt derives the archive extension from the asset pattern.
func (g *GitHub) ArchiveExt() string {
	ext := filepath.Ext(g.assetPattern)
	if ext == "" {
		return "zip"
	}
	return strings.TrimPrefix(ext, ".")
}

func (g *GitHub) assetName(v *goversion.Version) string {
	name := strings.ReplaceAll(g.assetPattern, "%version", v.Original())
	name = strings.ReplaceAll(name, "%os", runtime.GOOS)
	name = strings.ReplaceAll(name, "%arch", runtime.GOARCH)
	return name
}

func (g *GitHub) releases(ctx context.Context) ([]githubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases", g.baseURL, g.owner, g.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var releases []githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return releases, nil
}
