package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	goversion "github.com/hashicorp/go-version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltup/molt/progress"
)

func versionStrings(versions []*goversion.Version) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Original())
	}
	return out
}

func TestWebFeed_Versions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.txt":
			fmt.Fprintln(w, "# channel: stable")
			fmt.Fprintln(w, "1.0.0.0 packages/1.0.0.0.zip")
			fmt.Fprintln(w, "")
			fmt.Fprintln(w, "2.0.0.0 http://"+r.Host+"/absolute/2.0.0.0.zip")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	feed := NewWebFeed(srv.URL + "/feed.txt")
	versions, err := feed.Versions(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1.0.0.0", "2.0.0.0"}, versionStrings(versions))
}

func TestWebFeed_Versions_MalformedLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "1.0.0.0 a.zip extra-field")
	}))
	defer srv.Close()

	_, err := NewWebFeed(srv.URL + "/feed.txt").Versions(context.Background())
	assert.ErrorContains(t, err, "malformed feed line")
}

func TestWebFeed_Download_RelativeURL(t *testing.T) {
	payload := []byte("archive-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/releases/feed.txt":
			fmt.Fprintln(w, "1.2.0.0 packages/1.2.0.0.zip")
		case "/releases/packages/1.2.0.0.zip":
			_, _ = w.Write(payload)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	feed := NewWebFeed(srv.URL + "/releases/feed.txt")
	feed.retryDelay = 0

	dest := filepath.Join(t.TempDir(), "pkg.zip")
	v := goversion.Must(goversion.NewVersion("1.2.0.0"))

	var last float64
	err := feed.Download(context.Background(), v, dest, progress.Func(func(f float64) {
		last = f
	}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, last, 0.001)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestWebFeed_Download_UnknownVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "1.0.0.0 packages/1.0.0.0.zip")
	}))
	defer srv.Close()

	feed := NewWebFeed(srv.URL + "/feed.txt")
	feed.retryDelay = 0

	v := goversion.Must(goversion.NewVersion("9.9.9.9"))
	err := feed.Download(context.Background(), v, filepath.Join(t.TempDir(), "pkg.zip"), nil)
	assert.ErrorContains(t, err, "not present in feed")
}

func TestDownloadToFile_RetriesOnce(t *testing.T) {
	var calls atomic.Int32
	payload := []byte("eventually fine")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "pkg.zip")
	err := downloadToFile(context.Background(), srv.Client(), 1, srv.URL, dest, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownloadToFile_NoRetryWhenDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := downloadToFile(context.Background(), srv.Client(), 0, srv.URL, filepath.Join(t.TempDir(), "pkg.zip"), nil)
	assert.ErrorContains(t, err, "unexpected HTTP status")
	assert.EqualValues(t, 1, calls.Load())
}

func TestGitHub_Versions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/rocket/releases", r.URL.Path)
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer sesame", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[
			{"tag_name": "v2.0.0", "assets": []},
			{"tag_name": "v1.5.0", "draft": true, "assets": []},
			{"tag_name": "nightly", "assets": []},
			{"tag_name": "v1.0.0", "assets": []}
		]`)
	}))
	defer srv.Close()

	gh := NewGitHub("acme", "rocket").WithToken("sesame")
	gh.baseURL = srv.URL

	versions, err := gh.Versions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v2.0.0", "v1.0.0"}, versionStrings(versions))
}

func TestGitHub_Download(t *testing.T) {
	payload := []byte("release-asset")
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	assetName := fmt.Sprintf("rocket-%s-%s.zip", runtime.GOOS, runtime.GOARCH)
	mux.HandleFunc("/repos/acme/rocket/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[
			{"tag_name": "v1.1.0", "assets": [
				{"name": "other.txt", "browser_download_url": "%[1]s/dl/other.txt"},
				{"name": "%[2]s", "browser_download_url": "%[1]s/dl/%[2]s"}
			]}
		]`, srv.URL, assetName)
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})

	gh := NewGitHub("acme", "rocket")
	gh.baseURL = srv.URL
	gh.retryDelay = 0

	dest := filepath.Join(t.TempDir(), "pkg.zip")
	v := goversion.Must(goversion.NewVersion("v1.1.0"))
	require.NoError(t, gh.Download(context.Background(), v, dest, nil))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestGitHub_Download_MissingAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"tag_name": "v1.1.0", "assets": []}]`)
	}))
	defer srv.Close()

	gh := NewGitHub("acme", "rocket")
	gh.baseURL = srv.URL

	v := goversion.Must(goversion.NewVersion("v1.1.0"))
	err := gh.Download(context.Background(), v, filepath.Join(t.TempDir(), "pkg.zip"), nil)
	assert.ErrorContains(t, err, "has no asset named")
}

func TestGitHub_ArchiveExt(t *testing.T) {
	gh := NewGitHub("acme", "rocket")
	assert.Equal(t, "zip", gh.ArchiveExt())
	assert.Equal(t, "gz", gh.WithAssetPattern("rocket-%version.tar.gz").ArchiveExt())
}

func TestLocal_VersionsAndDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.0.0.0.zip"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.0.0.0.zip"), []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.zip"), []byte("skip"), 0o644))

	local := NewLocal(dir, "zip")
	assert.Equal(t, "zip", local.ArchiveExt())

	versions, err := local.Versions(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1.0.0.0", "2.0.0.0"}, versionStrings(versions))

	var last float64
	dest := filepath.Join(t.TempDir(), "pkg.zip")
	v := goversion.Must(goversion.NewVersion("2.0.0.0"))
	require.NoError(t, local.Download(context.Background(), v, dest, progress.Func(func(f float64) {
		last = f
	})))
	assert.InDelta(t, 1.0, last, 0.001)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
