package updatemanager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltup/molt/progress"
	"github.com/moltup/molt/updater"
)

type fakeResolver struct {
	versions map[string][]byte
	err      error
}

func (r *fakeResolver) Versions(_ context.Context) ([]*goversion.Version, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*goversion.Version
	for s := range r.versions {
		out = append(out, goversion.Must(goversion.NewVersion(s)))
	}
	return out, nil
}

func (r *fakeResolver) Download(_ context.Context, v *goversion.Version, destPath string, reporter progress.Reporter) error {
	payload, ok := r.versions[v.Original()]
	if !ok {
		return fmt.Errorf("unknown version %s", v)
	}
	if reporter != nil {
		reporter.Report(0.5)
	}
	if err := os.WriteFile(destPath, payload, 0o644); err != nil {
		return err
	}
	if reporter != nil {
		reporter.Report(1)
	}
	return nil
}

func (r *fakeResolver) ArchiveExt() string { return "zip" }

// fakeExtractor writes the archive bytes as a single file named "app" in
// the destination directory.
type fakeExtractor struct {
	err error
}

func (e *fakeExtractor) Extract(_ context.Context, archivePath, destDir string, reporter progress.Reporter) error {
	if e.err != nil {
		return e.err
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(destDir, "app"), data, 0o755); err != nil {
		return err
	}
	if reporter != nil {
		reporter.Report(1)
	}
	return nil
}

type launchCall struct {
	updaterPath string
	argv        []string
	elevated    bool
}

func newTestManager(t *testing.T, resolver Resolver, extractor Extractor) (*Manager, *[]launchCall) {
	t.Helper()

	installDir := t.TempDir()
	hostExe := filepath.Join(installDir, "acme")
	require.NoError(t, os.WriteFile(hostExe, []byte("host binary"), 0o755))

	meta, err := NewMetadata("Acme", hostExe, goversion.Must(goversion.NewVersion("1.0.0.0")))
	require.NoError(t, err)

	m, err := New(meta, resolver, extractor,
		WithStorageRoot(t.TempDir()),
		WithUpdaterSource(func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte("helper binary"))), nil
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	var calls []launchCall
	m.launchFn = func(updaterPath string, argv []string, elevated bool) error {
		calls = append(calls, launchCall{updaterPath: updaterPath, argv: argv, elevated: elevated})
		return nil
	}
	return m, &calls
}

func Test_CheckForUpdates(t *testing.T) {
	testMatrix := []struct {
		name          string
		remote        []string
		expectUpdate  bool
		expectLastVer string
	}{
		{
			name:         "no versions discovered",
			remote:       nil,
			expectUpdate: false,
		},
		{
			name:          "newer version available",
			remote:        []string{"1.0.0.0", "1.2.0.0"},
			expectUpdate:  true,
			expectLastVer: "1.2.0.0",
		},
		{
			name:          "host already on the highest version",
			remote:        []string{"0.9.0.0", "1.0.0.0"},
			expectUpdate:  false,
			expectLastVer: "1.0.0.0",
		},
	}

	for _, c := range testMatrix {
		t.Run(c.name, func(t *testing.T) {
			resolver := &fakeResolver{versions: map[string][]byte{}}
			for _, s := range c.remote {
				resolver.versions[s] = []byte(s)
			}
			m, _ := newTestManager(t, resolver, &fakeExtractor{})

			result, err := m.CheckForUpdates(context.Background())
			require.NoError(t, err)
			assert.Equal(t, c.expectUpdate, result.CanUpdate)
			if c.expectLastVer == "" {
				assert.Nil(t, result.LastVersion)
			} else {
				require.NotNil(t, result.LastVersion)
				assert.Equal(t, c.expectLastVer, result.LastVersion.Original())
			}
			assert.Len(t, result.Versions, len(c.remote))
		})
	}
}

func Test_CheckForUpdatesResolverFailure(t *testing.T) {
	resolverErr := errors.New("feed unreachable")
	m, _ := newTestManager(t, &fakeResolver{err: resolverErr}, &fakeExtractor{})

	_, err := m.CheckForUpdates(context.Background())
	assert.ErrorIs(t, err, resolverErr)
}

func Test_PrepareUpdate(t *testing.T) {
	resolver := &fakeResolver{versions: map[string][]byte{"1.2.0.0": []byte("v1.2 payload")}}
	m, _ := newTestManager(t, resolver, &fakeExtractor{})
	v := goversion.Must(goversion.NewVersion("1.2.0.0"))

	assert.False(t, m.IsUpdatePrepared(v))

	var mu sync.Mutex
	var reported []float64
	reporter := progress.Func(func(f float64) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, f)
	})

	require.NoError(t, m.PrepareUpdate(context.Background(), v, reporter))

	assert.True(t, m.IsUpdatePrepared(v))

	// Staged archive is consumed.
	archives, err := m.layout.StagedArchives()
	require.NoError(t, err)
	assert.Empty(t, archives)

	// Content directory holds the extracted payload.
	data, err := os.ReadFile(filepath.Join(m.layout.ContentDir(v), "app"))
	require.NoError(t, err)
	assert.Equal(t, "v1.2 payload", string(data))

	// Helper binary is materialized.
	data, err = os.ReadFile(m.layout.UpdaterPath())
	require.NoError(t, err)
	assert.Equal(t, "helper binary", string(data))

	// Progress converges to 1.0 and never leaves [0,1].
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reported)
	assert.InDelta(t, 1.0, reported[len(reported)-1], 1e-9)
	for _, f := range reported {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}

	prepared, err := m.PreparedUpdates()
	require.NoError(t, err)
	require.Len(t, prepared, 1)
	assert.True(t, prepared[0].Equal(v))
}

func Test_PrepareUpdateExtractorFailure(t *testing.T) {
	resolver := &fakeResolver{versions: map[string][]byte{"1.2.0.0": []byte("payload")}}
	extractorErr := errors.New("corrupt archive")
	m, _ := newTestManager(t, resolver, &fakeExtractor{err: extractorErr})
	v := goversion.Must(goversion.NewVersion("1.2.0.0"))

	err := m.PrepareUpdate(context.Background(), v, nil)
	assert.ErrorIs(t, err, extractorErr)

	// Partial state is reported as not prepared and the orphaned archive
	// is removable.
	assert.False(t, m.IsUpdatePrepared(v))
	archives, err := m.layout.StagedArchives()
	require.NoError(t, err)
	assert.Len(t, archives, 1)

	require.NoError(t, m.Cleanup())
	archives, err = m.layout.StagedArchives()
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func Test_LaunchUpdater(t *testing.T) {
	resolver := &fakeResolver{versions: map[string][]byte{"1.2.0.0": []byte("payload")}}
	m, calls := newTestManager(t, resolver, &fakeExtractor{})
	v := goversion.Must(goversion.NewVersion("1.2.0.0"))

	// Not prepared yet.
	err := m.LaunchUpdater(v, LaunchOptions{})
	assert.ErrorIs(t, err, ErrNotPrepared)

	require.NoError(t, m.PrepareUpdate(context.Background(), v, nil))
	require.NoError(t, m.LaunchUpdater(v, LaunchOptions{
		Restart:               true,
		RestartArgs:           []string{"--resume", "two words"},
		AdditionalExecutables: []string{"sidecar"},
	}))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, m.layout.UpdaterPath(), call.updaterPath)
	assert.False(t, call.elevated)

	args, err := updater.ParseArgs(call.argv)
	require.NoError(t, err)
	assert.Equal(t, m.meta.FilePath, args.UpdateeFile)
	assert.Equal(t, m.layout.ContentDir(v), args.ContentDir)
	assert.True(t, args.Restart)
	assert.Equal(t, []string{"--resume", "two words"}, args.RestartArgs)
	require.Len(t, args.AdditionalExecutables, 1)
	assert.Equal(t, filepath.Join(filepath.Dir(m.meta.FilePath), "sidecar"), args.AdditionalExecutables[0])
}

func Test_ClosedManagerRejectsOperations(t *testing.T) {
	resolver := &fakeResolver{versions: map[string][]byte{}}
	m, _ := newTestManager(t, resolver, &fakeExtractor{})
	v := goversion.Must(goversion.NewVersion("1.2.0.0"))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close()) // idempotent

	_, err := m.CheckForUpdates(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.PrepareUpdate(context.Background(), v, nil), ErrClosed)
	assert.ErrorIs(t, m.LaunchUpdater(v, LaunchOptions{}), ErrClosed)
	assert.ErrorIs(t, m.Cleanup(), ErrClosed)
}

func Test_LockExcludesSecondManager(t *testing.T) {
	root := t.TempDir()
	resolver := &fakeResolver{versions: map[string][]byte{"1.2.0.0": []byte("payload")}}

	hostExe := filepath.Join(t.TempDir(), "acme")
	require.NoError(t, os.WriteFile(hostExe, []byte("host"), 0o755))
	meta, err := NewMetadata("Acme", hostExe, goversion.Must(goversion.NewVersion("1.0.0.0")))
	require.NoError(t, err)

	source := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte("helper"))), nil
	}

	first, err := New(meta, resolver, &fakeExtractor{}, WithStorageRoot(root), WithUpdaterSource(source))
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	second, err := New(meta, resolver, &fakeExtractor{}, WithStorageRoot(root), WithUpdaterSource(source))
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	v := goversion.Must(goversion.NewVersion("1.2.0.0"))
	require.NoError(t, first.PrepareUpdate(context.Background(), v, nil))

	// The second instance cannot take the lock while the first holds it.
	assert.ErrorIs(t, second.PrepareUpdate(context.Background(), v, nil), ErrLockUnavailable)

	// Releasing the first allows the second to proceed.
	require.NoError(t, first.Close())
	assert.NoError(t, second.PrepareUpdate(context.Background(), v, nil))
}

func Test_LastResultAndWatch(t *testing.T) {
	resolver := &fakeResolver{versions: map[string][]byte{}}
	m, _ := newTestManager(t, resolver, &fakeExtractor{})

	_, err := m.LastResult()
	assert.ErrorIs(t, err, ErrNoResult)

	require.NoError(t, m.layout.EnsureDir())
	want := updater.Result{Success: true, Version: "1.2.0.0", ExecutedAt: time.Now().UTC()}
	require.NoError(t, updater.WriteResult(m.layout.ResultPath(), want))

	got, err := m.LastResult()
	require.NoError(t, err)
	assert.Equal(t, want.Version, got.Version)
	assert.True(t, got.Success)

	// Watch returns the pre-existing result immediately and consumes it.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err = m.WatchResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Version, got.Version)

	_, err = m.LastResult()
	assert.ErrorIs(t, err, ErrNoResult)
}

func Test_WatchResultSeesLateWrite(t *testing.T) {
	resolver := &fakeResolver{versions: map[string][]byte{}}
	m, _ := newTestManager(t, resolver, &fakeExtractor{})
	require.NoError(t, m.layout.EnsureDir())

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = updater.WriteResult(m.layout.ResultPath(), updater.Result{Success: false, Error: "copy failed"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := m.WatchResult(ctx)
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.Equal(t, "copy failed", got.Error)
}
