package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/moltup/molt/progress"
)

// Local resolves versions from a directory of archives named
// `{version}.{ext}`. Useful for air-gapped deployments and tests.
type Local struct {
	dir string
	ext string
}

// NewLocal creates a resolver over dir looking for archives with the given
// extension (without a leading dot).
func NewLocal(dir, ext string) *Local {
	return &Local{dir: dir, ext: strings.TrimPrefix(ext, ".")}
}

// Versions scans the directory. Files whose base name does not parse as a
// version are skipped.
func (l *Local) Versions(_ context.Context) ([]*goversion.Version, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read package dir %s: %w", l.dir, err)
	}

	suffix := "." + l.ext
	var versions []*goversion.Version
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		v, err := goversion.NewVersion(strings.TrimSuffix(entry.Name(), suffix))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// Download copies the version's archive to destPath.
func (l *Local) Download(ctx context.Context, v *goversion.Version, destPath string, reporter progress.Reporter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	srcPath := filepath.Join(l.dir, v.Original()+"."+l.ext)
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open package %s: %w", srcPath, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warnf("failed to close package file: %v", err)
		}
	}()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat package %s: %w", srcPath, err)
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", destPath, err)
	}
	defer func() {
		if err := dst.Close(); err != nil {
			log.Warnf("failed to close destination file: %v", err)
		}
	}()

	counter := progress.NewCountingWriter(reporter, info.Size())
	if _, err := io.Copy(io.MultiWriter(dst, counter), src); err != nil {
		return fmt.Errorf("copy package: %w", err)
	}
	return nil
}

// ArchiveExt returns the configured archive extension.
func (l *Local) ArchiveExt() string { return l.ext }
