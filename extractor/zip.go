// Package extractor ships archive extractors for staged update payloads.
// Extraction guards against path traversal and reports per-entry progress.
package extractor

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/moltup/molt/progress"
)

// Zip extracts zip archives.
type Zip struct{}

// NewZip returns a zip extractor.
func NewZip() *Zip { return &Zip{} }

// Extract unpacks archivePath into destDir. Entries escaping the destination
// directory are skipped; symlinks are not materialized.
func (z *Zip) Extract(ctx context.Context, archivePath, destDir string, reporter progress.Reporter) error {
	if reporter == nil {
		reporter = progress.Discard
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer func() {
		_ = r.Close()
	}()

	total := len(r.File)
	for i, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := filepath.Clean(f.Name)
		if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			continue
		}
		target := filepath.Join(destDir, rel)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			reporter.Report(float64(i+1) / float64(total))
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
		reporter.Report(float64(i+1) / float64(total))
	}
	// skipped entries do not report, so close the range explicitly
	reporter.Report(1)
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}
