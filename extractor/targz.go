package extractor

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/moltup/molt/progress"
)

// TarGz extracts gzip-compressed tar archives.
type TarGz struct{}

// NewTarGz returns a tar.gz extractor.
func NewTarGz() *TarGz { return &TarGz{} }

// Extract unpacks archivePath into destDir. The entry count is unknown up
// front, so progress is reported against the compressed byte offset instead.
func (t *TarGz) Extract(ctx context.Context, archivePath, destDir string, reporter progress.Reporter) error {
	if reporter == nil {
		reporter = progress.Discard
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	counted := &countingReader{r: f}

	gz, err := gzip.NewReader(counted)
	if err != nil {
		return fmt.Errorf("read gzip header: %w", err)
	}
	defer func() {
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		rel := filepath.Clean(hdr.Name)
		if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			continue
		}
		target := filepath.Join(destDir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeTarEntry(tr, target, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			// symlinks and specials are not part of update payloads
			continue
		}

		if info.Size() > 0 {
			reporter.Report(float64(counted.n) / float64(info.Size()))
		}
	}
	reporter.Report(1)
	return nil
}

func writeTarEntry(r io.Reader, target string, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
