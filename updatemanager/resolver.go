package updatemanager

import (
	"context"

	goversion "github.com/hashicorp/go-version"

	"github.com/moltup/molt/progress"
)

// Resolver discovers available versions and fetches their artifacts. The
// manager never looks inside the artifact; it only stages whatever the
// resolver writes to the destination path.
type Resolver interface {
	// Versions returns every version the package source knows about.
	Versions(ctx context.Context) ([]*goversion.Version, error)
	// Download writes the artifact of a version to destPath in full, or
	// fails. A failed download must not leave a complete-looking file
	// behind; a partial file is tolerated because the next prepare
	// truncates it.
	Download(ctx context.Context, v *goversion.Version, destPath string, reporter progress.Reporter) error
	// ArchiveExt is the artifact file extension without a leading dot,
	// used to name the staged archive.
	ArchiveExt() string
}

// Extractor unpacks a downloaded artifact. The destination directory is
// guaranteed to exist and be empty before the call.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string, reporter progress.Reporter) error
}
