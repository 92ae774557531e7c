// Package storage defines the on-disk layout used to stage updates for one
// application: downloaded archives, extracted content directories named by
// version, the cross-process lock file, the materialized updater helper and
// its log, and the helper's result file.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

const (
	// LockFileName is the exclusive lock file inside the storage directory.
	LockFileName = "molt.lock"
	// ResultFileName holds the outcome of the last helper run.
	ResultFileName = "result.json"
	// UpdaterLogFileName is the helper's append-only log.
	UpdaterLogFileName = "updater.log"

	updaterSuffix = ".Updater"
)

// Layout resolves the paths of one application's staging area. All staged
// state for an application lives under a single directory namespaced by the
// application name.
type Layout struct {
	dir     string
	appName string
}

// NewLayout roots the layout at the platform-standard per-user application
// data location.
func NewLayout(appName string) (*Layout, error) {
	if appName == "" {
		return nil, fmt.Errorf("application name cannot be empty")
	}
	root, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user config dir: %w", err)
	}
	return NewLayoutAt(root, appName), nil
}

// NewLayoutAt roots the layout at an explicit directory. Used by tests and
// by deployments with a non-standard data location.
func NewLayoutAt(root, appName string) *Layout {
	return &Layout{
		dir:     filepath.Join(root, appName),
		appName: appName,
	}
}

// Dir returns the per-application storage directory.
func (l *Layout) Dir() string { return l.dir }

// AppName returns the application name the layout is namespaced by.
func (l *Layout) AppName() string { return l.appName }

// LockPath returns the path of the exclusive lock file.
func (l *Layout) LockPath() string { return filepath.Join(l.dir, LockFileName) }

// UpdaterPath returns the path of the materialized helper binary.
func (l *Layout) UpdaterPath() string {
	return filepath.Join(l.dir, l.appName+updaterSuffix+exeSuffix)
}

// ResultPath returns the path of the helper's result file.
func (l *Layout) ResultPath() string { return filepath.Join(l.dir, ResultFileName) }

// UpdaterLogPath returns the path of the helper's log file.
func (l *Layout) UpdaterLogPath() string { return filepath.Join(l.dir, UpdaterLogFileName) }

// ArchivePath returns the transient staged archive path for a version. The
// extension is given without a leading dot.
func (l *Layout) ArchivePath(v *goversion.Version, ext string) string {
	return filepath.Join(l.dir, v.Original()+"."+strings.TrimPrefix(ext, "."))
}

// ContentDir returns the staged content directory for a version.
func (l *Layout) ContentDir(v *goversion.Version) string {
	return filepath.Join(l.dir, v.Original())
}

// EnsureDir creates the storage directory if it does not exist.
func (l *Layout) EnsureDir() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir %s: %w", l.dir, err)
	}
	return nil
}

// IsPrepared reports whether a version's payload is fully staged: the content
// directory exists, the helper binary is materialized, and no staged archive
// for that version remains. A partial prepare fails at least one of the three
// and is therefore reported as not prepared.
func (l *Layout) IsPrepared(v *goversion.Version) bool {
	if info, err := os.Stat(l.ContentDir(v)); err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.Stat(l.UpdaterPath()); err != nil {
		return false
	}
	archives, err := l.stagedArchives(v)
	if err != nil || len(archives) > 0 {
		return false
	}
	return true
}

// PreparedVersions enumerates the storage directory and returns every version
// for which IsPrepared holds. Entries whose name does not parse as a version
// are skipped, not errors.
func (l *Layout) PreparedVersions() ([]*goversion.Version, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage dir %s: %w", l.dir, err)
	}

	var prepared []*goversion.Version
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, err := goversion.NewVersion(entry.Name())
		if err != nil {
			continue
		}
		if l.IsPrepared(v) {
			prepared = append(prepared, v)
		}
	}
	return prepared, nil
}

// StagedArchives returns the staged archive files of every version still
// present in the storage directory. Orphaned archives indicate a failed or
// partial prepare.
func (l *Layout) StagedArchives() ([]string, error) {
	return l.stagedArchives(nil)
}

// stagedArchives lists archive files, optionally restricted to one version.
// An archive file is any non-directory entry whose name is a version followed
// by an extension, which excludes the layout's own fixed files.
func (l *Layout) stagedArchives(v *goversion.Version) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage dir %s: %w", l.dir, err)
	}

	var archives []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base, ok := archiveVersionName(entry.Name())
		if !ok {
			continue
		}
		// a prefix match is not enough here: an orphaned 1.2.0.zip must
		// not count as an archive of version 1.2
		if v != nil && base != v.Original() {
			continue
		}
		archives = append(archives, filepath.Join(l.dir, entry.Name()))
	}
	return archives, nil
}

// archiveVersionName peels extensions off the right of name until what
// remains parses as a version, so compound extensions like ".tar.gz" are
// recognized. It returns that version part as written in the file name.
func archiveVersionName(name string) (string, bool) {
	base := name
	for {
		ext := filepath.Ext(base)
		if ext == "" || ext == base {
			return "", false
		}
		base = strings.TrimSuffix(base, ext)
		if _, err := goversion.NewVersion(base); err == nil {
			return base, true
		}
	}
}
