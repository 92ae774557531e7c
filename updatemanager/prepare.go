package updatemanager

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/moltup/molt/progress"
)

// Weight intervals of the two prepare phases within the overall progress
// range: download fills the first 90%, extraction the remaining 10%.
const (
	downloadWeight = 0.9
	extractWeight  = 0.1
)

// PrepareUpdate downloads and stages the payload of a version so it can be
// applied by the helper: the archive is downloaded to its staged path,
// extracted into a freshly reset content directory, the archive is deleted
// and the helper binary is materialized. A failure leaves partial state
// behind; IsUpdatePrepared reports such a version as not prepared and a
// retry overwrites the leftovers. reporter may be nil.
func (m *Manager) PrepareUpdate(ctx context.Context, v *goversion.Version, reporter progress.Reporter) error {
	if err := m.prepareUpdate(ctx, v, reporter); err != nil {
		logFailure(fmt.Sprintf("prepare update %s", v), err)
		return err
	}
	log.Infof("update %s prepared", v)
	return nil
}

func (m *Manager) prepareUpdate(ctx context.Context, v *goversion.Version, reporter progress.Reporter) error {
	if v == nil {
		return fmt.Errorf("version cannot be nil")
	}
	if err := m.guardMutation(); err != nil {
		return err
	}
	if m.updaterRunning() {
		return ErrUpdaterRunning
	}

	mux := progress.NewMux(reporter)
	downloadReporter := mux.Split(0, downloadWeight)
	extractReporter := mux.Split(downloadWeight, extractWeight)

	archivePath := m.layout.ArchivePath(v, m.resolver.ArchiveExt())
	log.Infof("downloading update %s to %s", v, archivePath)
	if err := m.resolver.Download(ctx, v, archivePath, downloadReporter); err != nil {
		return fmt.Errorf("download update %s: %w", v, err)
	}

	contentDir := m.layout.ContentDir(v)
	if err := os.RemoveAll(contentDir); err != nil {
		return fmt.Errorf("reset content dir %s: %w", contentDir, err)
	}
	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		return fmt.Errorf("create content dir %s: %w", contentDir, err)
	}

	log.Infof("extracting %s into %s", archivePath, contentDir)
	if err := m.extractor.Extract(ctx, archivePath, contentDir, extractReporter); err != nil {
		return fmt.Errorf("extract update %s: %w", v, err)
	}

	if err := os.Remove(archivePath); err != nil {
		return fmt.Errorf("delete staged archive %s: %w", archivePath, err)
	}

	if err := m.materializeUpdater(); err != nil {
		return err
	}

	return nil
}

// materializeUpdater writes the helper binary into the storage directory.
// It overwrites any previous copy, so a newer application version always
// ships its own helper.
func (m *Manager) materializeUpdater() error {
	src, err := m.updaterSource()
	if err != nil {
		return fmt.Errorf("open updater source: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warnf("failed to close updater source: %v", err)
		}
	}()

	dst := m.layout.UpdaterPath()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create updater binary %s: %w", dst, err)
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Warnf("failed to close updater binary: %v", err)
		}
	}()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write updater binary %s: %w", dst, err)
	}
	return nil
}

// selfUpdaterSource copies the running executable. Applications embedding
// the helper entry point use this default; others supply their own source.
func selfUpdaterSource() (io.ReadCloser, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return os.Open(exe)
}

// Cleanup removes orphaned staged archives left behind by failed or
// interrupted prepares. Prepared content directories are never touched.
func (m *Manager) Cleanup() error {
	if err := m.guardMutation(); err != nil {
		return err
	}

	archives, err := m.layout.StagedArchives()
	if err != nil {
		return err
	}

	var merr *multierror.Error
	for _, archive := range archives {
		log.Infof("removing orphaned archive %s", archive)
		if err := os.Remove(archive); err != nil && !os.IsNotExist(err) {
			merr = multierror.Append(merr, fmt.Errorf("remove %s: %w", archive, err))
		}
	}
	return merr.ErrorOrNil()
}
