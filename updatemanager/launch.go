package updatemanager

import (
	"fmt"
	"path/filepath"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/moltup/molt/updater"
	"github.com/moltup/molt/util"
)

// LaunchOptions configure how the helper applies a prepared update.
type LaunchOptions struct {
	// Restart relaunches the application after the copy.
	Restart bool
	// RestartArgs are forwarded unchanged to the relaunched application.
	RestartArgs []string
	// AdditionalExecutables are further executables the helper must wait
	// on before copying. Relative paths are resolved against the host
	// executable's directory.
	AdditionalExecutables []string
}

// LaunchUpdater starts the detached helper process for a prepared version
// and returns as soon as the helper has been started: the host process is
// expected to exit right after this call, releasing its files so the helper
// can overwrite them. There is no cancellation path once the helper is
// running.
//
// When the installation directory is not writable by the current user the
// helper is started through the platform's elevated-execution request
// instead of a plain detached launch.
func (m *Manager) LaunchUpdater(v *goversion.Version, opts LaunchOptions) error {
	if err := m.launchUpdater(v, opts); err != nil {
		logFailure(fmt.Sprintf("launch updater for %s", v), err)
		return err
	}
	return nil
}

func (m *Manager) launchUpdater(v *goversion.Version, opts LaunchOptions) error {
	if v == nil {
		return fmt.Errorf("version cannot be nil")
	}
	if err := m.guardMutation(); err != nil {
		return err
	}
	if m.updaterRunning() {
		return ErrUpdaterRunning
	}
	if !m.layout.IsPrepared(v) {
		return fmt.Errorf("version %s: %w", v, ErrNotPrepared)
	}

	installDir := filepath.Dir(m.meta.FilePath)
	additional := make([]string, 0, len(opts.AdditionalExecutables))
	for _, exe := range opts.AdditionalExecutables {
		if !filepath.IsAbs(exe) {
			exe = filepath.Join(installDir, exe)
		}
		additional = append(additional, exe)
	}

	argv := updater.Args{
		UpdateeFile:           m.meta.FilePath,
		ContentDir:            m.layout.ContentDir(v),
		Restart:               opts.Restart,
		RestartArgs:           opts.RestartArgs,
		AdditionalExecutables: additional,
	}.Encode()

	elevated := !util.DirWritable(installDir)
	if elevated {
		log.Infof("installation directory %s is not writable, requesting elevation", installDir)
	}

	log.Infof("starting updater helper for version %s", v)
	if err := m.launchFn(m.layout.UpdaterPath(), argv, elevated); err != nil {
		return fmt.Errorf("start updater helper: %w", err)
	}
	return nil
}
