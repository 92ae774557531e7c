// Package updatemanager orchestrates self-updates for a running application:
// it discovers newer versions through a Resolver, stages their payload on
// local disk, and hands off to a detached helper process that overwrites the
// application's files and restarts it. A cross-process file lock keeps the
// staging area exclusive to one manager instance per machine.
package updatemanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/moltup/molt/internal/flock"
	"github.com/moltup/molt/storage"
)

// UpdaterSource supplies the bytes of the helper binary the manager
// materializes into the storage directory.
type UpdaterSource func() (io.ReadCloser, error)

// Manager coordinates checking, preparing and launching updates for one
// application. Methods are safe for use from multiple goroutines, but at
// most one PrepareUpdate per version may run at a time: concurrent prepares
// of the same version race on the staging directory and their outcome is
// undefined.
type Manager struct {
	meta      Metadata
	layout    *storage.Layout
	resolver  Resolver
	extractor Extractor

	updaterSource UpdaterSource
	// launchFn starts the helper binary; replaced in tests.
	launchFn func(updaterPath string, argv []string, elevated bool) error

	mu     sync.Mutex
	lock   *os.File
	closed bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithStorageRoot overrides the platform-standard per-user data location the
// staging directory is rooted at.
func WithStorageRoot(root string) Option {
	return func(m *Manager) {
		m.layout = storage.NewLayoutAt(root, m.meta.Name)
	}
}

// WithUpdaterSource overrides where the helper binary bytes come from. The
// default copies the running executable, which works for applications that
// embed the helper entry point and dispatch on their arguments.
func WithUpdaterSource(source UpdaterSource) Option {
	return func(m *Manager) {
		m.updaterSource = source
	}
}

// New creates a manager for the given application. The storage lock is not
// taken here; it is acquired lazily by the first mutating operation and held
// until Close.
func New(meta Metadata, resolver Resolver, extractor Extractor, opts ...Option) (*Manager, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}

	layout, err := storage.NewLayout(meta.Name)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		meta:          meta,
		layout:        layout,
		resolver:      resolver,
		extractor:     extractor,
		updaterSource: selfUpdaterSource,
		launchFn:      launchDetached,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Metadata returns the host application identity the manager was built for.
func (m *Manager) Metadata() Metadata { return m.meta }

// StorageDir returns the per-application staging directory.
func (m *Manager) StorageDir() string { return m.layout.Dir() }

// IsUpdatePrepared reports whether a version's payload is fully staged and
// ready to apply. It is a pure predicate with no side effects.
func (m *Manager) IsUpdatePrepared(v *goversion.Version) bool {
	return m.layout.IsPrepared(v)
}

// PreparedUpdates returns every version with a fully staged payload. Storage
// entries that do not parse as versions are skipped.
func (m *Manager) PreparedUpdates() ([]*goversion.Version, error) {
	return m.layout.PreparedVersions()
}

// Close releases the storage lock if held. It is idempotent; every mutating
// operation afterwards fails with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.lock == nil {
		return nil
	}
	lock := m.lock
	m.lock = nil
	if err := flock.Unlock(lock); err != nil {
		return fmt.Errorf("release storage lock: %w", err)
	}
	return nil
}

// guardMutation validates manager state and lazily acquires the storage
// lock. Callers must treat a non-nil error as fatal for the operation.
func (m *Manager) guardMutation() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.lock != nil {
		return nil
	}

	if err := m.layout.EnsureDir(); err != nil {
		return err
	}

	lock, err := flock.TryLock(m.layout.LockPath())
	if err != nil {
		if errors.Is(err, flock.ErrLocked) {
			return ErrLockUnavailable
		}
		return fmt.Errorf("acquire storage lock: %w", err)
	}
	m.lock = lock
	log.Debugf("acquired storage lock %s", m.layout.LockPath())
	return nil
}

// updaterRunning detects an in-flight helper by probing write access to the
// helper binary itself: while the helper runs, its executable cannot be
// opened for writing.
func (m *Manager) updaterRunning() bool {
	f, err := os.OpenFile(m.layout.UpdaterPath(), os.O_WRONLY, 0)
	if err != nil {
		return !os.IsNotExist(err) && !os.IsPermission(err)
	}
	if err := f.Close(); err != nil {
		log.Warnf("failed to close updater probe handle: %v", err)
	}
	return false
}

// logFailure logs host-side failures before they are re-raised to the
// caller. Cancellation is re-raised transparently and never logged as an
// error.
func logFailure(op string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	log.Errorf("%s failed: %v", op, err)
}
