package updatemanager

import "errors"

var (
	// ErrClosed is returned when an operation is invoked after Close.
	ErrClosed = errors.New("update manager is closed")
	// ErrLockUnavailable is returned when another manager instance holds
	// the storage lock.
	ErrLockUnavailable = errors.New("storage lock is held by another instance")
	// ErrUpdaterRunning is returned when a previously launched helper
	// process has not finished yet.
	ErrUpdaterRunning = errors.New("updater helper is already running")
	// ErrNotPrepared is returned by LaunchUpdater for a version whose
	// payload is not fully staged.
	ErrNotPrepared = errors.New("update is not prepared")
)
