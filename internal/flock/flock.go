// Package flock provides a named, non-blocking, cross-process exclusive lock
// backed by a file handle the OS guarantees is held by at most one process.
// The lock is released by Unlock or implicitly when the owning process exits.
package flock

import "errors"

// ErrLocked is returned by TryLock when another process already holds the
// lock for the given path.
var ErrLocked = errors.New("lock is held by another process")
