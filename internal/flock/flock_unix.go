//go:build unix

package flock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// TryLock attempts to take an exclusive advisory lock on path without
// blocking. On success the returned file owns the lock; it stays locked for
// the lifetime of the descriptor and is released by Unlock or process exit.
// If another descriptor holds the lock, ErrLocked is returned.
func TryLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		closeErr := f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		if closeErr != nil {
			return nil, fmt.Errorf("flock %s: %w (close: %v)", path, err, closeErr)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return f, nil
}

// Unlock releases the lock and closes the underlying file. It is safe to
// call with nil.
func Unlock(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("funlock: %w", err)
	}
	return f.Close()
}
