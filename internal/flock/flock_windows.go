//go:build windows

package flock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// TryLock attempts to open path with no sharing allowed, which succeeds for
// at most one process at a time. On success the returned file owns the lock;
// closing the handle (Unlock or process exit) releases it. If another
// process holds the handle, ErrLocked is returned.
func TryLock(path string) (*os.File, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("encode lock path %s: %w", path, err)
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, // no sharing: the OS enforces single ownership
		nil,
		windows.OPEN_ALWAYS,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_SHARING_VIOLATION) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	return os.NewFile(uintptr(handle), path), nil
}

// Unlock releases the lock by closing the exclusive handle. It is safe to
// call with nil.
func Unlock(f *os.File) error {
	if f == nil {
		return nil
	}
	return f.Close()
}
