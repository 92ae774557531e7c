//go:build windows

package updatemanager

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// launchDetached starts the helper detached from the host's console and
// process group. Elevated launches go through the shell's "runas" verb,
// which triggers the UAC consent prompt.
func launchDetached(updaterPath string, argv []string, elevated bool) error {
	if elevated {
		return launchElevated(updaterPath, argv)
	}

	cmd := exec.Command(updaterPath, argv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x00000008, // 0x00000008 is DETACHED_PROCESS
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	log.Infof("updater started with PID %d", cmd.Process.Pid)

	// Release the process so the OS can fully detach it
	if err := cmd.Process.Release(); err != nil {
		log.Warnf("failed to release updater process: %v", err)
	}
	return nil
}

func launchElevated(updaterPath string, argv []string) error {
	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	exe, err := windows.UTF16PtrFromString(updaterPath)
	if err != nil {
		return err
	}

	escaped := make([]string, 0, len(argv))
	for _, arg := range argv {
		escaped = append(escaped, syscall.EscapeArg(arg))
	}
	params, err := windows.UTF16PtrFromString(strings.Join(escaped, " "))
	if err != nil {
		return err
	}
	dir, err := windows.UTF16PtrFromString(filepath.Dir(updaterPath))
	if err != nil {
		return err
	}

	if err := windows.ShellExecute(0, verb, exe, params, dir, windows.SW_HIDE); err != nil {
		return fmt.Errorf("elevated launch: %w", err)
	}
	return nil
}
