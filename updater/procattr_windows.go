//go:build windows

package updater

import (
	"os/exec"
	"syscall"
)

const nativeExeExt = ".exe"

// setRestartProcAttr gives the restarted application its own console instead
// of sharing the helper's, and detaches it from the helper's process group.
func setRestartProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x00000010, // 0x00000010 is CREATE_NEW_CONSOLE
	}
}
