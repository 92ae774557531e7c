//go:build unix

package updater

import (
	"os/exec"
	"syscall"
)

const nativeExeExt = ""

// setRestartProcAttr starts the restarted application in a new session so it
// does not die with the helper.
func setRestartProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
