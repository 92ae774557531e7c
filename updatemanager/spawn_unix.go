//go:build unix

package updatemanager

import (
	"os/exec"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// launchDetached starts the helper in a new session so it survives the host
// process exiting. Elevated launches go through pkexec.
func launchDetached(updaterPath string, argv []string, elevated bool) error {
	var cmd *exec.Cmd
	if elevated {
		cmd = exec.Command("pkexec", append([]string{updaterPath}, argv...)...)
	} else {
		cmd = exec.Command(updaterPath, argv...)
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
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
