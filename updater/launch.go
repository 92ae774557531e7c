package updater

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// launchPlan is the resolved way to start the updated application.
type launchPlan struct {
	program     string
	prependArgs []string
}

// decideLaunch resolves what to execute when a restart was requested. The
// whole heuristic lives here so it can be hardened or disabled in one place:
//
//  1. a natively executable updatee is launched directly;
//  2. otherwise a sibling file with the same base name and the native
//     executable extension is launched instead; note that this fallback
//     trusts whatever file carries that name in the installation directory;
//  3. otherwise the updatee is handed to the configured runtime host with
//     its own path as the first argument. With no runtime host configured
//     the updatee is launched directly and the OS decides.
func decideLaunch(updateeFile, runtimeHost string) launchPlan {
	ext := filepath.Ext(updateeFile)
	if strings.EqualFold(ext, nativeExeExt) {
		return launchPlan{program: updateeFile}
	}

	sibling := strings.TrimSuffix(updateeFile, ext) + nativeExeExt
	if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
		log.Infof("launching sibling executable %s instead of %s", sibling, updateeFile)
		return launchPlan{program: sibling}
	}

	if runtimeHost != "" {
		return launchPlan{program: runtimeHost, prependArgs: []string{updateeFile}}
	}

	log.Warnf("no runtime host configured for %s, launching it directly", updateeFile)
	return launchPlan{program: updateeFile}
}

// restart starts the updated application detached from the helper, with a
// fresh console, forwarding the routed arguments unchanged.
func restart(args Args, runtimeHost string) error {
	plan := decideLaunch(args.UpdateeFile, runtimeHost)

	argv := append(plan.prependArgs, args.RestartArgs...)
	cmd := exec.Command(plan.program, argv...)
	cmd.Dir = filepath.Dir(args.UpdateeFile)
	setRestartProcAttr(cmd)

	log.Infof("restarting application: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", plan.program, err)
	}

	if err := cmd.Process.Release(); err != nil {
		log.Warnf("failed to release restarted process: %v", err)
	}

	return nil
}
