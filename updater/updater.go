// Package updater implements the detached helper protocol: wait for write
// access to the target executables, copy the staged content over the
// installation, optionally restart the application and delete the staging
// directory. The helper is fire-and-forget: it has no supervisor to report
// to, so the process entry point logs failures and exits cleanly instead of
// propagating them.
package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/moltup/molt/storage"
	"github.com/moltup/molt/util"
)

// Options tune the helper protocol.
type Options struct {
	// WaitTimeout bounds the write-access wait barrier. Zero waits
	// indefinitely.
	WaitTimeout time.Duration
	// RuntimeHost is the program used to launch a non-native updatee,
	// receiving the updatee path as its first argument.
	RuntimeHost string
	// DryRun parses arguments and runs the wait barrier but skips the
	// copy, restart and cleanup steps.
	DryRun bool
}

// Run executes the helper protocol. The outcome is persisted next to the
// staging directory before returning so the updated application can inspect
// it on its next start.
func Run(ctx context.Context, args Args, opts Options) (runErr error) {
	versionName := filepath.Base(args.ContentDir)
	defer func() {
		result := Result{
			Success:    runErr == nil,
			Version:    versionName,
			ExecutedAt: time.Now(),
		}
		if runErr != nil {
			result.Error = runErr.Error()
		}
		resultPath := filepath.Join(filepath.Dir(args.ContentDir), storage.ResultFileName)
		if err := WriteResult(resultPath, result); err != nil {
			log.Errorf("failed to write result file: %v", err)
		}
	}()

	if err := validateArgs(args); err != nil {
		return err
	}

	waitTargets := append([]string{args.UpdateeFile}, args.AdditionalExecutables...)
	if err := awaitWritable(ctx, waitTargets, opts.WaitTimeout); err != nil {
		return err
	}

	if opts.DryRun {
		log.Infof("dry-run enabled, skipping copy, restart and cleanup")
		return nil
	}

	installDir := filepath.Dir(args.UpdateeFile)
	log.Infof("copying staged content %s over %s", args.ContentDir, installDir)
	if err := util.CopyDir(args.ContentDir, installDir); err != nil {
		return fmt.Errorf("copy staged content: %w", err)
	}

	if args.Restart {
		if err := restart(args, opts.RuntimeHost); err != nil {
			return err
		}
	}

	log.Infof("deleting staging directory %s", args.ContentDir)
	if err := os.RemoveAll(args.ContentDir); err != nil {
		return fmt.Errorf("delete staging directory: %w", err)
	}
	return nil
}

func validateArgs(args Args) error {
	if args.UpdateeFile == "" {
		return fmt.Errorf("updatee file path cannot be empty")
	}
	if args.ContentDir == "" {
		return fmt.Errorf("content directory path cannot be empty")
	}
	if info, err := os.Stat(args.ContentDir); err != nil || !info.IsDir() {
		return fmt.Errorf("content directory %s is not a directory", args.ContentDir)
	}
	return nil
}
