package main

import (
	"context"
	"fmt"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/spf13/cobra"

	"github.com/moltup/molt/updatemanager"
)

var (
	applyRestart     bool
	applyRestartArgs []string
	applyWait        time.Duration

	applyCmd = &cobra.Command{
		Use:   "apply <version>",
		Short: "Launch the updater to apply a prepared update",
		Long: "Launches the detached updater helper for a prepared version and exits. " +
			"The helper waits for this process to release the application files, then " +
			"overwrites them with the staged content.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := goversion.NewVersion(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}

			manager, err := newManager()
			if err != nil {
				return err
			}
			defer func() {
				_ = manager.Close()
			}()

			opts := updatemanager.LaunchOptions{
				Restart:     applyRestart,
				RestartArgs: applyRestartArgs,
			}
			if err := manager.LaunchUpdater(target, opts); err != nil {
				return err
			}

			if applyWait > 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), applyWait)
				defer cancel()

				result, err := manager.WatchResult(ctx)
				if err != nil {
					return err
				}
				if !result.Success {
					return fmt.Errorf("update to %s failed: %s", result.Version, result.Error)
				}
				cmd.Printf("updated to %s\n", result.Version)
				return nil
			}

			cmd.Printf("updater launched for version %s, exit the application to let it proceed\n", target.Original())
			return nil
		},
	}
)

func init() {
	applyCmd.Flags().BoolVar(&applyRestart, "restart", false, "restart the application after the update is applied")
	applyCmd.Flags().StringArrayVar(&applyRestartArgs, "restart-arg", nil, "argument to pass to the restarted application, repeatable")
	applyCmd.Flags().DurationVar(&applyWait, "wait", 0, "wait up to this long for the update result instead of exiting immediately")
}
