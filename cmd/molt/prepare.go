package main

import (
	"fmt"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/moltup/molt/progress"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [version]",
	Short: "Download and stage an update, ready to be applied",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer func() {
			_ = manager.Close()
		}()

		var target *goversion.Version
		if len(args) == 1 {
			target, err = goversion.NewVersion(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
		} else {
			result, err := manager.CheckForUpdates(cmd.Context())
			if err != nil {
				return err
			}
			if !result.CanUpdate {
				cmd.Println("already up to date")
				return nil
			}
			target = result.LastVersion
		}

		if manager.IsUpdatePrepared(target) {
			cmd.Printf("version %s is already prepared\n", target.Original())
			return nil
		}

		bar := progressbar.NewOptions(1000,
			progressbar.OptionSetDescription(fmt.Sprintf("Staging %s", target.Original())),
			progressbar.OptionSetWidth(50),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)
		reporter := progress.Func(func(f float64) {
			_ = bar.Set(int(f * 1000))
		})

		if err := manager.PrepareUpdate(cmd.Context(), target, reporter); err != nil {
			return err
		}
		_ = bar.Finish()
		cmd.Printf("\nversion %s prepared in %s\n", target.Original(), manager.StorageDir())
		return nil
	},
}
