package main

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Query the update source for available versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer func() {
			_ = manager.Close()
		}()

		result, err := manager.CheckForUpdates(cmd.Context())
		if err != nil {
			return err
		}

		cmd.Printf("current version: %s\n", manager.Metadata().Version.Original())
		for _, v := range result.Versions {
			cmd.Printf("available: %s\n", v.Original())
		}
		if !result.CanUpdate {
			cmd.Println("already up to date")
			return nil
		}
		cmd.Printf("update available: %s\n", result.LastVersion.Original())
		return nil
	},
}
