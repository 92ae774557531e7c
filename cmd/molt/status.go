package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/moltup/molt/updatemanager"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show prepared updates and the outcome of the last update",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer func() {
			_ = manager.Close()
		}()

		prepared, err := manager.PreparedUpdates()
		if err != nil {
			return err
		}
		if len(prepared) == 0 {
			cmd.Println("no prepared updates")
		}
		for _, v := range prepared {
			cmd.Printf("prepared: %s\n", v.Original())
		}

		result, err := manager.LastResult()
		switch {
		case errors.Is(err, updatemanager.ErrNoResult):
			return nil
		case err != nil:
			return err
		case result.Success:
			cmd.Printf("last update: %s succeeded at %s\n", result.Version, result.ExecutedAt)
		default:
			cmd.Printf("last update: %s failed: %s\n", result.Version, result.Error)
		}
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove leftover staged archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer func() {
			_ = manager.Close()
		}()

		return manager.Cleanup()
	},
}
