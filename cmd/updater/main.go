package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moltup/molt/storage"
	"github.com/moltup/molt/updater"
	"github.com/moltup/molt/util"
)

var (
	logLevel    string
	logFile     string
	waitTimeout time.Duration
	runtimeHost string
	dryRun      bool

	rootCmd = &cobra.Command{
		Use:          "updater <updatee-file> <content-dir> <restart> <routed-args> <additional-executables>",
		Short:        "Applies a staged update to the host application",
		Args:         cobra.ExactArgs(5),
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "sets the log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file location (default: updater.log next to the staged content)")
	rootCmd.PersistentFlags().DurationVar(&waitTimeout, "wait-timeout", 0, "how long to wait for write access to the updatee, 0 waits forever")
	rootCmd.PersistentFlags().StringVar(&runtimeHost, "runtime-host", "", "interpreter to restart non-native updatees with")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "wait for write access but do not touch any files")
}

// run never propagates an error: the parent process is already gone, so the
// only useful failure channel is the log and the result file.
func run(cmd *cobra.Command, cmdArgs []string) error {
	args, err := updater.ParseArgs(cmdArgs)
	if err != nil {
		log.Errorf("invalid arguments: %v", err)
		return nil
	}

	if logFile == "" {
		logFile = filepath.Join(filepath.Dir(args.ContentDir), storage.UpdaterLogFileName)
	}
	if err := util.InitLog(logLevel, logFile); err != nil {
		log.Errorf("failed to initialize log: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := updater.Options{
		WaitTimeout: waitTimeout,
		RuntimeHost: runtimeHost,
		DryRun:      dryRun,
	}
	if err := updater.Run(ctx, args, opts); err != nil {
		log.Errorf("update failed: %v", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("updater exited with error: %v", err)
	}
}
