package main

import (
	"fmt"
	"os"
	"strings"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/moltup/molt/extractor"
	"github.com/moltup/molt/source"
	"github.com/moltup/molt/updatemanager"
	"github.com/moltup/molt/util"
)

// moltVersion is set at build time via -ldflags.
var moltVersion = "0.0.0"

var (
	logLevel     string
	logFile      string
	appName      string
	appVersion   string
	storageRoot  string
	feedURL      string
	githubRepo   string
	githubToken  string
	assetPattern string
	localDir     string
	archiveExt   string

	rootCmd = &cobra.Command{
		Use:          "molt",
		Short:        "Checks for, stages and applies application updates",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			SetFlagsFromEnvVars(cmd.Root())
			return util.InitLog(logLevel, logFile)
		},
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "sets the log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "console", "log file location, or 'console' for stderr")
	rootCmd.PersistentFlags().StringVar(&appName, "app-name", "molt", "name of the managed application")
	rootCmd.PersistentFlags().StringVar(&appVersion, "app-version", moltVersion, "current version of the managed application")
	rootCmd.PersistentFlags().StringVar(&storageRoot, "storage-root", "", "update staging directory root (default: the user config dir)")
	rootCmd.PersistentFlags().StringVar(&feedURL, "feed", "", "URL of a plain text version manifest")
	rootCmd.PersistentFlags().StringVar(&githubRepo, "github", "", "GitHub repository to resolve releases from, as owner/repo")
	rootCmd.PersistentFlags().StringVar(&githubToken, "github-token", "", "optional GitHub API token")
	rootCmd.PersistentFlags().StringVar(&assetPattern, "asset-pattern", "", "release asset name pattern, supports %version, %os and %arch")
	rootCmd.PersistentFlags().StringVar(&localDir, "local-dir", "", "local directory of versioned archives")
	rootCmd.PersistentFlags().StringVar(&archiveExt, "archive-ext", "zip", "archive extension for the local directory source")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// SetFlagsFromEnvVars reads and updates flag values from environment variables with prefix MOLT_
func SetFlagsFromEnvVars(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.VisitAll(func(f *pflag.Flag) {
		envVar := FlagNameToEnvVar(f.Name, "MOLT_")

		if value, present := os.LookupEnv(envVar); present {
			err := flags.Set(f.Name, value)
			if err != nil {
				log.Infof("unable to configure flag %s using variable %s, err: %v", f.Name, envVar, err)
			}
		}
	})
}

// FlagNameToEnvVar converts flag name to environment var name adding a prefix,
// replacing dashes and making all uppercase (e.g. app-name is converted to MOLT_APP_NAME)
func FlagNameToEnvVar(cmdFlag string, prefix string) string {
	parsed := strings.ReplaceAll(cmdFlag, "-", "_")
	upper := strings.ToUpper(parsed)
	return prefix + upper
}

func newResolver() (updatemanager.Resolver, error) {
	switch {
	case githubRepo != "":
		owner, repo, found := strings.Cut(githubRepo, "/")
		if !found {
			return nil, fmt.Errorf("invalid --github value %q, expected owner/repo", githubRepo)
		}
		gh := source.NewGitHub(owner, repo)
		if githubToken != "" {
			gh = gh.WithToken(githubToken)
		}
		if assetPattern != "" {
			gh = gh.WithAssetPattern(assetPattern)
		}
		return gh, nil
	case feedURL != "":
		return source.NewWebFeed(feedURL), nil
	case localDir != "":
		return source.NewLocal(localDir, archiveExt), nil
	default:
		return nil, fmt.Errorf("no update source configured, pass --github, --feed or --local-dir")
	}
}

func newExtractor(ext string) (updatemanager.Extractor, error) {
	switch ext {
	case "zip":
		return extractor.NewZip(), nil
	case "gz", "tgz", "tar.gz":
		return extractor.NewTarGz(), nil
	default:
		return nil, fmt.Errorf("unsupported archive extension %q", ext)
	}
}

func newManager() (*updatemanager.Manager, error) {
	v, err := goversion.NewVersion(appVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid --app-version %q: %w", appVersion, err)
	}

	meta, err := updatemanager.SelfMetadata(appName, v)
	if err != nil {
		return nil, err
	}

	resolver, err := newResolver()
	if err != nil {
		return nil, err
	}

	ext, err := newExtractor(resolver.ArchiveExt())
	if err != nil {
		return nil, err
	}

	var opts []updatemanager.Option
	if storageRoot != "" {
		opts = append(opts, updatemanager.WithStorageRoot(storageRoot))
	}
	return updatemanager.New(meta, resolver, ext, opts...)
}
