// Package cmd implements the jobmill command-line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/forgelab/jobmill/internal/config"
	"github.com/forgelab/jobmill/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo is called from main with build-time values.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = version
}

// cfg is the resolved configuration, populated before any RunE fires.
var cfg *config.Config

var (
	flagDataDir      string
	flagDBPath       string
	flagQueueProfile string
	flagLogLevel     string
	flagLogFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "jobmill",
	Short: "Run and track external workloads through a shared job table",
	Long: `jobmill orchestrates external workloads: it persists each job's status
in a shared SQLite table, executes workloads inline, in the background, or
through an external batch scheduler, and coordinates chained and
aggregated jobs across process boundaries.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		overrides := map[string]any{}
		if flagDataDir != "" {
			overrides["data_dir"] = flagDataDir
		}
		if flagDBPath != "" {
			overrides["db_path"] = flagDBPath
		}
		if flagQueueProfile != "" {
			overrides["queue_profile"] = flagQueueProfile
		}
		if flagLogLevel != "" {
			overrides["logging"] = map[string]any{"level": flagLogLevel}
		}

		var err error
		cfg, err = config.Load(overrides)
		if err != nil {
			return err
		}
		if flagLogFormat != "" {
			cfg.Logging.Format = flagLogFormat
		}
		return observability.Init(cfg.Logging.Level, cfg.Logging.Format)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		observability.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Root directory for job working directories")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to the shared job database")
	rootCmd.PersistentFlags().StringVar(&flagQueueProfile, "queue-profile", "", "Path to the batch scheduler profile (YAML)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: console or json")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
