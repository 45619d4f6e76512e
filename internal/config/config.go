// Package config loads the process configuration from defaults, an
// optional YAML config file, JOBMILL_* environment variables and runtime
// overrides, in ascending precedence.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the resolved process configuration.
type Config struct {
	// DataDir is the root under which job working directories live.
	DataDir string `mapstructure:"data_dir"`

	// DBPath is the shared job database. Default: <data_dir>/jobs.db.
	DBPath string `mapstructure:"db_path"`

	// QueueProfile is a path to the batch scheduler profile (YAML).
	// Empty disables queue mode.
	QueueProfile string `mapstructure:"queue_profile"`

	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Wait    WaitConfig    `mapstructure:"wait"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the read-only status API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WaitConfig configures terminal-status polling.
type WaitConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	MaxIterations int           `mapstructure:"max_iterations"`
}

// DefaultDataDir resolves the per-user data directory, honoring
// XDG_DATA_HOME.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "jobmill")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "jobmill")
	}
	return filepath.Join(home, ".local", "share", "jobmill")
}
