package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Load resolves the configuration. Precedence, highest first: runtime
// overrides, JOBMILL_* environment variables, the config file, defaults.
func Load(overrides ...map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JOBMILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases for the common knobs.
	_ = v.BindEnv("server.port", "JOBMILL_PORT")
	_ = v.BindEnv("logging.level", "JOBMILL_LOG_LEVEL")
	_ = v.BindEnv("data_dir", "JOBMILL_DATA_DIR")
	_ = v.BindEnv("db_path", "JOBMILL_DB_PATH")
	_ = v.BindEnv("queue_profile", "JOBMILL_QUEUE_PROFILE")

	v.SetConfigName("jobmill")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := userConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Runtime overrides go through Set so they outrank the env layer.
	for _, o := range overrides {
		applyOverrides(v, "", o)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "jobs.db")
	}
	return &cfg, nil
}

func applyOverrides(v *viper.Viper, prefix string, m map[string]any) {
	for key, val := range m {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			applyOverrides(v, full, nested)
			continue
		}
		v.Set(full, val)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("db_path", "")
	v.SetDefault("queue_profile", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8484)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("wait.interval", 5*time.Second)
	v.SetDefault("wait.max_iterations", 100)
}

func userConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "jobmill"), nil
}
