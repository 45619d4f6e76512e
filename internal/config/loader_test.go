package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8484, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, 5*time.Second, cfg.Wait.Interval)
		assert.Equal(t, 100, cfg.Wait.MaxIterations)

		assert.NotEmpty(t, cfg.DataDir)
		assert.Equal(t, filepath.Join(cfg.DataDir, "jobs.db"), cfg.DBPath)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		cfg, err := Load(map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("JOBMILL_PORT", "3000")
		t.Setenv("JOBMILL_LOG_LEVEL", "warn")
		t.Setenv("JOBMILL_DATA_DIR", "/srv/jobmill")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "/srv/jobmill", cfg.DataDir)
		assert.Equal(t, "/srv/jobmill/jobs.db", cfg.DBPath)
	})

	t.Run("Precedence", func(t *testing.T) {
		t.Setenv("JOBMILL_PORT", "4000")

		cfg, err := Load(map[string]any{
			"server": map[string]any{"port": 5000},
		})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("DurationStrings", func(t *testing.T) {
		cfg, err := Load(map[string]any{
			"wait": map[string]any{"interval": "250ms"},
		})
		require.NoError(t, err)
		assert.Equal(t, 250*time.Millisecond, cfg.Wait.Interval)
	})
}
