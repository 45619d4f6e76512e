package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{"release values", "1.0.0", "abc123", "2026-08-30"},
		{"dev values", "dev", "HEAD", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)
			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
			assert.Equal(t, tt.version, rootCmd.Version)
		})
	}
}

func TestParseJobID(t *testing.T) {
	id, err := parseJobID(" 42 ")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseJobID(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatOptionalTime(nil))
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-30T12:00:00Z", formatOptionalTime(&ts))

	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
}
