package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
version: "1.0"
job:
  name: relax-01
  project: demo
executable:
  command: "./minimize.sh"
collect:
  globs:
    - "*.log"
`

func TestLoadFromBytesYAML(t *testing.T) {
	m, err := LoadFromBytes([]byte(validYAML), "job.yaml")
	require.NoError(t, err)

	assert.Equal(t, "relax-01", m.Job.Name)
	assert.Equal(t, "demo", m.Job.Project)
	assert.Equal(t, "script", m.Job.Type, "type should default")
	assert.Equal(t, "modal", m.Server.RunMode, "run mode should default")
	assert.Equal(t, []string{"*.log"}, m.Collect.Globs)
}

func TestLoadFromBytesJSON(t *testing.T) {
	data := []byte(`{
		"version": "1.0",
		"job": {"name": "relax-01"},
		"executable": {"command": "sleep 1"},
		"server": {"run_mode": "non_modal"}
	}`)

	m, err := LoadFromBytes(data, "job.json")
	require.NoError(t, err)
	assert.Equal(t, "default", m.Job.Project)
	assert.Equal(t, "non_modal", m.Server.RunMode)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "relax-01", m.Job.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "not found")
}

func TestValidateRejectsBadManifests(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{
			name: "missing name",
			data: `{"version": "1.0", "executable": {"command": "x"}}`,
			want: "job.name is required",
		},
		{
			name: "missing command",
			data: `{"version": "1.0", "job": {"name": "a"}}`,
			want: "executable.command is required",
		},
		{
			name: "bad run mode",
			data: `{"version": "1.0", "job": {"name": "a"}, "executable": {"command": "x"}, "server": {"run_mode": "thread_pool"}}`,
			want: "server.run_mode",
		},
		{
			name: "bad version",
			data: `{"version": "2.0", "job": {"name": "a"}, "executable": {"command": "x"}}`,
			want: "unsupported manifest version",
		},
		{
			name: "name with separator",
			data: `{"version": "1.0", "job": {"name": "a/b"}, "executable": {"command": "x"}}`,
			want: "path separators",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tc.data), "job.json")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoadFromBytesEmpty(t *testing.T) {
	_, err := LoadFromBytes(nil, "job.yaml")
	assert.ErrorContains(t, err, "empty")
}
