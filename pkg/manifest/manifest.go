// Package manifest provides loading and validation of jobmill job manifests.
//
// A job manifest is a YAML or JSON file that configures one job: identity,
// the external executable, the execution mode, restart inputs, and which
// working-directory files to capture when the job collects its output.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	job:
//	  name: relax-01
//	  project: demo
//	  type: script
//	executable:
//	  command: "./minimize.sh"
//	server:
//	  run_mode: modal
//	restart:
//	  files:
//	    - /data/seed/CONTCAR
//	collect:
//	  globs:
//	    - "*.log"
//	    - "output/**"
package manifest

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Version is the manifest schema version accepted by this build.
const Version = "1.0"

// Manifest represents a validated job manifest.
type Manifest struct {
	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Job identifies the job within its project.
	Job JobConfig `json:"job" yaml:"job"`

	// Executable configures the external workload.
	Executable ExecutableConfig `json:"executable" yaml:"executable"`

	// Server configures how the workload is launched (optional).
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Restart configures input files copied into the working directory (optional).
	Restart RestartConfig `json:"restart,omitempty" yaml:"restart,omitempty"`

	// Collect configures output capture at the collect stage (optional).
	Collect CollectConfig `json:"collect,omitempty" yaml:"collect,omitempty"`
}

// JobConfig identifies a job.
type JobConfig struct {
	// Name must be unique within the project.
	Name string `json:"name" yaml:"name"`

	// Project is the namespace the job lives in. Default "default".
	Project string `json:"project,omitempty" yaml:"project,omitempty"`

	// Type selects the job type implementation from the registry. Default "script".
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// MasterID links the job to an aggregator job (optional).
	MasterID int64 `json:"master_id,omitempty" yaml:"master_id,omitempty"`

	// ParentID links the job to a sequential predecessor (optional).
	ParentID int64 `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// ExecutableConfig names the external workload.
//
// Resolution of binaries is out of scope: the command is run through the
// shell in the job's working directory as-is.
type ExecutableConfig struct {
	Command string `json:"command" yaml:"command"`
}

// ServerConfig configures the execution environment.
type ServerConfig struct {
	// RunMode is one of modal, non_modal, queue, manual. Default modal.
	RunMode string `json:"run_mode,omitempty" yaml:"run_mode,omitempty"`

	// QueueProfile is a path to the queue profile, required for queue mode
	// unless configured globally.
	QueueProfile string `json:"queue_profile,omitempty" yaml:"queue_profile,omitempty"`
}

// RestartConfig lists files copied into the working directory when the job
// structure is created.
type RestartConfig struct {
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// CollectConfig selects working-directory files captured into the state
// snapshot at the collect stage. Patterns use doublestar glob syntax.
type CollectConfig struct {
	Globs []string `json:"globs,omitempty" yaml:"globs,omitempty"`
}

var validRunModes = map[string]bool{
	"modal":     true,
	"non_modal": true,
	"queue":     true,
	"manual":    true,
}

// ApplyDefaults fills in defaults for optional fields.
func (m *Manifest) ApplyDefaults() {
	if m.Job.Project == "" {
		m.Job.Project = "default"
	}
	if m.Job.Type == "" {
		m.Job.Type = "script"
	}
	if m.Server.RunMode == "" {
		m.Server.RunMode = "modal"
	}
}

// Validate checks the manifest for structural problems. Defaults must have
// been applied first.
func (m *Manifest) Validate() error {
	if m.Version != Version {
		return fmt.Errorf("unsupported manifest version %q (want %q)", m.Version, Version)
	}
	if strings.TrimSpace(m.Job.Name) == "" {
		return fmt.Errorf("job.name is required")
	}
	if strings.ContainsAny(m.Job.Name, "/\\") {
		return fmt.Errorf("job.name must not contain path separators: %q", m.Job.Name)
	}
	if strings.TrimSpace(m.Executable.Command) == "" {
		return fmt.Errorf("executable.command is required")
	}
	if !validRunModes[m.Server.RunMode] {
		return fmt.Errorf("server.run_mode must be one of modal, non_modal, queue, manual: %q", m.Server.RunMode)
	}
	for _, g := range m.Collect.Globs {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("collect.globs: invalid pattern %q", g)
		}
	}
	return nil
}
