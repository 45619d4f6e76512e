// Package queue submits jobs to an external batch scheduler and reconciles
// stale job records against queue reality.
//
// The scheduler itself is an external collaborator: all interaction happens
// through operator-supplied command lines described by a queue profile, so
// the same adapter drives SLURM, SGE, or a test double.
package queue

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes how to talk to one batch scheduler.
//
// Command templates support the placeholders {{dir}}, {{script}},
// {{job_id}}, {{queue_id}} and {{wait_for}}. Arguments whose placeholders
// expand to nothing are dropped from the final command line.
//
// Example (SLURM):
//
//	name: slurm
//	submit_command: ["sbatch", "--parsable", "--chdir", "{{dir}}", "{{script}}"]
//	wait_option: ["--dependency", "afterok:{{wait_for}}"]
//	status_command: ["squeue", "-h", "-j", "{{queue_id}}", "-o", "%T"]
//	delete_command: ["scancel", "{{queue_id}}"]
//	active_states: ["PENDING", "CONFIGURING", "RUNNING", "COMPLETING"]
type Profile struct {
	// Name identifies the profile in logs.
	Name string `yaml:"name"`

	// SubmitCommand submits the wrapper script and prints the external
	// queue id on stdout.
	SubmitCommand []string `yaml:"submit_command"`

	// WaitOption is spliced into the submit command after the first
	// argument when the submission must wait for a previous queue id.
	WaitOption []string `yaml:"wait_option,omitempty"`

	// StatusCommand prints the scheduler state of a queue id on stdout.
	// An empty output (or non-zero exit) means the job is no longer listed.
	StatusCommand []string `yaml:"status_command"`

	// DeleteCommand removes a job from the queue.
	DeleteCommand []string `yaml:"delete_command,omitempty"`

	// ActiveStates are the scheduler states in which a listed job counts as
	// alive. Empty means any non-empty status output counts.
	ActiveStates []string `yaml:"active_states,omitempty"`

	// QueueIDPattern is a regular expression extracting the queue id from
	// the submit command's stdout. Default: first whitespace-separated token.
	QueueIDPattern string `yaml:"queue_id_pattern,omitempty"`

	idPattern *regexp.Regexp
}

// LoadProfile reads a queue profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("queue profile not found: %s", path)
		}
		return nil, fmt.Errorf("read queue profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid YAML in queue profile: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) validate() error {
	if len(p.SubmitCommand) == 0 {
		return fmt.Errorf("queue profile: submit_command is required")
	}
	if len(p.StatusCommand) == 0 {
		return fmt.Errorf("queue profile: status_command is required")
	}
	if p.QueueIDPattern != "" {
		re, err := regexp.Compile(p.QueueIDPattern)
		if err != nil {
			return fmt.Errorf("queue profile: invalid queue_id_pattern: %w", err)
		}
		p.idPattern = re
	}
	return nil
}

// extractQueueID pulls the external queue id out of the submit output.
func (p *Profile) extractQueueID(out string) (string, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("scheduler returned no queue id")
	}
	if p.idPattern != nil {
		id := p.idPattern.FindString(out)
		if id == "" {
			return "", fmt.Errorf("queue id pattern %q did not match submit output %q", p.QueueIDPattern, out)
		}
		return id, nil
	}
	return strings.Fields(out)[0], nil
}

// isActiveState reports whether a scheduler state counts as alive.
func (p *Profile) isActiveState(state string) bool {
	state = strings.TrimSpace(state)
	if state == "" {
		return false
	}
	if len(p.ActiveStates) == 0 {
		return true
	}
	for _, s := range p.ActiveStates {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}

// expandArgs renders a command template, dropping arguments whose
// placeholders expanded to nothing.
func expandArgs(tmpl []string, vars map[string]string) []string {
	out := make([]string, 0, len(tmpl))
	for _, arg := range tmpl {
		expanded := arg
		hadPlaceholder := false
		emptyExpansion := false
		for key, val := range vars {
			ph := "{{" + key + "}}"
			if strings.Contains(expanded, ph) {
				hadPlaceholder = true
				if val == "" {
					emptyExpansion = true
				}
				expanded = strings.ReplaceAll(expanded, ph, val)
			}
		}
		if hadPlaceholder && emptyExpansion {
			continue
		}
		out = append(out, expanded)
	}
	return out
}
