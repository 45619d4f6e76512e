package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WrapperFileName is the shell script placed in each working directory.
// Running it re-enters the engine in a fresh process and resumes the job.
const WrapperFileName = "run_job.sh"

func (j *Job) wrapperPath() string {
	return filepath.Join(j.workDir, WrapperFileName)
}

// writeRunWrapper writes the re-entry script for background and queued
// runs. The script execs the current binary so a scheduler node with the
// same filesystem layout can resume the job.
func (j *Job) writeRunWrapper() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "exec %q resume --id %d", exe, j.id)
	if j.engine.dbPath != "" {
		fmt.Fprintf(&b, " --db %q", j.engine.dbPath)
	}
	b.WriteString("\n")

	path := j.wrapperPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0755); err != nil {
		return fmt.Errorf("write wrapper script: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize wrapper script: %w", err)
	}
	return nil
}
