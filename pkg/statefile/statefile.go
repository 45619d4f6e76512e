// Package statefile persists full job state as a JSON snapshot in the
// job's working directory.
//
// The snapshot is the serialization side of the job lifecycle: it is
// written when a job is suspended or finishes, and read back when a
// persisted job is rehydrated into memory (possibly in a different
// process, e.g. the wrapper process of a non-modal run).
package statefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// FileName is the snapshot file name inside a job's working directory.
//
// NOTE: The snapshot schema is part of the stable on-disk contract and is
// designed for backward-compatible extension (additive fields).
const FileName = "state.json"

// Snapshot is the persisted form of one job.
type Snapshot struct {
	JobID        int64    `json:"job_id"`
	Name         string   `json:"name"`
	Project      string   `json:"project,omitempty"`
	JobType      string   `json:"job_type"`
	RunID        string   `json:"run_id,omitempty"`
	Status       string   `json:"status"`
	RunMode      string   `json:"run_mode"`
	QueueID      string   `json:"queue_id,omitempty"`
	ParentID     int64    `json:"parent_id,omitempty"`
	MasterID     int64    `json:"master_id,omitempty"`
	WorkingDir   string   `json:"working_dir"`
	Executable   string   `json:"executable,omitempty"`
	RestartFiles []string `json:"restart_files,omitempty"`
	CollectGlobs []string `json:"collect_globs,omitempty"`
	Collected    []string `json:"collected,omitempty"`
	PID          int      `json:"pid,omitempty"`

	TimeStart *time.Time `json:"time_start,omitempty"`
	TimeStop  *time.Time `json:"time_stop,omitempty"`
	SavedAt   time.Time  `json:"saved_at"`
}

// Path returns the snapshot path for a working directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Exists reports whether a snapshot is present in the working directory.
func Exists(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	_, err := os.Stat(Path(dir))
	return err == nil
}

// Save writes the snapshot atomically (temp file + rename), so a reader in
// another process never observes a partially written snapshot.
func Save(dir string, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("working directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}

	snap.SavedAt = time.Now().UTC()

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(dir, FileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, Path(dir)); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot from the working directory.
func Load(dir string) (*Snapshot, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("working directory is required")
	}
	b, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, fmt.Errorf("snapshot is empty")
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(trimmed), &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}

// ProcessAlive reports whether the pid recorded for a background run still
// refers to a live process. Used to surface dead non-modal runs whose
// record was never updated.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 checks for existence without sending a signal.
	if err := p.Signal(os.Signal(syscall.Signal(0))); err != nil {
		return false
	}
	return true
}
