package statefile

import (
	"os"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	start := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	snap := &Snapshot{
		JobID:        7,
		Name:         "relax-01",
		Project:      "demo",
		JobType:      "script",
		Status:       "suspended",
		RunMode:      "non_modal",
		WorkingDir:   dir,
		Executable:   "./run.sh",
		RestartFiles: []string{"/data/CONTCAR"},
		CollectGlobs: []string{"*.log"},
		TimeStart:    &start,
	}

	if err := Save(dir, snap); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if !Exists(dir) {
		t.Fatalf("Exists() = false after Save")
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.JobID != 7 || got.Name != "relax-01" {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if got.Status != "suspended" {
		t.Fatalf("status mismatch: got=%q", got.Status)
	}
	if len(got.RestartFiles) != 1 || got.RestartFiles[0] != "/data/CONTCAR" {
		t.Fatalf("restart files not persisted: %v", got.RestartFiles)
	}
	if got.SavedAt.IsZero() {
		t.Fatalf("saved_at not stamped")
	}
}

func TestLoadMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Fatalf("current process should be alive")
	}
	if ProcessAlive(0) || ProcessAlive(-1) {
		t.Fatalf("non-positive pids must report dead")
	}
}
