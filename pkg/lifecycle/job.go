package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/forgelab/jobmill/pkg/jobstore"
	"github.com/forgelab/jobmill/pkg/statefile"
)

// Job is the in-memory handle for one unit of external work.
//
// The persisted record is authoritative for status; the fields here are a
// cache. A Job is not safe for concurrent use within one process - cross
// process concurrency is the supported model, coordinated through the
// shared store.
type Job struct {
	engine *Engine
	tasker Tasker

	id       int64
	name     string
	project  string
	jobType  string
	status   Status
	runMode  RunMode
	queueID  string
	parentID int64
	masterID int64
	workDir  string

	executable   string
	restartFiles []string
	collectGlobs []string
	collected    []string
	runID        string
	pid          int

	timeStart *time.Time
	timeStop  *time.Time

	// resetRestartAfterCopy is set on restart jobs: the inherited restart
	// files are copied into the new working directory at creation, then the
	// list is cleared so the new job does not inherit them.
	resetRestartAfterCopy bool
}

// ID returns the persisted job id, 0 until the record is first persisted.
func (j *Job) ID() int64 { return j.id }

func (j *Job) Name() string { return j.name }

func (j *Job) Project() string { return j.project }

func (j *Job) JobType() string { return j.jobType }

// Status returns the cached status. Call RefreshStatus first when making
// cross-process decisions.
func (j *Job) Status() Status { return j.status }

func (j *Job) RunMode() RunMode { return j.runMode }

// SetRunMode overrides the execution strategy for subsequent runs.
func (j *Job) SetRunMode(m RunMode) error {
	if !m.Valid() {
		return fmt.Errorf("invalid run mode %q", m)
	}
	j.runMode = m
	return nil
}

func (j *Job) QueueID() string { return j.queueID }

func (j *Job) ParentID() int64 { return j.parentID }

func (j *Job) MasterID() int64 { return j.masterID }

func (j *Job) SetParentID(id int64) { j.parentID = id }

func (j *Job) SetMasterID(id int64) { j.masterID = id }

// WorkingDirectory returns the job's working directory path. The directory
// itself is created lazily when the job structure is built.
func (j *Job) WorkingDirectory() string { return j.workDir }

func (j *Job) Executable() string { return j.executable }

// RestartFiles returns the files copied into the working directory at
// creation time.
func (j *Job) RestartFiles() []string {
	return append([]string(nil), j.restartFiles...)
}

// AppendRestartFile adds a file to the restart list. The file must exist
// at append time; existence is not re-validated later.
func (j *Job) AppendRestartFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve restart file: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("restart file does not exist: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("restart file is a directory: %s", path)
	}
	j.restartFiles = append(j.restartFiles, abs)
	return nil
}

// CollectedFiles returns the working-directory files captured at collect,
// relative to the working directory.
func (j *Job) CollectedFiles() []string {
	return append([]string(nil), j.collected...)
}

// RefreshStatus updates the cached status from the persisted record.
func (j *Job) RefreshStatus(ctx context.Context) error {
	if j.id == 0 {
		return nil
	}
	st, err := j.engine.store.GetStatus(ctx, j.id)
	if err != nil {
		return err
	}
	j.status = Status(st)
	return nil
}

// Suspend serializes the job state into its snapshot and marks the record
// suspended. The job can later be rehydrated, possibly by another process.
func (j *Job) Suspend(ctx context.Context) error {
	if err := j.saveSnapshot(); err != nil {
		return err
	}
	if err := j.setStatus(ctx, StatusSuspended); err != nil {
		return err
	}
	j.engine.log.Info("job suspended", j.fields()...)
	return nil
}

// Restart creates a new job chained after this one: the new job gets
// parent_id set to this job's id and this job's restart files are copied
// into the new working directory at creation, after which the new job's
// restart list is reset so it does not inherit them.
func (j *Job) Restart(name string) (*Job, error) {
	if j.id == 0 {
		return nil, errors.New("restart requires a persisted job")
	}
	if name == "" {
		name = j.name + "_restart"
	}

	tasker, err := j.engine.registry.New(j.jobType)
	if err != nil {
		return nil, err
	}

	n := &Job{
		engine:                j.engine,
		tasker:                tasker,
		name:                  name,
		project:               j.project,
		jobType:               j.jobType,
		status:                StatusInitialized,
		runMode:               j.runMode,
		parentID:              j.id,
		masterID:              j.masterID,
		executable:            j.executable,
		restartFiles:          append([]string(nil), j.restartFiles...),
		collectGlobs:          append([]string(nil), j.collectGlobs...),
		workDir:               j.engine.workingDir(j.project, name),
		resetRestartAfterCopy: true,
	}
	j.engine.adopt(n)
	return n, nil
}

// Close releases the job from the process-wide signal guard. It does not
// touch the persisted record.
func (j *Job) Close() {
	unregisterFromGuard(j)
}

// setStatus updates the cached status and, when a record exists, the
// persisted one. The single-row UPDATE is the only atomicity relied upon.
func (j *Job) setStatus(ctx context.Context, st Status) error {
	j.status = st
	if j.id == 0 {
		return nil
	}
	return j.engine.store.SetStatus(ctx, j.id, string(st))
}

// dropStatusToAborted forces a consistent terminal status after a failure
// or an intercepted signal: refresh from the store, then abort unless the
// job already reached finished or suspended.
func (j *Job) dropStatusToAborted(ctx context.Context) {
	if err := j.RefreshStatus(ctx); err != nil && !errors.Is(err, jobstore.ErrNotFound) {
		j.engine.log.Warn("refresh before abort failed", j.fields(zap.Error(err))...)
	}
	if j.status == StatusFinished || j.status == StatusSuspended {
		return
	}
	if err := j.setStatus(ctx, StatusAborted); err != nil {
		j.engine.log.Warn("failed to persist aborted status", j.fields(zap.Error(err))...)
	}
}

// reset removes all persisted artifacts and the record, keeping master and
// parent links, and returns the job to its initial in-memory state.
func (j *Job) reset(ctx context.Context) error {
	masterID, parentID := j.masterID, j.parentID

	if j.id != 0 {
		if err := j.engine.store.Delete(ctx, j.id); err != nil {
			return err
		}
	}
	if j.workDir != "" {
		if err := os.RemoveAll(j.workDir); err != nil {
			return fmt.Errorf("remove working directory: %w", err)
		}
	}

	j.id = 0
	j.queueID = ""
	j.collected = nil
	j.timeStart, j.timeStop = nil, nil
	j.status = StatusInitialized
	j.masterID, j.parentID = masterID, parentID
	j.engine.log.Info("job reset for re-run", j.fields()...)
	return nil
}

// createJobStructure builds the working directory, copies restart files,
// writes input and the wrapper script, and persists the record (assigning
// the job id). Finishes with the predecessor check.
func (j *Job) createJobStructure(ctx context.Context) error {
	if err := os.MkdirAll(j.workDir, 0755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	if err := j.copyRestartFiles(); err != nil {
		return err
	}
	if err := j.tasker.WriteInput(j); err != nil {
		return fmt.Errorf("write input: %w", err)
	}

	id, err := j.engine.store.Insert(ctx, j.record())
	if err != nil {
		return err
	}
	j.id = id
	j.engine.log.Info("job saved", j.fields()...)

	if err := j.writeRunWrapper(); err != nil {
		return err
	}
	if err := j.setStatus(ctx, StatusCreated); err != nil {
		return err
	}
	if err := j.saveSnapshot(); err != nil {
		return err
	}

	return j.ensurePredecessorDone(ctx)
}

func (j *Job) copyRestartFiles() error {
	for _, src := range j.restartFiles {
		if err := copyFile(src, filepath.Join(j.workDir, filepath.Base(src))); err != nil {
			return fmt.Errorf("copy restart file %s: %w", src, err)
		}
	}
	if j.resetRestartAfterCopy {
		j.restartFiles = nil
	}
	return nil
}

func (j *Job) record() *jobstore.Record {
	return &jobstore.Record{
		ID:         j.id,
		Name:       j.name,
		Project:    j.project,
		JobType:    j.jobType,
		Status:     string(j.status),
		RunMode:    string(j.runMode),
		QueueID:    j.queueID,
		ParentID:   j.parentID,
		MasterID:   j.masterID,
		WorkingDir: j.workDir,
	}
}

func (j *Job) snapshot() *statefile.Snapshot {
	return &statefile.Snapshot{
		JobID:        j.id,
		Name:         j.name,
		Project:      j.project,
		JobType:      j.jobType,
		RunID:        j.runID,
		Status:       string(j.status),
		RunMode:      string(j.runMode),
		QueueID:      j.queueID,
		ParentID:     j.parentID,
		MasterID:     j.masterID,
		WorkingDir:   j.workDir,
		Executable:   j.executable,
		RestartFiles: append([]string(nil), j.restartFiles...),
		CollectGlobs: append([]string(nil), j.collectGlobs...),
		Collected:    append([]string(nil), j.collected...),
		PID:          j.pid,
		TimeStart:    j.timeStart,
		TimeStop:     j.timeStop,
	}
}

func (j *Job) saveSnapshot() error {
	return statefile.Save(j.workDir, j.snapshot())
}

func (j *Job) restoreFromSnapshot(snap *statefile.Snapshot) {
	if snap == nil {
		return
	}
	j.executable = snap.Executable
	j.restartFiles = append([]string(nil), snap.RestartFiles...)
	j.collectGlobs = append([]string(nil), snap.CollectGlobs...)
	j.collected = append([]string(nil), snap.Collected...)
	j.runID = snap.RunID
	j.pid = snap.PID
	j.timeStart = snap.TimeStart
	j.timeStop = snap.TimeStop
}

func (j *Job) fields(extra ...zap.Field) []zap.Field {
	f := []zap.Field{
		zap.Int64("job_id", j.id),
		zap.String("job", j.project+"/"+j.name),
		zap.String("status", string(j.status)),
	}
	return append(f, extra...)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
