package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forgelab/jobmill/pkg/jobstore"
	"github.com/forgelab/jobmill/pkg/statefile"
)

// RunOptions modifies a single Run invocation.
type RunOptions struct {
	// RunAgain deletes the existing job artifacts and record and runs the
	// workload again under a fresh id. Master and parent links survive.
	RunAgain bool

	// Repair forces a non-finished job back to created so the workload is
	// executed again without discarding the record.
	Repair bool

	// Mode overrides the job's run mode for this and subsequent runs.
	Mode RunMode

	// WaitForQueueID makes a queue submission wait for an external queue id.
	WaitForQueueID string
}

// Run is the top-level state machine: it reads the current status and
// dispatches to exactly one per-status handler. Any error during dispatch
// forces the persisted status to aborted (unless the job already reached
// finished or suspended) before being returned.
func (j *Job) Run(ctx context.Context, opts RunOptions) error {
	if err := j.run(ctx, opts); err != nil {
		j.dropStatusToAborted(ctx)
		return err
	}
	return nil
}

func (j *Job) run(ctx context.Context, opts RunOptions) error {
	if err := j.tasker.ValidateReadyToRun(j); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if opts.Mode != "" {
		if err := j.SetRunMode(opts.Mode); err != nil {
			return err
		}
	}

	j.runID = uuid.New().String()
	j.engine.log.Info("run", j.fields(zap.String("run_id", j.runID))...)

	status := j.status
	if opts.RunAgain && j.id != 0 {
		if err := j.reset(ctx); err != nil {
			return err
		}
		status = StatusInitialized
	}
	if opts.Repair && j.id != 0 && status != StatusFinished {
		status = StatusCreated
		j.status = StatusCreated
	}

	switch status {
	case StatusInitialized:
		return j.runIfNew(ctx, opts)
	case StatusCreated:
		return j.runIfCreated(ctx, opts)
	case StatusSubmitted:
		return j.runIfSubmitted(ctx)
	case StatusRunning:
		return j.runIfRunning(ctx)
	case StatusCollect:
		return j.runIfCollect(ctx)
	case StatusSuspended:
		return j.runIfSuspended(ctx)
	case StatusRefresh:
		return j.runIfRefresh(ctx)
	case StatusBusy:
		return j.runIfBusy(ctx)
	case StatusFinished:
		return j.runIfFinished(ctx, opts.RunAgain)
	case StatusAborted:
		// Terminal. Escaped only via repair or run-again on the next call.
		j.engine.log.Info("job is aborted; use repair or run-again", j.fields()...)
		return nil
	default:
		return fmt.Errorf("unknown job status %q", status)
	}
}

// runIfNew prepares the working directory and record for a fresh job. If
// working artifacts already exist under the same project and name, it
// adopts them instead of creating anything.
func (j *Job) runIfNew(ctx context.Context, opts RunOptions) error {
	if j.id == 0 {
		rec, err := j.engine.store.GetByName(ctx, j.project, j.name)
		if err == nil {
			j.engine.log.Info("job exists already and therefore was not created",
				j.fields(zap.Int64("existing_id", rec.ID))...)
			j.id = rec.ID
			j.status = Status(rec.Status)
			j.queueID = rec.QueueID
			return nil
		}
		if !errors.Is(err, jobstore.ErrNotFound) {
			return err
		}
	}

	if err := j.createJobStructure(ctx); err != nil {
		return err
	}
	if j.status == StatusSuspended {
		// Waiting for the predecessor; the parent's successor step wakes us.
		return nil
	}
	return j.run(ctx, RunOptions{WaitForQueueID: opts.WaitForQueueID})
}

// runIfCreated marks the job submitted and dispatches to the execution
// strategy selected by the run mode.
func (j *Job) runIfCreated(ctx context.Context, opts RunOptions) error {
	if err := j.setStatus(ctx, StatusSubmitted); err != nil {
		return err
	}

	switch j.runMode {
	case RunModeManual:
		return j.runManual()
	case RunModeModal:
		return j.runModal(ctx)
	case RunModeNonModal:
		return j.runNonModal(ctx)
	case RunModeQueue:
		return j.runQueue(ctx, opts.WaitForQueueID)
	default:
		return fmt.Errorf("invalid run mode %q", j.runMode)
	}
}

// runIfSubmitted reconciles a queue-mode job against the external
// scheduler: a job the queue no longer lists is treated as failed and
// resubmitted from scratch. Other modes just report waiting.
func (j *Job) runIfSubmitted(ctx context.Context) error {
	if j.runMode == RunModeQueue && j.engine.queue != nil && !j.engine.queue.IsListed(ctx, j.queueID) {
		j.engine.log.Warn("job vanished from queue, resubmitting", j.fields()...)
		return j.run(ctx, RunOptions{RunAgain: true})
	}
	j.engine.log.Info("job is waiting in the queue", j.fields()...)
	return nil
}

func (j *Job) runIfRunning(ctx context.Context) error {
	if j.runMode == RunModeQueue && j.engine.queue != nil && !j.engine.queue.IsListed(ctx, j.queueID) {
		j.engine.log.Warn("job vanished from queue, resubmitting", j.fields()...)
		return j.run(ctx, RunOptions{RunAgain: true})
	}
	j.engine.log.Info("job is running", j.fields()...)
	return nil
}

// runIfCollect gathers workload output, records elapsed compute time,
// marks the job finished and wakes the master and any successors.
func (j *Job) runIfCollect(ctx context.Context) error {
	if err := j.tasker.CollectOutput(j); err != nil {
		return fmt.Errorf("collect output: %w", err)
	}
	if err := j.tasker.CollectLogfiles(j); err != nil {
		return fmt.Errorf("collect logfiles: %w", err)
	}

	captured, err := j.captureCollectFiles()
	if err != nil {
		return err
	}
	j.collected = captured

	now := time.Now().UTC()
	j.timeStop = &now
	if err := j.engine.store.FinishRuntime(ctx, j.id, now); err != nil {
		return err
	}
	if err := j.setStatus(ctx, StatusFinished); err != nil {
		return err
	}
	if err := j.saveSnapshot(); err != nil {
		return err
	}
	j.engine.log.Info("job finished", j.fields(zap.Int("collected", len(captured)))...)

	if err := j.updateMaster(ctx); err != nil {
		return err
	}
	return j.wakeSuccessors(ctx)
}

// runIfSuspended marks the job refresh and re-dispatches.
func (j *Job) runIfSuspended(ctx context.Context) error {
	if err := j.setStatus(ctx, StatusRefresh); err != nil {
		return err
	}
	return j.run(ctx, RunOptions{})
}

// runIfRefresh and runIfBusy are extension points for aggregator job
// types; the base engine signals an unsupported-operation error.
func (j *Job) runIfRefresh(ctx context.Context) error {
	r, ok := j.tasker.(Refresher)
	if !ok {
		return fmt.Errorf("%w: refresh on job %d (%s)", ErrUnsupportedState, j.id, j.jobType)
	}
	return r.RunIfRefresh(ctx, j)
}

func (j *Job) runIfBusy(ctx context.Context) error {
	r, ok := j.tasker.(Refresher)
	if !ok {
		return fmt.Errorf("%w: busy on job %d (%s)", ErrUnsupportedState, j.id, j.jobType)
	}
	return r.RunIfBusy(ctx, j)
}

// runIfFinished either performs a full reset and re-run, or rehydrates the
// persisted state and replays the master wake (normally the wake happens
// at collect; a finished job re-run without run-again only notifies).
func (j *Job) runIfFinished(ctx context.Context, runAgain bool) error {
	if runAgain {
		if err := j.reset(ctx); err != nil {
			return err
		}
		return j.run(ctx, RunOptions{})
	}

	if statefile.Exists(j.workDir) {
		snap, err := statefile.Load(j.workDir)
		if err != nil {
			return err
		}
		j.restoreFromSnapshot(snap)
	}
	return j.updateMaster(ctx)
}
