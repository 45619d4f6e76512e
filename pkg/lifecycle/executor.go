package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/forgelab/jobmill/pkg/queue"
)

// ErrorMsgFile is the diagnostic file written on modal execution failure.
const ErrorMsgFile = "error.msg"

// Background run log file names inside the working directory.
const (
	stdoutFile = "out.txt"
	stderrFile = "error.txt"
)

// runModal executes the workload synchronously, blocking the caller until
// the external process exits. On success the job chains straight into the
// collect handler.
func (j *Job) runModal(ctx context.Context) error {
	if err := j.executeWorkload(ctx); err != nil {
		return err
	}
	return j.run(ctx, RunOptions{})
}

// executeWorkload is the synchronous execution body shared by modal runs
// and the wrapper process re-entry. On non-zero exit it writes the
// captured output to error.msg, marks the job aborted and returns an
// ExecError.
func (j *Job) executeWorkload(ctx context.Context) error {
	if err := j.setStatus(ctx, StatusRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.timeStart = &now
	if err := j.engine.store.SetTimeStart(ctx, j.id, now); err != nil {
		return err
	}
	j.engine.log.Info("run job (modal)", j.fields()...)

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", j.executable)
	cmd.Dir = j.workDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		diagnostic := filepath.Join(j.workDir, ErrorMsgFile)
		if werr := os.WriteFile(diagnostic, out, 0644); werr != nil {
			j.engine.log.Warn("failed to write diagnostic file", j.fields(zap.Error(werr))...)
		}
		_ = j.setStatus(ctx, StatusAborted)
		j.engine.log.Warn("job aborted", j.fields(zap.ByteString("output", out))...)

		var exitErr *exec.ExitError
		code := -1
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExecError{JobID: j.id, ExitCode: code, DiagnosticPath: diagnostic}
	}

	j.engine.log.Info("workload finished", j.fields(zap.Int("output_bytes", len(out)))...)
	return j.setStatus(ctx, StatusCollect)
}

// runNonModal launches the wrapper script as a detached background
// process and returns immediately. The wrapper re-enters the engine in a
// fresh process and drives the remaining lifecycle.
func (j *Job) runNonModal(ctx context.Context) error {
	wrapper := j.wrapperPath()
	if _, err := os.Stat(wrapper); err != nil {
		return fmt.Errorf("wrapper script missing: %w", err)
	}

	fOut, err := os.Create(filepath.Join(j.workDir, stdoutFile))
	if err != nil {
		return fmt.Errorf("create stdout log: %w", err)
	}
	fErr, err := os.Create(filepath.Join(j.workDir, stderrFile))
	if err != nil {
		_ = fOut.Close()
		return fmt.Errorf("create stderr log: %w", err)
	}

	cmd := exec.Command("/bin/sh", wrapper)
	cmd.Dir = j.workDir
	cmd.Stdout = fOut
	cmd.Stderr = fErr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		_ = fOut.Close()
		_ = fErr.Close()
		return fmt.Errorf("start background job: %w", err)
	}
	j.pid = cmd.Process.Pid

	_ = fOut.Close()
	_ = fErr.Close()

	if err := j.saveSnapshot(); err != nil {
		return err
	}
	// The child outlives this call; reap it in the background so a parent
	// process that stays alive does not accumulate zombies.
	go func() { _ = cmd.Wait() }()

	j.engine.log.Info("job submitted (background)",
		j.fields(zap.Int("pid", j.pid), zap.String("script", wrapper))...)
	return nil
}

// runQueue submits the wrapper script to the external batch scheduler and
// persists the returned queue id. Submission failure marks the job
// aborted and is returned to the caller.
func (j *Job) runQueue(ctx context.Context, waitForQueueID string) error {
	if j.engine.queue == nil {
		return ErrNoQueueAdapter
	}

	queueID, err := j.engine.queue.Submit(ctx, queue.SubmitRequest{
		WorkingDir:     j.workDir,
		Script:         j.wrapperPath(),
		JobID:          j.id,
		WaitForQueueID: waitForQueueID,
	})
	if err != nil {
		_ = j.setStatus(ctx, StatusAborted)
		return err
	}

	j.queueID = queueID
	if err := j.engine.store.SetQueueID(ctx, j.id, queueID); err != nil {
		return err
	}
	if err := j.saveSnapshot(); err != nil {
		return err
	}
	j.engine.log.Info("job submitted to queue", j.fields(zap.String("queue_id", queueID))...)
	return nil
}

// runManual prints operator instructions; no execution is performed.
func (j *Job) runManual() error {
	_, err := fmt.Fprintf(os.Stdout,
		"You have selected to start the job manually. To run it, go into the working directory %s and call 'sh %s'.\n",
		j.workDir, WrapperFileName)
	return err
}
