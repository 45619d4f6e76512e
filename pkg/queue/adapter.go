package queue

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Job statuses the adapter needs to know about. They mirror the lifecycle
// statuses but are kept as plain strings so the queue package stays a leaf.
const (
	statusSubmitted = "submitted"
	statusRunning   = "running"
	statusAborted   = "aborted"
)

// ErrSubmitFailed wraps a failed queue submission.
var ErrSubmitFailed = errors.New("queue submission failed")

// StatusStore is the slice of the job store the adapter needs for
// reconciliation.
type StatusStore interface {
	GetStatus(ctx context.Context, id int64) (string, error)
	SetStatus(ctx context.Context, id int64, status string) error
}

// SubmitRequest carries everything needed to build a submission command.
type SubmitRequest struct {
	WorkingDir     string
	Script         string
	JobID          int64
	WaitForQueueID string
}

// Adapter submits to and polls one external batch scheduler.
type Adapter struct {
	profile *Profile
	log     *zap.Logger
}

func NewAdapter(profile *Profile, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{profile: profile, log: log}
}

// Submit hands the wrapper script to the scheduler and returns the external
// queue id parsed from the scheduler's stdout.
func (a *Adapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if a == nil || a.profile == nil {
		return "", errors.New("queue adapter is not configured")
	}

	vars := map[string]string{
		"dir":      req.WorkingDir,
		"script":   req.Script,
		"job_id":   strconv.FormatInt(req.JobID, 10),
		"wait_for": req.WaitForQueueID,
	}

	args := expandArgs(a.profile.SubmitCommand, vars)
	if req.WaitForQueueID != "" && len(a.profile.WaitOption) > 0 {
		waitArgs := expandArgs(a.profile.WaitOption, vars)
		args = append(args[:1], append(waitArgs, args[1:]...)...)
	}
	if len(args) == 0 {
		return "", fmt.Errorf("%w: submit command expanded to nothing", ErrSubmitFailed)
	}

	a.log.Debug("submitting to scheduler",
		zap.String("profile", a.profile.Name),
		zap.Strings("command", args))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = req.WorkingDir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	queueID, err := a.profile.extractQueueID(string(out))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	a.log.Info("job submitted to scheduler",
		zap.Int64("job_id", req.JobID),
		zap.String("queue_id", queueID))
	return queueID, nil
}

// IsListed reports whether the scheduler still lists the queue id in an
// active state. A status command failure is treated as "not listed": the
// schedulers this targets exit non-zero for unknown ids.
func (a *Adapter) IsListed(ctx context.Context, queueID string) bool {
	if a == nil || a.profile == nil || strings.TrimSpace(queueID) == "" {
		return false
	}

	vars := map[string]string{"queue_id": queueID}
	args := expandArgs(a.profile.StatusCommand, vars)
	if len(args) == 0 {
		return false
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return a.profile.isActiveState(strings.TrimSpace(string(out)))
}

// Reconcile repairs a record whose persisted status drifted from queue
// reality: a job persisted as running/submitted that the scheduler no
// longer lists is forced to aborted. The repair is silent - it never
// returns an error for the job-gone case.
func (a *Adapter) Reconcile(ctx context.Context, store StatusStore, jobID int64, queueID string) error {
	status, err := store.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if status != statusRunning && status != statusSubmitted {
		return nil
	}
	if a.IsListed(ctx, queueID) {
		return nil
	}

	a.log.Warn("job no longer listed in queue, forcing aborted",
		zap.Int64("job_id", jobID),
		zap.String("queue_id", queueID),
		zap.String("status", status))
	return store.SetStatus(ctx, jobID, statusAborted)
}

// Delete removes a job from the external queue. This is the only way to
// cancel a queue-submitted job.
func (a *Adapter) Delete(ctx context.Context, queueID string) error {
	if a == nil || a.profile == nil {
		return errors.New("queue adapter is not configured")
	}
	if len(a.profile.DeleteCommand) == 0 {
		return fmt.Errorf("queue profile %q has no delete_command", a.profile.Name)
	}

	vars := map[string]string{"queue_id": queueID}
	args := expandArgs(a.profile.DeleteCommand, vars)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("delete queue job %s: %v: %s", queueID, err, strings.TrimSpace(string(out)))
	}
	return nil
}
