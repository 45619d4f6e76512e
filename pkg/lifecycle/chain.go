package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ensurePredecessorDone enforces run-after-parent ordering. When the
// parent has not started yet this job parks itself as suspended and runs
// the parent instead; the parent's collect handler wakes the chain.
func (j *Job) ensurePredecessorDone(ctx context.Context) error {
	if j.parentID == 0 {
		return nil
	}

	st, err := j.engine.store.GetStatus(ctx, j.parentID)
	if err != nil {
		return fmt.Errorf("read predecessor %d status: %w", j.parentID, err)
	}

	switch Status(st) {
	case StatusInitialized, StatusCreated:
	default:
		return nil
	}

	if err := j.setStatus(ctx, StatusSuspended); err != nil {
		return err
	}
	if err := j.saveSnapshot(); err != nil {
		return err
	}
	j.engine.log.Info("deferring to predecessor",
		j.fields(zap.Int64("parent_id", j.parentID))...)

	parent, err := j.engine.LoadJob(ctx, j.parentID)
	if err != nil {
		return err
	}
	defer parent.Close()
	return parent.Run(ctx, RunOptions{})
}

// wakeSuccessors scans this job's children and runs every one parked as
// suspended, in ascending id order. Called from the collect handler after
// the job itself is finished.
func (j *Job) wakeSuccessors(ctx context.Context) error {
	children, err := j.engine.store.GetChildren(ctx, j.id)
	if err != nil {
		return fmt.Errorf("list successors of job %d: %w", j.id, err)
	}

	for _, id := range children {
		st, err := j.engine.store.GetStatus(ctx, id)
		if err != nil {
			return fmt.Errorf("read successor %d status: %w", id, err)
		}
		if Status(st) != StatusSuspended {
			continue
		}
		child, err := j.engine.LoadJob(ctx, id)
		if err != nil {
			return err
		}
		if err := child.setStatus(ctx, StatusCreated); err != nil {
			child.Close()
			return err
		}
		if j.engine.beforeSuccessor != nil {
			j.engine.beforeSuccessor(j, child)
		}
		j.engine.log.Info("waking successor",
			j.fields(zap.Int64("successor_id", id))...)
		err = child.Run(ctx, RunOptions{})
		child.Close()
		if err != nil {
			return fmt.Errorf("run successor %d: %w", id, err)
		}
	}
	return nil
}
