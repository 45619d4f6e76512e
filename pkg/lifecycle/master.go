package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// updateMaster notifies the coordinating master, if any, that this child
// reached a terminal status. The master's status field doubles as a
// lock-free mutex between concurrently finishing children:
//
//	suspended -> refresh : this child won the wake and runs the refresh
//	refresh   -> busy    : a sibling holds the wake; leave it a marker
//	anything else        : master is active or done, nothing to do
//
// After running the refresh, a busy marker left by a sibling means events
// arrived during the refresh window; the status is reset to suspended and
// the wake replays, bounded by the engine's wake depth.
func (j *Job) updateMaster(ctx context.Context) error {
	if j.masterID == 0 {
		return nil
	}
	return j.updateMasterAtDepth(ctx, 0)
}

func (j *Job) updateMasterAtDepth(ctx context.Context, depth int) error {
	if depth >= j.engine.maxWakeDepth {
		return fmt.Errorf("master %d: %w", j.masterID, ErrWakeDepthExceeded)
	}

	st, err := j.engine.store.GetStatus(ctx, j.masterID)
	if err != nil {
		return fmt.Errorf("read master %d status: %w", j.masterID, err)
	}

	switch Status(st) {
	case StatusSuspended:
		if err := j.engine.store.SetStatus(ctx, j.masterID, string(StatusRefresh)); err != nil {
			return fmt.Errorf("wake master %d: %w", j.masterID, err)
		}
		j.engine.log.Debug("waking master",
			j.fields(zap.Int64("master_id", j.masterID), zap.Int("depth", depth))...)

		master, err := j.engine.LoadJob(ctx, j.masterID)
		if err != nil {
			return err
		}
		defer master.Close()
		if err := master.Run(ctx, RunOptions{}); err != nil {
			return fmt.Errorf("refresh master %d: %w", j.masterID, err)
		}

		cur, err := j.engine.store.GetStatus(ctx, j.masterID)
		if err != nil {
			return fmt.Errorf("re-read master %d status: %w", j.masterID, err)
		}
		if Status(cur) == StatusBusy {
			if err := j.engine.store.SetStatus(ctx, j.masterID, string(StatusSuspended)); err != nil {
				return fmt.Errorf("rearm master %d: %w", j.masterID, err)
			}
			return j.updateMasterAtDepth(ctx, depth+1)
		}
		return nil

	case StatusRefresh:
		// A sibling is mid-refresh. Writing busy twice is benign: the
		// marker only records that at least one event was missed.
		if err := j.engine.store.SetStatus(ctx, j.masterID, string(StatusBusy)); err != nil {
			return fmt.Errorf("mark master %d busy: %w", j.masterID, err)
		}
		j.engine.log.Debug("master busy, wake deferred to sibling",
			j.fields(zap.Int64("master_id", j.masterID))...)
		return nil

	default:
		return nil
	}
}
