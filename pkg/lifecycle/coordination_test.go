package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgelab/jobmill/pkg/jobstore"
	"github.com/forgelab/jobmill/pkg/statefile"
)

// aggTask is an aggregator job type: it accepts the refresh and busy
// wake-ups a base job type rejects.
type aggTask struct {
	refreshCalls int
	onRefresh    func(ctx context.Context, j *Job) error
}

func (a *aggTask) ValidateReadyToRun(*Job) error { return nil }
func (a *aggTask) WriteInput(*Job) error         { return nil }
func (a *aggTask) CollectOutput(*Job) error      { return nil }
func (a *aggTask) CollectLogfiles(*Job) error    { return nil }

func (a *aggTask) RunIfRefresh(ctx context.Context, j *Job) error {
	a.refreshCalls++
	if a.onRefresh != nil {
		return a.onRefresh(ctx, j)
	}
	return nil
}

func (a *aggTask) RunIfBusy(ctx context.Context, j *Job) error {
	return a.RunIfRefresh(ctx, j)
}

func newAggEngine(t *testing.T, agg *aggTask, opts Options) *Engine {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("agg", func() Tasker { return agg }))
	opts.Registry = reg
	return newTestEngine(t, opts)
}

func insertMaster(t *testing.T, e *Engine, status Status) int64 {
	t.Helper()
	id, err := e.Store().Insert(context.Background(), &jobstore.Record{
		Name:       "master",
		Project:    "default",
		JobType:    "agg",
		Status:     string(status),
		RunMode:    "modal",
		WorkingDir: filepath.Join(t.TempDir(), "master_wd"),
	})
	require.NoError(t, err)
	return id
}

func TestMasterWakeOnChildFinish(t *testing.T) {
	ctx := context.Background()
	agg := &aggTask{}
	agg.onRefresh = func(ctx context.Context, j *Job) error {
		return j.setStatus(ctx, StatusFinished)
	}
	e := newAggEngine(t, agg, Options{})
	masterID := insertMaster(t, e, StatusSuspended)

	m := scriptManifest("child", "true")
	m.Job.MasterID = masterID
	j, err := e.NewJob(ctx, m)
	require.NoError(t, err)
	require.NoError(t, j.Run(ctx, RunOptions{}))

	assert.Equal(t, 1, agg.refreshCalls)
	st, err := e.Store().GetStatus(ctx, masterID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusFinished), st)
}

func TestMasterBusyMarkerReplaysWake(t *testing.T) {
	ctx := context.Background()
	agg := &aggTask{}
	agg.onRefresh = func(ctx context.Context, j *Job) error {
		// First wake: a sibling finished mid-refresh and left the busy
		// marker. Second wake: all events consumed.
		if agg.refreshCalls == 1 {
			return j.setStatus(ctx, StatusBusy)
		}
		return j.setStatus(ctx, StatusFinished)
	}
	e := newAggEngine(t, agg, Options{})
	masterID := insertMaster(t, e, StatusSuspended)

	m := scriptManifest("child", "true")
	m.Job.MasterID = masterID
	j, err := e.NewJob(ctx, m)
	require.NoError(t, err)
	require.NoError(t, j.Run(ctx, RunOptions{}))

	assert.Equal(t, 2, agg.refreshCalls)
	st, err := e.Store().GetStatus(ctx, masterID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusFinished), st)
}

func TestMasterWakeDepthBounded(t *testing.T) {
	ctx := context.Background()
	agg := &aggTask{}
	agg.onRefresh = func(ctx context.Context, j *Job) error {
		return j.setStatus(ctx, StatusBusy)
	}
	e := newAggEngine(t, agg, Options{MaxWakeDepth: 3})
	masterID := insertMaster(t, e, StatusSuspended)

	m := scriptManifest("child", "true")
	m.Job.MasterID = masterID
	j, err := e.NewJob(ctx, m)
	require.NoError(t, err)

	err = j.Run(ctx, RunOptions{})
	assert.ErrorIs(t, err, ErrWakeDepthExceeded)
	assert.Equal(t, 3, agg.refreshCalls)

	// The child's own work was done before the wake failed.
	st, err := e.Store().GetStatus(ctx, j.ID())
	require.NoError(t, err)
	assert.Equal(t, string(StatusFinished), st)
}

func TestSiblingMarksRefreshingMasterBusy(t *testing.T) {
	ctx := context.Background()
	agg := &aggTask{}
	e := newAggEngine(t, agg, Options{})
	masterID := insertMaster(t, e, StatusRefresh)

	m := scriptManifest("child", "true")
	m.Job.MasterID = masterID
	j, err := e.NewJob(ctx, m)
	require.NoError(t, err)
	require.NoError(t, j.Run(ctx, RunOptions{}))

	assert.Equal(t, 0, agg.refreshCalls, "refresh owned by the sibling")
	st, err := e.Store().GetStatus(ctx, masterID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusBusy), st)
}

func TestActiveMasterIgnoresWake(t *testing.T) {
	ctx := context.Background()
	agg := &aggTask{}
	e := newAggEngine(t, agg, Options{})
	masterID := insertMaster(t, e, StatusRunning)

	m := scriptManifest("child", "true")
	m.Job.MasterID = masterID
	j, err := e.NewJob(ctx, m)
	require.NoError(t, err)
	require.NoError(t, j.Run(ctx, RunOptions{}))

	assert.Equal(t, 0, agg.refreshCalls)
	st, err := e.Store().GetStatus(ctx, masterID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusRunning), st)
}

func TestBaseJobTypeRejectsRefresh(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	j, err := e.NewJob(ctx, scriptManifest("plain", "true"))
	require.NoError(t, err)
	require.NoError(t, j.Run(ctx, RunOptions{}))

	require.NoError(t, e.Store().SetStatus(ctx, j.ID(), string(StatusRefresh)))
	require.NoError(t, j.RefreshStatus(ctx))
	err = j.Run(ctx, RunOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedState)
}

// seedPredecessor persists a parent record in created state together with
// the working directory and snapshot a separate process would have left.
func seedPredecessor(t *testing.T, e *Engine, command string) int64 {
	t.Helper()
	ctx := context.Background()

	workDir := filepath.Join(t.TempDir(), "parent_wd")
	require.NoError(t, os.MkdirAll(workDir, 0755))

	id, err := e.Store().Insert(ctx, &jobstore.Record{
		Name:       "parent",
		Project:    "default",
		JobType:    "script",
		Status:     string(StatusCreated),
		RunMode:    "modal",
		WorkingDir: workDir,
	})
	require.NoError(t, err)

	require.NoError(t, statefile.Save(workDir, &statefile.Snapshot{
		JobID:      id,
		Name:       "parent",
		Project:    "default",
		JobType:    "script",
		Status:     string(StatusCreated),
		RunMode:    "modal",
		WorkingDir: workDir,
		Executable: command,
	}))
	return id
}

func TestChildDefersToPredecessorAndIsWoken(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	parentID := seedPredecessor(t, e, "echo parent > parent.txt")

	m := scriptManifest("child", "echo child > child.txt")
	m.Job.ParentID = parentID
	j, err := e.NewJob(ctx, m)
	require.NoError(t, err)
	require.NoError(t, j.Run(ctx, RunOptions{}))

	for _, id := range []int64{parentID, j.ID()} {
		st, err := e.Store().GetStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, string(StatusFinished), st, "job %d", id)
	}
	assert.FileExists(t, filepath.Join(j.WorkingDirectory(), "child.txt"))
}

func TestBeforeSuccessorHook(t *testing.T) {
	ctx := context.Background()
	var pairs [][2]int64
	e := newTestEngine(t, Options{
		BeforeSuccessorRun: func(parent, child *Job) {
			pairs = append(pairs, [2]int64{parent.ID(), child.ID()})
		},
	})
	parentID := seedPredecessor(t, e, "true")

	m := scriptManifest("child", "true")
	m.Job.ParentID = parentID
	j, err := e.NewJob(ctx, m)
	require.NoError(t, err)
	require.NoError(t, j.Run(ctx, RunOptions{}))

	require.Len(t, pairs, 1)
	assert.Equal(t, parentID, pairs[0][0])
	assert.Equal(t, j.ID(), pairs[0][1])
}

func TestChildRunsImmediatelyWhenPredecessorDone(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	p, err := e.NewJob(ctx, scriptManifest("first", "true"))
	require.NoError(t, err)
	require.NoError(t, p.Run(ctx, RunOptions{}))

	m := scriptManifest("second", "true")
	m.Job.ParentID = p.ID()
	j, err := e.NewJob(ctx, m)
	require.NoError(t, err)
	require.NoError(t, j.Run(ctx, RunOptions{}))
	assert.Equal(t, StatusFinished, j.Status())
}

func TestSignalGuardAbortsLiveJobs(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	running, err := e.NewJob(ctx, scriptManifest("live", "true"))
	require.NoError(t, err)
	require.NoError(t, running.Run(ctx, RunOptions{}))
	require.NoError(t, e.Store().SetStatus(ctx, running.ID(), string(StatusRunning)))

	done, err := e.NewJob(ctx, scriptManifest("done", "true"))
	require.NoError(t, err)
	require.NoError(t, done.Run(ctx, RunOptions{}))

	g := &signalGuard{jobs: make(map[*Job]struct{})}
	g.jobs[running] = struct{}{}
	g.jobs[done] = struct{}{}
	g.abortAll()

	st, err := e.Store().GetStatus(ctx, running.ID())
	require.NoError(t, err)
	assert.Equal(t, string(StatusAborted), st)

	st, err = e.Store().GetStatus(ctx, done.ID())
	require.NoError(t, err)
	assert.Equal(t, string(StatusFinished), st, "finished jobs keep their status")
}

func TestGuardRegisterUnregister(t *testing.T) {
	g := &signalGuard{jobs: make(map[*Job]struct{})}
	j := &Job{}
	g.jobs[j] = struct{}{}
	g.unregister(j)
	assert.Empty(t, g.jobs)
}
