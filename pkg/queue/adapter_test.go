package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatusStore struct {
	statuses map[int64]string
}

func (f *fakeStatusStore) GetStatus(_ context.Context, id int64) (string, error) {
	return f.statuses[id], nil
}

func (f *fakeStatusStore) SetStatus(_ context.Context, id int64, status string) error {
	f.statuses[id] = status
	return nil
}

func TestSubmitParsesQueueID(t *testing.T) {
	p := &Profile{
		Name:          "fake",
		SubmitCommand: []string{"/bin/sh", "-c", "echo 4711"},
		StatusCommand: []string{"true"},
	}
	require.NoError(t, p.validate())
	a := NewAdapter(p, nil)

	id, err := a.Submit(context.Background(), SubmitRequest{
		WorkingDir: t.TempDir(),
		Script:     "run_job.sh",
		JobID:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, "4711", id)
}

func TestSubmitQueueIDPattern(t *testing.T) {
	p := &Profile{
		Name:           "fake",
		SubmitCommand:  []string{"/bin/sh", "-c", "echo 'Submitted batch job 4711'"},
		StatusCommand:  []string{"true"},
		QueueIDPattern: `\d+`,
	}
	require.NoError(t, p.validate())
	a := NewAdapter(p, nil)

	id, err := a.Submit(context.Background(), SubmitRequest{WorkingDir: t.TempDir(), JobID: 1})
	require.NoError(t, err)
	assert.Equal(t, "4711", id)
}

func TestSubmitFailureWraps(t *testing.T) {
	p := &Profile{
		Name:          "fake",
		SubmitCommand: []string{"/bin/sh", "-c", "exit 3"},
		StatusCommand: []string{"true"},
	}
	require.NoError(t, p.validate())
	a := NewAdapter(p, nil)

	_, err := a.Submit(context.Background(), SubmitRequest{WorkingDir: t.TempDir(), JobID: 1})
	assert.ErrorIs(t, err, ErrSubmitFailed)
}

func TestIsListed(t *testing.T) {
	listed := &Profile{
		Name:          "fake",
		SubmitCommand: []string{"true"},
		StatusCommand: []string{"/bin/sh", "-c", "echo RUNNING"},
		ActiveStates:  []string{"PENDING", "RUNNING"},
	}
	require.NoError(t, listed.validate())
	assert.True(t, NewAdapter(listed, nil).IsListed(context.Background(), "4711"))

	completed := &Profile{
		Name:          "fake",
		SubmitCommand: []string{"true"},
		StatusCommand: []string{"/bin/sh", "-c", "echo COMPLETED"},
		ActiveStates:  []string{"PENDING", "RUNNING"},
	}
	require.NoError(t, completed.validate())
	assert.False(t, NewAdapter(completed, nil).IsListed(context.Background(), "4711"),
		"listed but not active must count as gone")

	gone := &Profile{
		Name:          "fake",
		SubmitCommand: []string{"true"},
		StatusCommand: []string{"/bin/sh", "-c", "exit 1"},
	}
	require.NoError(t, gone.validate())
	assert.False(t, NewAdapter(gone, nil).IsListed(context.Background(), "4711"))
}

func TestReconcileForcesAbortedWhenGone(t *testing.T) {
	p := &Profile{
		Name:          "fake",
		SubmitCommand: []string{"true"},
		StatusCommand: []string{"/bin/sh", "-c", "exit 1"},
	}
	require.NoError(t, p.validate())
	a := NewAdapter(p, nil)

	store := &fakeStatusStore{statuses: map[int64]string{1: "running"}}
	require.NoError(t, a.Reconcile(context.Background(), store, 1, "4711"))
	assert.Equal(t, "aborted", store.statuses[1])
}

func TestReconcileLeavesListedJobsAlone(t *testing.T) {
	p := &Profile{
		Name:          "fake",
		SubmitCommand: []string{"true"},
		StatusCommand: []string{"/bin/sh", "-c", "echo RUNNING"},
	}
	require.NoError(t, p.validate())
	a := NewAdapter(p, nil)

	store := &fakeStatusStore{statuses: map[int64]string{1: "running"}}
	require.NoError(t, a.Reconcile(context.Background(), store, 1, "4711"))
	assert.Equal(t, "running", store.statuses[1])
}

func TestReconcileIgnoresTerminalStatuses(t *testing.T) {
	p := &Profile{
		Name:          "fake",
		SubmitCommand: []string{"true"},
		StatusCommand: []string{"/bin/sh", "-c", "exit 1"},
	}
	require.NoError(t, p.validate())
	a := NewAdapter(p, nil)

	store := &fakeStatusStore{statuses: map[int64]string{1: "finished"}}
	require.NoError(t, a.Reconcile(context.Background(), store, 1, "4711"))
	assert.Equal(t, "finished", store.statuses[1])
}

func TestExpandArgsDropsEmptyPlaceholders(t *testing.T) {
	args := expandArgs(
		[]string{"sbatch", "--chdir", "{{dir}}", "--dependency=afterok:{{wait_for}}", "{{script}}"},
		map[string]string{"dir": "/w", "wait_for": "", "script": "run_job.sh"},
	)
	assert.Equal(t, []string{"sbatch", "--chdir", "/w", "run_job.sh"}, args)
}

func TestLoadProfileValidation(t *testing.T) {
	_, err := LoadProfile("/nonexistent/profile.yaml")
	assert.ErrorContains(t, err, "not found")
}
