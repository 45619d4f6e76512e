// Package lifecycle implements the job lifecycle orchestration engine.
//
// A job wraps one external workload. Its status lives in the shared job
// table (pkg/jobstore) and is the single source of truth across process
// boundaries: modal runs execute inline, non-modal and queue runs re-enter
// the engine in a fresh process through a generated wrapper script. The
// in-memory Job object is a cache that must be refreshed before trusting
// status for cross-process decisions.
//
// Coordination between jobs uses no locks. The master/child wake protocol
// and the parent/successor chain scan are read-modify-write sequences
// against the shared record; see the master and chain files for the
// residual races this accepts.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/forgelab/jobmill/pkg/jobstore"
	"github.com/forgelab/jobmill/pkg/manifest"
	"github.com/forgelab/jobmill/pkg/queue"
	"github.com/forgelab/jobmill/pkg/statefile"
)

const defaultMaxWakeDepth = 100

// Options configures an Engine.
type Options struct {
	// Store is the shared job table accessor (required).
	Store *jobstore.Store

	// DataDir is the root under which working directories are created.
	DataDir string

	// DBPath is the job database path, embedded into generated wrapper
	// scripts so the re-entering process finds the same store. Optional;
	// when empty the wrapper relies on the process configuration.
	DBPath string

	// Logger defaults to a nop logger.
	Logger *zap.Logger

	// Registry defaults to a registry with the built-in "script" type.
	Registry *Registry

	// Queue is the batch scheduler adapter, required for queue mode.
	Queue *queue.Adapter

	// MaxWakeDepth bounds the master wake replay recursion. Default 100.
	MaxWakeDepth int

	// BeforeSuccessorRun is invoked for each successor about to be woken.
	BeforeSuccessorRun func(parent, child *Job)

	// DisableSignalGuard skips process-wide signal interception (tests).
	DisableSignalGuard bool
}

// Engine creates, loads and runs jobs against one shared job store.
type Engine struct {
	store           *jobstore.Store
	dataDir         string
	dbPath          string
	log             *zap.Logger
	registry        *Registry
	queue           *queue.Adapter
	maxWakeDepth    int
	beforeSuccessor func(parent, child *Job)
	useSignalGuard  bool
}

// New constructs an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("lifecycle: job store is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	if _, err := reg.New("script"); errors.Is(err, ErrUnknownJobType) {
		if err := reg.Register("script", newScriptTask); err != nil {
			return nil, err
		}
	}
	depth := opts.MaxWakeDepth
	if depth <= 0 {
		depth = defaultMaxWakeDepth
	}
	dataDir := strings.TrimSpace(opts.DataDir)
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "jobmill")
	}

	return &Engine{
		store:           opts.Store,
		dataDir:         dataDir,
		dbPath:          strings.TrimSpace(opts.DBPath),
		log:             log,
		registry:        reg,
		queue:           opts.Queue,
		maxWakeDepth:    depth,
		beforeSuccessor: opts.BeforeSuccessorRun,
		useSignalGuard:  !opts.DisableSignalGuard,
	}, nil
}

// Store exposes the shared job table accessor.
func (e *Engine) Store() *jobstore.Store {
	return e.store
}

// NewJob builds an in-memory job from a manifest. If a record with the
// same project and name already exists, its id and persisted status are
// adopted so the caller continues where the previous process left off.
func (e *Engine) NewJob(ctx context.Context, m *manifest.Manifest) (*Job, error) {
	if m == nil {
		return nil, errors.New("manifest is nil")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	tasker, err := e.registry.New(m.Job.Type)
	if err != nil {
		return nil, err
	}

	j := &Job{
		engine:       e,
		tasker:       tasker,
		name:         m.Job.Name,
		project:      m.Job.Project,
		jobType:      m.Job.Type,
		status:       StatusInitialized,
		runMode:      RunMode(m.Server.RunMode),
		parentID:     m.Job.ParentID,
		masterID:     m.Job.MasterID,
		executable:   m.Executable.Command,
		collectGlobs: append([]string(nil), m.Collect.Globs...),
		workDir:      e.workingDir(m.Job.Project, m.Job.Name),
	}
	for _, f := range m.Restart.Files {
		if err := j.AppendRestartFile(f); err != nil {
			return nil, err
		}
	}

	if rec, err := e.store.GetByName(ctx, j.project, j.name); err == nil {
		j.id = rec.ID
		j.status = Status(rec.Status)
		j.queueID = rec.QueueID
		if rec.WorkingDir != "" {
			j.workDir = rec.WorkingDir
		}
	} else if !errors.Is(err, jobstore.ErrNotFound) {
		return nil, err
	}

	e.adopt(j)
	return j, nil
}

// LoadJob rehydrates a persisted job into memory from its record and, when
// present, its state snapshot.
func (e *Engine) LoadJob(ctx context.Context, id int64) (*Job, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", id, err)
	}

	j := &Job{
		engine:   e,
		id:       rec.ID,
		name:     rec.Name,
		project:  rec.Project,
		jobType:  rec.JobType,
		status:   Status(rec.Status),
		runMode:  RunMode(rec.RunMode),
		queueID:  rec.QueueID,
		parentID: rec.ParentID,
		masterID: rec.MasterID,
		workDir:  rec.WorkingDir,
	}
	if j.workDir == "" {
		j.workDir = e.workingDir(j.project, j.name)
	}

	if statefile.Exists(j.workDir) {
		snap, err := statefile.Load(j.workDir)
		if err != nil {
			return nil, fmt.Errorf("load job %d snapshot: %w", id, err)
		}
		j.restoreFromSnapshot(snap)
	}

	j.tasker, err = e.registry.New(j.jobType)
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", id, err)
	}

	e.adopt(j)
	return j, nil
}

// Resume is the entry point for the wrapper process of a non-modal or
// queue run: it rehydrates the job, executes the workload synchronously
// and drives the remaining lifecycle to its terminal status.
func (e *Engine) Resume(ctx context.Context, id int64) error {
	j, err := e.LoadJob(ctx, id)
	if err != nil {
		return err
	}
	defer j.Close()

	switch j.status {
	case StatusSubmitted, StatusRunning:
	default:
		e.log.Info("nothing to resume",
			zap.Int64("job_id", id),
			zap.String("status", string(j.status)))
		return nil
	}

	if err := j.executeWorkload(ctx); err != nil {
		j.dropStatusToAborted(ctx)
		return err
	}
	return j.Run(ctx, RunOptions{})
}

// WaitForJob polls the shared store until the job reaches a terminal
// status. Polling is rate-limited to one check per interval.
func (e *Engine) WaitForJob(ctx context.Context, id int64, interval time.Duration, maxIterations int) (Status, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxIterations <= 0 {
		maxIterations = 100
	}

	lim := rate.NewLimiter(rate.Every(interval), 1)
	for i := 0; i < maxIterations; i++ {
		if err := lim.Wait(ctx); err != nil {
			return "", err
		}
		st, err := e.store.GetStatus(ctx, id)
		if err != nil {
			return "", err
		}
		if s := Status(st); s.Terminal() {
			return s, nil
		}
	}
	return "", fmt.Errorf("job %d did not reach a terminal status after %d checks", id, maxIterations)
}

// ReconcileQueuedJobs sweeps all records persisted as running or submitted
// in queue mode and reconciles each against the external scheduler.
// Returns the number of records repaired to aborted.
func (e *Engine) ReconcileQueuedJobs(ctx context.Context) (int, error) {
	if e.queue == nil {
		return 0, ErrNoQueueAdapter
	}

	recs, err := e.store.ListByStatus(ctx, string(StatusRunning), string(StatusSubmitted))
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, rec := range recs {
		if RunMode(rec.RunMode) != RunModeQueue || rec.QueueID == "" {
			continue
		}
		if err := e.queue.Reconcile(ctx, e.store, rec.ID, rec.QueueID); err != nil {
			return repaired, fmt.Errorf("reconcile job %d: %w", rec.ID, err)
		}
		st, err := e.store.GetStatus(ctx, rec.ID)
		if err != nil {
			return repaired, err
		}
		if Status(st) == StatusAborted && Status(rec.Status) != StatusAborted {
			repaired++
		}
	}
	return repaired, nil
}

func (e *Engine) adopt(j *Job) {
	if e.useSignalGuard {
		registerWithGuard(j)
	}
}

func (e *Engine) workingDir(project, name string) string {
	return filepath.Join(e.dataDir, "projects", project, name+"_wd")
}
