package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Tasker is the capability interface implemented by job types. The engine
// drives the lifecycle; the Tasker supplies the type-specific pieces.
type Tasker interface {
	// ValidateReadyToRun runs pre-execution checks. It is invoked before
	// any execution strategy.
	ValidateReadyToRun(j *Job) error

	// WriteInput writes the input files for the external workload into the
	// working directory.
	WriteInput(j *Job) error

	// CollectOutput stores workload output when the job reaches collect.
	CollectOutput(j *Job) error

	// CollectLogfiles stores workload log files when the job reaches collect.
	CollectLogfiles(j *Job) error
}

// Refresher is optionally implemented by aggregator job types that can be
// woken from suspension by completing children.
type Refresher interface {
	RunIfRefresh(ctx context.Context, j *Job) error
	RunIfBusy(ctx context.Context, j *Job) error
}

// Factory constructs a fresh Tasker for one job.
type Factory func() Tasker

// Registry maps job type names to factories. Job types form a closed set
// selected explicitly; there is no dynamic lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a job type. Registering a duplicate name is an error.
func (r *Registry) Register(name string, f Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("job type name is required")
	}
	if f == nil {
		return fmt.Errorf("job type factory is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("job type %q is already registered", name)
	}
	r.factories[name] = f
	return nil
}

// New constructs a Tasker for the named job type.
func (r *Registry) New(name string) (Tasker, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, name)
	}
	return f(), nil
}

// Types returns the registered job type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// scriptTask is the built-in job type: it runs the manifest executable and
// relies on collect globs for output capture.
type scriptTask struct{}

func newScriptTask() Tasker { return &scriptTask{} }

func (t *scriptTask) ValidateReadyToRun(j *Job) error {
	if strings.TrimSpace(j.Executable()) == "" {
		return fmt.Errorf("executable command is empty")
	}
	return nil
}

func (t *scriptTask) WriteInput(j *Job) error {
	// The script type carries no generated input; restart files and the
	// wrapper script are handled by the engine.
	return nil
}

func (t *scriptTask) CollectOutput(j *Job) error { return nil }

func (t *scriptTask) CollectLogfiles(j *Job) error { return nil }
