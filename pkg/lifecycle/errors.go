package lifecycle

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	// ErrUnsupportedState is returned when the dispatcher reaches refresh or
	// busy on a job type that does not implement the aggregator capability.
	ErrUnsupportedState = errors.New("status handler not supported for this job type")

	// ErrNotReady indicates the pre-run validation failed.
	ErrNotReady = errors.New("job is not ready to run")

	// ErrNoQueueAdapter indicates queue mode was requested without a
	// configured queue adapter.
	ErrNoQueueAdapter = errors.New("no queue adapter configured")

	// ErrWakeDepthExceeded bounds the master wake replay recursion.
	ErrWakeDepthExceeded = errors.New("master wake recursion depth exceeded")

	// ErrUnknownJobType is returned by the registry for unregistered types.
	ErrUnknownJobType = errors.New("unknown job type")
)

// ExecError reports a workload that exited non-zero. The captured process
// output is written to the diagnostic file in the working directory.
type ExecError struct {
	JobID          int64
	ExitCode       int
	DiagnosticPath string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("job %d aborted: workload exited with code %d (diagnostic: %s)",
		e.JobID, e.ExitCode, e.DiagnosticPath)
}
