package lifecycle

// Status is the lifecycle state of a job.
//
// NOTE: These values are persisted in the shared job table and in state
// snapshots; they are part of the stable on-disk contract.
type Status string

const (
	// StatusInitialized is the in-memory starting state; no record exists yet.
	StatusInitialized Status = "initialized"
	// StatusCreated means the working directory and input artifacts exist
	// and the record has been persisted.
	StatusCreated Status = "created"
	// StatusSubmitted means the workload has been handed to an executor or
	// external scheduler.
	StatusSubmitted Status = "submitted"
	// StatusRunning means the external workload is executing.
	StatusRunning Status = "running"
	// StatusCollect means the workload exited successfully and output is
	// being collected.
	StatusCollect Status = "collect"
	// StatusSuspended means the job state was serialized out and the job is
	// waiting to be woken (idle aggregator, or chained job waiting for its
	// predecessor).
	StatusSuspended Status = "suspended"
	// StatusRefresh means a suspended aggregator is being serviced after a
	// child completion.
	StatusRefresh Status = "refresh"
	// StatusBusy signals that another child completed while the aggregator
	// was in refresh; the servicing instance replays the wake afterwards.
	StatusBusy Status = "busy"
	// StatusFinished is the successful terminal state.
	StatusFinished Status = "finished"
	// StatusAborted is the failure terminal state, escaped only via repair
	// or run-again.
	StatusAborted Status = "aborted"
)

var allStatuses = map[Status]bool{
	StatusInitialized: true,
	StatusCreated:     true,
	StatusSubmitted:   true,
	StatusRunning:     true,
	StatusCollect:     true,
	StatusSuspended:   true,
	StatusRefresh:     true,
	StatusBusy:        true,
	StatusFinished:    true,
	StatusAborted:     true,
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	return allStatuses[s]
}

// Terminal reports whether s is one of the two terminal states.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusAborted
}

func (s Status) String() string {
	return string(s)
}
