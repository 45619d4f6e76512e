package lifecycle

import "fmt"

// RunMode selects one of the four mutually exclusive execution strategies.
type RunMode string

const (
	// RunModeModal executes the workload synchronously in-process.
	RunModeModal RunMode = "modal"
	// RunModeNonModal launches the workload as a detached background
	// process driving the remaining lifecycle through the wrapper script.
	RunModeNonModal RunMode = "non_modal"
	// RunModeQueue submits the wrapper script to an external batch scheduler.
	RunModeQueue RunMode = "queue"
	// RunModeManual prints instructions for running the wrapper by hand.
	RunModeManual RunMode = "manual"
)

// ParseRunMode converts a string into a RunMode.
func ParseRunMode(s string) (RunMode, error) {
	m := RunMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid run mode %q (want modal, non_modal, queue or manual)", s)
	}
	return m, nil
}

// Valid reports whether m is a known run mode.
func (m RunMode) Valid() bool {
	switch m {
	case RunModeModal, RunModeNonModal, RunModeQueue, RunModeManual:
		return true
	}
	return false
}

func (m RunMode) String() string {
	return string(m)
}
