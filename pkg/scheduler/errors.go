package scheduler

import (
	"errors"
	"fmt"
)

// Failure classes of a cycle. A *CycleError matches exactly one of them
// with errors.Is.
var (
	// ErrFrameAcquisition means no frame could be captured. The cycle is
	// skipped and the schedule continues.
	ErrFrameAcquisition = errors.New("frame acquisition failed")

	// ErrClassification means the classifier failed or returned no label.
	ErrClassification = errors.New("classification failed")

	// ErrAnalysis means the vision model failed or returned no verdict.
	ErrAnalysis = errors.New("analysis failed")
)

// errStaleRun is returned by the capture stage of a pipeline whose run
// ended before it reached the source.
var errStaleRun = errors.New("run ended before capture")

// CycleError describes why a cycle was aborted.
type CycleError struct {
	// Kind is one of ErrFrameAcquisition, ErrClassification or ErrAnalysis.
	Kind error

	// Stage is the pipeline step that failed.
	Stage Stage

	// Err is the underlying error from the collaborator.
	Err error
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("scheduler: %s: %v", e.Kind, e.Err)
}

// Unwrap returns both the kind and the cause so errors.Is matches either.
func (e *CycleError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// TimerConsistencyError reports an attempt to arm a timer whose slot is
// already live. It indicates a broken state machine and is raised with
// panic, never returned.
type TimerConsistencyError struct {
	Kind   string
	LiveID uint64
}

// Error implements the error interface.
func (e *TimerConsistencyError) Error() string {
	return fmt.Sprintf("scheduler: %s timer armed while timer %d is live", e.Kind, e.LiveID)
}
