package scheduler

import "github.com/teslashibe/go-inspect/pkg/scanlog"

// Mode is the run state requested through the control surface.
type Mode int

const (
	// ModeIdle means no captures are scheduled.
	ModeIdle Mode = iota
	// ModeRunning means the capture loop is active.
	ModeRunning
)

// String returns a human-readable mode.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRunning:
		return "running"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Phase is the position in the capture loop. It is only meaningful while
// the mode is ModeRunning.
type Phase int

const (
	// PhaseNone is the phase while idle.
	PhaseNone Phase = iota
	// PhaseAwaitingFirstCapture waits out the initial delay after Start.
	PhaseAwaitingFirstCapture
	// PhaseCapturing runs (or is about to run) the pipeline.
	PhaseCapturing
	// PhaseCooldown waits out the interval between cycles.
	PhaseCooldown
)

// String returns a human-readable phase.
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseAwaitingFirstCapture:
		return "awaiting_first_capture"
	case PhaseCapturing:
		return "capturing"
	case PhaseCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Stage is the pipeline step in flight while capturing.
type Stage int

const (
	// StageNone means no pipeline step is running for the current run.
	StageNone Stage = iota
	// StageCapture acquires a frame.
	StageCapture
	// StageClassify runs the local classifier.
	StageClassify
	// StageAnalyze runs the vision model.
	StageAnalyze
)

// String returns a human-readable stage.
func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageCapture:
		return "capture"
	case StageClassify:
		return "classify"
	case StageAnalyze:
		return "analyze"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a point-in-time copy of the scheduler state. Values returned by
// the scheduler are never modified afterwards.
type State struct {
	Mode  Mode  `json:"mode"`
	Phase Phase `json:"phase"`
	Stage Stage `json:"stage"`

	// Countdown is the number of seconds left before the next capture,
	// present only while the countdown is ticking.
	Countdown *int `json:"countdown"`

	// LastError is the failure of the most recent cycle of this run, nil
	// after a successful cycle.
	LastError error `json:"-"`

	// Epoch increments on every effective Start and Stop.
	Epoch uint64 `json:"epoch"`

	// RunID identifies the current Start session.
	RunID string `json:"runId,omitempty"`

	// Cycles counts settled cycles in the current run.
	Cycles int `json:"cycles"`

	// InFlight is true while a pipeline, possibly from an earlier run, has
	// not settled.
	InFlight bool `json:"inFlight"`

	// Latest is the most recent successful scan of the process.
	Latest *scanlog.Entry `json:"latest,omitempty"`
}

// Running reports whether the capture loop is active.
func (s State) Running() bool {
	return s.Mode == ModeRunning
}
