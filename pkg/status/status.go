// Package status derives the human-facing status line from scheduler state.
package status

import (
	"errors"

	"github.com/teslashibe/go-inspect/pkg/scanlog"
	"github.com/teslashibe/go-inspect/pkg/scheduler"
)

// Status labels.
const (
	LabelIdle          = "Idle"
	LabelCooldown      = "Cooldown"
	LabelCapturing     = "Capturing frame..."
	LabelClassifying   = "Classification model working..."
	LabelAnalyzing     = "Vision model working..."
	LabelScanError     = "Error during scan"
	LabelCaptureFailed = "Frame capture failed"
)

// Status is what a presentation layer shows.
type Status struct {
	Label     string         `json:"status"`
	Countdown *int           `json:"countdown"`
	Mode      string         `json:"mode"`
	Phase     string         `json:"phase"`
	Stage     string         `json:"stage"`
	Error     string         `json:"error,omitempty"`
	Latest    *scanlog.Entry `json:"latest"`
}

// Project maps a scheduler state onto its status. It has no side effects.
func Project(st scheduler.State) Status {
	out := Status{
		Label:  Label(st),
		Mode:   st.Mode.String(),
		Phase:  st.Phase.String(),
		Stage:  st.Stage.String(),
		Latest: st.Latest,
	}
	if st.Running() && st.Countdown != nil {
		n := *st.Countdown
		out.Countdown = &n
	}
	if st.Running() && st.LastError != nil {
		out.Error = st.LastError.Error()
	}
	return out
}

// Label returns the status label for st.
func Label(st scheduler.State) string {
	if !st.Running() {
		return LabelIdle
	}

	switch st.Phase {
	case scheduler.PhaseCapturing:
		switch st.Stage {
		case scheduler.StageClassify:
			return LabelClassifying
		case scheduler.StageAnalyze:
			return LabelAnalyzing
		default:
			return LabelCapturing
		}
	case scheduler.PhaseCooldown:
		// A failure stays visible until the next cycle begins.
		switch {
		case errors.Is(st.LastError, scheduler.ErrFrameAcquisition):
			return LabelCaptureFailed
		case st.LastError != nil:
			return LabelScanError
		}
		return LabelCooldown
	default:
		return LabelCooldown
	}
}
