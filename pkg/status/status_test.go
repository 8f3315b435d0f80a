package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teslashibe/go-inspect/pkg/scanlog"
	"github.com/teslashibe/go-inspect/pkg/scheduler"
)

func intPtr(n int) *int { return &n }

func TestLabel(t *testing.T) {
	classifyErr := &scheduler.CycleError{Kind: scheduler.ErrClassification, Err: errors.New("timeout")}
	captureErr := &scheduler.CycleError{Kind: scheduler.ErrFrameAcquisition, Err: errors.New("no device")}

	tests := []struct {
		name  string
		state scheduler.State
		want  string
	}{
		{"idle", scheduler.State{}, LabelIdle},
		{"idle ignores stale error", scheduler.State{LastError: classifyErr}, LabelIdle},
		{"initial delay", scheduler.State{Mode: scheduler.ModeRunning, Phase: scheduler.PhaseAwaitingFirstCapture}, LabelCooldown},
		{"capture", scheduler.State{Mode: scheduler.ModeRunning, Phase: scheduler.PhaseCapturing, Stage: scheduler.StageCapture}, LabelCapturing},
		{"deferred capture", scheduler.State{Mode: scheduler.ModeRunning, Phase: scheduler.PhaseCapturing}, LabelCapturing},
		{"classify", scheduler.State{Mode: scheduler.ModeRunning, Phase: scheduler.PhaseCapturing, Stage: scheduler.StageClassify}, LabelClassifying},
		{"analyze", scheduler.State{Mode: scheduler.ModeRunning, Phase: scheduler.PhaseCapturing, Stage: scheduler.StageAnalyze}, LabelAnalyzing},
		{"cooldown", scheduler.State{Mode: scheduler.ModeRunning, Phase: scheduler.PhaseCooldown}, LabelCooldown},
		{"cooldown after failure", scheduler.State{Mode: scheduler.ModeRunning, Phase: scheduler.PhaseCooldown, LastError: classifyErr}, LabelScanError},
		{"cooldown after capture failure", scheduler.State{Mode: scheduler.ModeRunning, Phase: scheduler.PhaseCooldown, LastError: captureErr}, LabelCaptureFailed},
		{"stage label wins over old error", scheduler.State{Mode: scheduler.ModeRunning, Phase: scheduler.PhaseCapturing, Stage: scheduler.StageAnalyze, LastError: classifyErr}, LabelAnalyzing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.state))
		})
	}
}

func TestProjectCountdown(t *testing.T) {
	st := scheduler.State{
		Mode:      scheduler.ModeRunning,
		Phase:     scheduler.PhaseCooldown,
		Countdown: intPtr(7),
	}
	got := Project(st)
	assert.Equal(t, LabelCooldown, got.Label)
	if assert.NotNil(t, got.Countdown) {
		assert.Equal(t, 7, *got.Countdown)
	}

	*st.Countdown = 3
	assert.Equal(t, 7, *got.Countdown, "projection copies the countdown")

	idle := Project(scheduler.State{Countdown: intPtr(2)})
	assert.Nil(t, idle.Countdown)
	assert.Equal(t, "idle", idle.Mode)
}

func TestProjectCarriesLatestAndError(t *testing.T) {
	latest := &scanlog.Entry{ID: 4, Classification: "Bolt", Verdict: "No Defect"}
	st := scheduler.State{
		Mode:      scheduler.ModeRunning,
		Phase:     scheduler.PhaseCooldown,
		LastError: &scheduler.CycleError{Kind: scheduler.ErrAnalysis, Err: errors.New("quota")},
		Latest:    latest,
	}

	got := Project(st)
	assert.Equal(t, LabelScanError, got.Label)
	assert.Contains(t, got.Error, "quota")
	assert.Equal(t, latest, got.Latest)
	assert.Equal(t, "cooldown", got.Phase)
	assert.Equal(t, "none", got.Stage)
}
