package scheduler

import (
	"time"

	"github.com/teslashibe/go-inspect/pkg/scanlog"
)

// event is an input to the state machine.
type event interface{ isEvent() }

type (
	startEvent struct{}
	stopEvent  struct{}

	// captureDueEvent is delivered by the capture timer with the given id.
	captureDueEvent struct{ timerID uint64 }

	// tickEvent is delivered by the countdown timer with the given id.
	tickEvent struct{ timerID uint64 }

	// stageEvent reports that the pipeline of epoch entered stage.
	stageEvent struct {
		epoch uint64
		stage Stage
	}

	// settledEvent reports the outcome of the pipeline of epoch. Exactly
	// one of entry and err is set.
	settledEvent struct {
		epoch uint64
		entry *scanlog.Entry
		err   error
	}
)

func (startEvent) isEvent()      {}
func (stopEvent) isEvent()       {}
func (captureDueEvent) isEvent() {}
func (tickEvent) isEvent()       {}
func (stageEvent) isEvent()      {}
func (settledEvent) isEvent()    {}

// transition applies ev to the state machine. It is the only place where
// the scheduler state changes and is always called with mu held.
func (s *Scheduler) transition(ev event) {
	m := &s.state

	switch ev := ev.(type) {
	case startEvent:
		if s.closed || m.mode == ModeRunning {
			return
		}
		m.epoch++
		m.mode = ModeRunning
		m.phase = PhaseAwaitingFirstCapture
		m.stage = StageNone
		m.runID = newRunID()
		m.lastErr = nil
		m.cycles = 0
		m.pendingCapture = false
		s.armCapture(s.cfg.InitialDelay)
		s.startCountdown(s.cfg.InitialDelay)
		s.logger.Info("scanning started",
			"run_id", m.runID,
			"epoch", m.epoch,
			"initial_delay", s.cfg.InitialDelay)
		s.publish()

	case stopEvent:
		if m.mode == ModeIdle {
			return
		}
		m.epoch++
		m.mode = ModeIdle
		m.phase = PhaseNone
		m.stage = StageNone
		m.pendingCapture = false
		m.ticking = false
		s.timers.cancelAll()
		s.logger.Info("scanning stopped",
			"run_id", m.runID,
			"epoch", m.epoch,
			"cycles", m.cycles,
			"in_flight", m.inFlight)
		s.publish()

	case captureDueEvent:
		if !s.timers.fired(captureTimer, ev.timerID) {
			s.logger.Debug("ignoring stale capture timer", "timer_id", ev.timerID)
			return
		}
		if m.ticking {
			s.finishCountdown()
		}
		m.phase = PhaseCapturing
		if m.inFlight {
			// A pipeline from an earlier run has not settled yet.
			m.pendingCapture = true
			m.stage = StageNone
			s.logger.Debug("capture deferred until previous pipeline settles")
			s.publish()
			return
		}
		s.launch()

	case tickEvent:
		if !s.timers.fired(tickTimer, ev.timerID) {
			return
		}
		if m.countdown > 0 {
			m.countdown--
		}
		s.publish()
		if m.countdown > 0 {
			s.armTick()
			return
		}
		m.ticking = false
		s.publish()

	case stageEvent:
		if ev.epoch != m.epoch {
			return
		}
		m.stage = ev.stage
		s.publish()

	case settledEvent:
		m.inFlight = false
		if ev.epoch != m.epoch {
			s.logger.Debug("discarding result of ended run",
				"pipeline_epoch", ev.epoch,
				"epoch", m.epoch,
				"error", ev.err)
			if m.mode == ModeRunning && m.pendingCapture {
				m.pendingCapture = false
				s.launch()
			}
			return
		}

		m.cycles++
		if ev.err != nil {
			m.lastErr = ev.err
		} else {
			entry := s.log.Append(*ev.entry)
			m.latest = &entry
			m.lastErr = nil
			s.logger.Info("scan recorded",
				"id", entry.ID,
				"classification", entry.Classification,
				"verdict", entry.Verdict,
				"outcome", entry.Outcome,
				"latency_ms", entry.Latency.Milliseconds())
		}
		m.phase = PhaseCooldown
		m.stage = StageNone
		s.armCapture(s.cfg.Interval)
		s.startCountdown(s.cfg.Interval)
		s.publish()
	}
}

// launch starts a pipeline for the current epoch. Callers hold mu.
func (s *Scheduler) launch() {
	m := &s.state
	m.inFlight = true
	m.stage = StageCapture
	s.publish()

	epoch, runID := m.epoch, m.runID
	s.wg.Add(1)
	go s.runPipeline(epoch, runID)
}

func (s *Scheduler) armCapture(d time.Duration) {
	s.timers.arm(captureTimer, d, func(id uint64) {
		s.dispatch(captureDueEvent{timerID: id})
	})
}

func (s *Scheduler) armTick() {
	s.timers.arm(tickTimer, countdownStep, func(id uint64) {
		s.dispatch(tickEvent{timerID: id})
	})
}

// startCountdown shows floor(d/1s) and ticks it down to zero.
func (s *Scheduler) startCountdown(d time.Duration) {
	secs := int(d / countdownStep)
	if secs <= 0 {
		s.state.ticking = false
		return
	}
	s.state.countdown = secs
	s.state.ticking = true
	s.armTick()
}

// finishCountdown publishes zero if the countdown has not reached it yet,
// then clears it.
func (s *Scheduler) finishCountdown() {
	s.timers.cancel(tickTimer)
	if s.state.countdown != 0 {
		s.state.countdown = 0
		s.publish()
	}
	s.state.ticking = false
}
