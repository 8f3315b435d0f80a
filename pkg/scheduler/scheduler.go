// Package scheduler runs the capture-and-analysis loop.
//
// A Scheduler is an explicit state machine with four states: Idle,
// AwaitingFirstCapture, Capturing and Cooldown. Start arms a short initial
// delay; every settled cycle (success or failure) arms the steady-state
// interval together with a one-second countdown. Each cycle captures a
// frame, classifies it, asks the vision model for a verdict and appends
// the result to the scan log.
//
// All state changes go through a single transition function executed under
// the scheduler mutex. Timer callbacks and pipeline goroutines only deliver
// events to it. Every Start and Stop increments an epoch; events carrying an
// older epoch, and callbacks of cancelled timers, are ignored, so a pipeline
// that outlives a Stop never writes to the log or the state.
//
// Example usage:
//
//	s := scheduler.New(src, classifier, analyzer)
//	defer s.Close()
//	s.Start()
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-inspect/pkg/analyze"
	"github.com/teslashibe/go-inspect/pkg/classify"
	"github.com/teslashibe/go-inspect/pkg/clock"
	"github.com/teslashibe/go-inspect/pkg/frame"
	"github.com/teslashibe/go-inspect/pkg/scanlog"
)

// Scheduler owns the capture loop and the frame source.
type Scheduler struct {
	cfg        Config
	source     frame.Source
	classifier classify.Classifier
	analyzer   analyze.Analyzer
	log        *scanlog.Log
	clock      clock.Clock
	logger     *slog.Logger
	notifier   *notifier
	frames     frameFeed

	// ctx is cancelled by Close to abort in-flight pipelines.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// epoch mirrors state.epoch for readers that must not take mu.
	epoch atomic.Uint64

	mu     sync.Mutex
	timers timers
	state  machine
	closed bool

	// sourceMu guards the source lifecycle flags. It is never held across
	// Capture, so Stop does not wait for a slow acquisition; a release
	// requested mid-capture is performed when the capture returns.
	sourceMu       sync.Mutex
	sourceOpen     bool
	capturing      bool
	releasePending bool
}

// machine is the mutable state guarded by Scheduler.mu.
type machine struct {
	mode      Mode
	phase     Phase
	stage     Stage
	countdown int
	ticking   bool
	lastErr   error
	epoch     uint64
	runID     string
	cycles    int
	latest    *scanlog.Entry

	// inFlight is set while any pipeline goroutine, current or stale, has
	// not settled. pendingCapture records a capture that came due meanwhile.
	inFlight       bool
	pendingCapture bool
}

// New creates an idle scheduler.
func New(source frame.Source, classifier classify.Classifier, analyzer analyze.Analyzer, opts ...Option) *Scheduler {
	return newScheduler(context.Background(), source, classifier, analyzer, opts...)
}

func newScheduler(parent context.Context, source frame.Source, classifier classify.Classifier, analyzer analyze.Analyzer, opts ...Option) *Scheduler {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Log == nil {
		cfg.Log = scanlog.New(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(parent)
	s := &Scheduler{
		cfg:        cfg,
		source:     source,
		classifier: classifier,
		analyzer:   analyzer,
		log:        cfg.Log,
		clock:      cfg.Clock,
		logger:     cfg.Logger.With("component", "scheduler"),
		notifier:   newNotifier(cfg.Observers),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.timers.clock = cfg.Clock
	if latest, ok := cfg.Log.Latest(); ok {
		s.state.latest = &latest
	}
	return s
}

// Start begins scanning. It is a no-op while running or after Close.
func (s *Scheduler) Start() {
	epoch, changed := s.dispatch(startEvent{})
	if changed {
		s.openSource(epoch)
	}
}

// Stop ends scanning: pending timers are cancelled and the frame source is
// released. A pipeline already in flight runs to completion and its result
// is discarded. It is a no-op while idle.
func (s *Scheduler) Stop() {
	epoch, changed := s.dispatch(stopEvent{})
	if changed {
		s.closeSource(epoch)
	}
}

// Close stops the scheduler, aborts in-flight pipelines and waits for them
// to settle. Subscriber channels are closed. The scheduler cannot be
// restarted afterwards.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if already {
		return nil
	}

	s.cancel()
	s.Stop()
	s.wg.Wait()
	s.notifier.close()
	s.frames.close()
	s.logger.Debug("scheduler closed")
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Latest returns the most recent successful scan.
func (s *Scheduler) Latest() (scanlog.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.latest == nil {
		return scanlog.Entry{}, false
	}
	return *s.state.latest, true
}

// Scans returns up to n logged scans, newest first. n <= 0 returns all.
func (s *Scheduler) Scans(n int) []scanlog.Entry {
	return s.log.Recent(n)
}

// Scan returns the logged scan with the given id.
func (s *Scheduler) Scan(id uint64) (scanlog.Entry, bool) {
	return s.log.Get(id)
}

// ScanLog returns the underlying log.
func (s *Scheduler) ScanLog() *scanlog.Log {
	return s.log
}

// Subscribe returns a channel receiving the state after every transition
// and a function that unsubscribes and closes the channel. A subscriber
// that falls behind loses its oldest undelivered states.
func (s *Scheduler) Subscribe() (<-chan State, func()) {
	return s.notifier.subscribe()
}

// SubscribeFrames returns a channel receiving each frame captured by the
// current run, for live preview, and a function that unsubscribes. Only the
// newest unread frame is kept.
func (s *Scheduler) SubscribeFrames() (<-chan *frame.Frame, func()) {
	return s.frames.subscribe()
}

// PendingTimers returns the number of live timers.
func (s *Scheduler) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers.count()
}

// dispatch runs one event through the state machine. It returns the epoch
// after the transition and whether the epoch changed.
func (s *Scheduler) dispatch(ev event) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state.epoch
	s.transition(ev)
	s.epoch.Store(s.state.epoch)
	return s.state.epoch, s.state.epoch != before
}

// publish queues the current state for observers. Callers hold mu.
func (s *Scheduler) publish() {
	s.notifier.publish(s.snapshotLocked())
}

func (s *Scheduler) snapshotLocked() State {
	st := State{
		Mode:      s.state.mode,
		Phase:     s.state.phase,
		Stage:     s.state.stage,
		LastError: s.state.lastErr,
		Epoch:     s.state.epoch,
		RunID:     s.state.runID,
		Cycles:    s.state.cycles,
		InFlight:  s.state.inFlight,
	}
	if s.state.ticking {
		n := s.state.countdown
		st.Countdown = &n
	}
	if s.state.latest != nil {
		e := *s.state.latest
		st.Latest = &e
	}
	return st
}

// openSource acquires the frame source for the run started at epoch,
// unless that run already ended.
func (s *Scheduler) openSource(epoch uint64) {
	s.sourceMu.Lock()
	defer s.sourceMu.Unlock()
	if err := s.openLocked(epoch); err != nil && !errors.Is(err, errStaleRun) {
		// Capture retries the open on every cycle.
		s.logger.Warn("frame source open failed", "error", err)
	}
}

// openLocked opens the source if needed. Callers hold sourceMu.
func (s *Scheduler) openLocked(epoch uint64) error {
	if s.epoch.Load() != epoch {
		return errStaleRun
	}
	if s.sourceOpen {
		// A new run takes over a source whose release was deferred.
		s.releasePending = false
		return nil
	}
	ctx, cancel := s.stageContext(s.cfg.CaptureTimeout)
	defer cancel()
	if err := s.source.Open(ctx); err != nil {
		return err
	}
	s.sourceOpen = true
	s.logger.Debug("frame source opened", "epoch", epoch)
	return nil
}

// closeSource releases the frame source for the stop at epoch, unless a
// newer run already owns it.
func (s *Scheduler) closeSource(epoch uint64) {
	s.sourceMu.Lock()
	defer s.sourceMu.Unlock()
	if s.epoch.Load() != epoch || !s.sourceOpen {
		return
	}
	if s.capturing {
		s.releasePending = true
		s.logger.Debug("frame source release deferred until capture returns", "epoch", epoch)
		return
	}
	s.releaseLocked()
}

// releaseLocked closes the source. Callers hold sourceMu.
func (s *Scheduler) releaseLocked() {
	s.sourceOpen = false
	s.releasePending = false
	if err := s.source.Close(); err != nil {
		s.logger.Warn("frame source close failed", "error", err)
		return
	}
	s.logger.Debug("frame source released")
}

func (s *Scheduler) stageContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(s.ctx)
	}
	return context.WithTimeout(s.ctx, timeout)
}

func newRunID() string {
	return uuid.NewString()
}
