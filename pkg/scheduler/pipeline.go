package scheduler

import (
	"context"
	"errors"
	"strings"

	"github.com/teslashibe/go-inspect/pkg/analyze"
	"github.com/teslashibe/go-inspect/pkg/classify"
	"github.com/teslashibe/go-inspect/pkg/frame"
	"github.com/teslashibe/go-inspect/pkg/scanlog"
)

// runPipeline executes one cycle for epoch and reports its outcome. Stop
// does not interrupt it; Close does, through s.ctx.
func (s *Scheduler) runPipeline(epoch uint64, runID string) {
	defer s.wg.Done()

	start := s.clock.Now()
	logger := s.logger.With("run_id", runID, "epoch", epoch)

	entry, err := s.cycle(epoch)
	if err != nil {
		if errors.Is(err, errStaleRun) {
			logger.Debug("cycle skipped, run ended before capture")
		} else {
			logger.Warn("scan cycle failed", "error", err)
		}
		s.dispatch(settledEvent{epoch: epoch, err: err})
		return
	}

	entry.RunID = runID
	entry.Latency = s.clock.Now().Sub(start)
	if entry.Outcome == analyze.OutcomeUnrecognized {
		logger.Warn("verdict matches neither expected phrase",
			"verdict", entry.Verdict,
			"classification", entry.Classification)
	}
	s.dispatch(settledEvent{epoch: epoch, entry: entry})
}

// cycle runs capture, classify and analyze in order, stopping at the first
// failure.
func (s *Scheduler) cycle(epoch uint64) (*scanlog.Entry, error) {
	capturedAt := s.clock.Now()
	f, err := s.capture(epoch)
	if err != nil {
		return nil, &CycleError{Kind: ErrFrameAcquisition, Stage: StageCapture, Err: err}
	}

	s.dispatch(stageEvent{epoch: epoch, stage: StageClassify})
	label, err := s.classify(f)
	if err != nil {
		return nil, &CycleError{Kind: ErrClassification, Stage: StageClassify, Err: err}
	}

	s.dispatch(stageEvent{epoch: epoch, stage: StageAnalyze})
	verdict, err := s.analyze(label, f)
	if err != nil {
		return nil, &CycleError{Kind: ErrAnalysis, Stage: StageAnalyze, Err: err}
	}

	return &scanlog.Entry{
		Timestamp:      capturedAt,
		Classification: label,
		Verdict:        verdict,
		Outcome:        analyze.ParseOutcome(verdict),
	}, nil
}

// capture reads one frame, reopening the source if an earlier open failed.
// The source lock is released during the read; a Stop arriving meanwhile
// leaves the close to endCapture.
func (s *Scheduler) capture(epoch uint64) (*frame.Frame, error) {
	s.sourceMu.Lock()
	if err := s.openLocked(epoch); err != nil {
		s.sourceMu.Unlock()
		return nil, err
	}
	s.capturing = true
	s.sourceMu.Unlock()
	defer s.endCapture()

	ctx, cancel := s.stageContext(s.cfg.CaptureTimeout)
	defer cancel()
	f, err := s.source.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, frame.ErrEmpty
	}
	if s.epoch.Load() == epoch {
		s.frames.publish(f)
	}
	return f, nil
}

// endCapture clears the capture mark and performs a release that Stop
// deferred.
func (s *Scheduler) endCapture() {
	s.sourceMu.Lock()
	defer s.sourceMu.Unlock()
	s.capturing = false
	if s.releasePending && s.sourceOpen {
		s.releaseLocked()
	}
}

func (s *Scheduler) classify(f *frame.Frame) (string, error) {
	ctx, cancel := s.stageContext(s.cfg.ClassifyTimeout)
	defer cancel()

	raw, err := s.classifier.Classify(ctx, f)
	if err != nil {
		return "", err
	}
	return classify.Normalize(raw)
}

func (s *Scheduler) analyze(label string, f *frame.Frame) (string, error) {
	ctx, cancel := s.stageContext(s.cfg.AnalyzeTimeout)
	defer cancel()

	verdict, err := s.analyzer.Analyze(ctx, label, f)
	if err != nil {
		return "", err
	}
	verdict = strings.TrimSpace(verdict)
	if verdict == "" {
		return "", analyze.ErrEmptyVerdict
	}
	return verdict, nil
}

// RunOnce runs a single cycle outside the schedule, for diagnostics. The
// source is opened and closed around it; it must not be used while the
// scheduler is running.
func RunOnce(ctx context.Context, source frame.Source, classifier classify.Classifier, analyzer analyze.Analyzer, opts ...Option) (scanlog.Entry, error) {
	s := newScheduler(ctx, source, classifier, analyzer, opts...)
	defer s.notifier.close()
	defer s.cancel()

	// Epoch 0 is the current epoch of a scheduler that never started.
	entry, err := s.cycle(0)
	s.sourceMu.Lock()
	if s.sourceOpen {
		s.releaseLocked()
	}
	s.sourceMu.Unlock()
	if err != nil {
		return scanlog.Entry{}, err
	}
	return s.log.Append(*entry), nil
}
