package scheduler

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-inspect/pkg/clock"
	"github.com/teslashibe/go-inspect/pkg/scanlog"
)

// Default timings.
const (
	DefaultInitialDelay    = 3 * time.Second
	DefaultInterval        = 10 * time.Second
	DefaultCaptureTimeout  = 5 * time.Second
	DefaultClassifyTimeout = 20 * time.Second
	DefaultAnalyzeTimeout  = 60 * time.Second
)

// countdownStep is the resolution of the visible countdown.
const countdownStep = time.Second

// Config holds scheduler configuration.
type Config struct {
	// InitialDelay is the wait between Start and the first capture.
	InitialDelay time.Duration

	// Interval is the cooldown after every settled cycle.
	Interval time.Duration

	// Per-stage bounds. Zero disables the bound.
	CaptureTimeout  time.Duration
	ClassifyTimeout time.Duration
	AnalyzeTimeout  time.Duration

	Clock     clock.Clock
	Log       *scanlog.Log
	Logger    *slog.Logger
	Observers []func(State)
}

// Option is a functional option for configuring the scheduler.
type Option func(*Config)

// WithInitialDelay sets the wait before the first capture of a run.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) { c.InitialDelay = d }
}

// WithInterval sets the cooldown between cycles.
func WithInterval(d time.Duration) Option {
	return func(c *Config) { c.Interval = d }
}

// WithCaptureTimeout bounds frame acquisition.
func WithCaptureTimeout(d time.Duration) Option {
	return func(c *Config) { c.CaptureTimeout = d }
}

// WithClassifyTimeout bounds the classifier call.
func WithClassifyTimeout(d time.Duration) Option {
	return func(c *Config) { c.ClassifyTimeout = d }
}

// WithAnalyzeTimeout bounds the vision model call.
func WithAnalyzeTimeout(d time.Duration) Option {
	return func(c *Config) { c.AnalyzeTimeout = d }
}

// WithClock replaces the real clock, typically with clock.Fake in tests.
func WithClock(c clock.Clock) Option {
	return func(cfg *Config) { cfg.Clock = c }
}

// WithScanLog records scans into l instead of a fresh unbounded log.
func WithScanLog(l *scanlog.Log) Option {
	return func(c *Config) { c.Log = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithObserver registers fn to receive every published state, in order,
// from a single delivery goroutine.
func WithObserver(fn func(State)) Option {
	return func(c *Config) { c.Observers = append(c.Observers, fn) }
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		InitialDelay:    DefaultInitialDelay,
		Interval:        DefaultInterval,
		CaptureTimeout:  DefaultCaptureTimeout,
		ClassifyTimeout: DefaultClassifyTimeout,
		AnalyzeTimeout:  DefaultAnalyzeTimeout,
	}
}
