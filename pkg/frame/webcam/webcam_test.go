package webcam

import (
	"context"
	"testing"

	"github.com/teslashibe/go-inspect/pkg/frame"
)

func TestCaptureBeforeOpen(t *testing.T) {
	w := New(DefaultConfig())

	if _, err := w.Capture(context.Background()); err != frame.ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close on unopened webcam: %v", err)
	}
}

func TestNewClampsQuality(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality = 0
	if got := New(cfg).config.Quality; got != frame.DefaultQuality {
		t.Errorf("Expected quality %d, got %d", frame.DefaultQuality, got)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if testing.Short() {
		t.Skip("probes camera hardware")
	}
	cfg := DefaultConfig()
	cfg.Device = 99
	cfg.Warmup = 0

	w := New(cfg)
	if err := w.Open(context.Background()); err == nil {
		w.Close()
		t.Skip("device 99 unexpectedly present")
	}
}
