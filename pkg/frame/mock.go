package frame

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"
)

// Mock implements Source for testing.
type Mock struct {
	// OpenFunc is called when Open is invoked.
	OpenFunc func(ctx context.Context) error

	// CaptureFunc is called when Capture is invoked.
	CaptureFunc func(ctx context.Context) (*Frame, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	open  bool
	calls map[string]int
}

// NewMock creates a mock source that returns a small grey test frame.
func NewMock() *Mock {
	return &Mock{
		CaptureFunc: func(ctx context.Context) (*Frame, error) {
			return TestFrame(), nil
		},
	}
}

// Open records the call and marks the source open.
func (m *Mock) Open(ctx context.Context) error {
	m.record("Open")
	if m.OpenFunc != nil {
		if err := m.OpenFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.open = true
	m.mu.Unlock()
	return nil
}

// Capture records the call and delegates to CaptureFunc.
func (m *Mock) Capture(ctx context.Context) (*Frame, error) {
	m.record("Capture")
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx)
	}
	return nil, ErrEmpty
}

// Close records the call and marks the source closed.
func (m *Mock) Close() error {
	m.record("Close")
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// IsOpen reports whether Open was called more recently than Close.
func (m *Mock) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// TestFrame returns a 16x16 grey JPEG frame.
func TestFrame() *Frame {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = color.Gray{Y: 128}.Y
	}
	f, err := FromImage(img, DefaultQuality, time.Now())
	if err != nil {
		panic(err)
	}
	return f
}

// Verify Mock implements Source at compile time.
var _ Source = (*Mock)(nil)
