package classify

import (
	"context"
	"sync"

	"github.com/teslashibe/go-inspect/pkg/frame"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, f *frame.Frame) (string, error)

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock that always answers label.
func NewMock(label string) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, f *frame.Frame) (string, error) {
			return label, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, f *frame.Frame) (string, error) {
			return "", err
		},
	}
}

// Classify records the call and delegates to ClassifyFunc.
func (m *Mock) Classify(ctx context.Context, f *frame.Frame) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, f)
	}
	return "", ErrEmptyLabel
}

// CallCount returns the number of Classify calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Verify Mock implements Classifier at compile time.
var _ Classifier = (*Mock)(nil)
