package analyze

import (
	"context"
	"sync"

	"github.com/teslashibe/go-inspect/pkg/frame"
)

// Mock implements Analyzer for testing.
type Mock struct {
	// AnalyzeFunc is called when Analyze is invoked.
	AnalyzeFunc func(ctx context.Context, label string, f *frame.Frame) (string, error)

	mu     sync.Mutex
	labels []string
}

// NewMock creates a mock that always answers verdict.
func NewMock(verdict string) *Mock {
	return &Mock{
		AnalyzeFunc: func(ctx context.Context, label string, f *frame.Frame) (string, error) {
			return verdict, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		AnalyzeFunc: func(ctx context.Context, label string, f *frame.Frame) (string, error) {
			return "", err
		},
	}
}

// Analyze records the label and delegates to AnalyzeFunc.
func (m *Mock) Analyze(ctx context.Context, label string, f *frame.Frame) (string, error) {
	m.mu.Lock()
	m.labels = append(m.labels, label)
	m.mu.Unlock()
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, label, f)
	}
	return "", ErrEmptyVerdict
}

// CallCount returns the number of Analyze calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.labels)
}

// Labels returns the labels passed to Analyze, in call order.
func (m *Mock) Labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.labels...)
}

// Verify Mock implements Analyzer at compile time.
var _ Analyzer = (*Mock)(nil)
