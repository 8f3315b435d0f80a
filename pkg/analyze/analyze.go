// Package analyze provides the second-stage vision analysis of the scan
// pipeline: a remote vision model that judges whether the classified object
// carries a significant defect.
//
// Providers stream their answer as text fragments; Collect folds a Stream
// into the final verdict string.
//
// Example usage:
//
//	g, _ := analyze.NewGemini(analyze.WithAPIKey(os.Getenv("GEMINI_API_KEY")))
//	verdict, err := g.Analyze(ctx, "Bolt", f)
package analyze

import (
	"context"
	"strings"

	"github.com/teslashibe/go-inspect/pkg/frame"
)

// Analyzer produces a verdict for a classified frame.
type Analyzer interface {
	// Analyze returns the complete verdict text for f, given the label
	// assigned by the first stage.
	Analyze(ctx context.Context, label string, f *frame.Frame) (string, error)
}

// StreamAnalyzer is implemented by analyzers that can deliver their verdict
// incrementally.
type StreamAnalyzer interface {
	Analyzer

	// AnalyzeStream starts the analysis and returns the fragment stream.
	AnalyzeStream(ctx context.Context, label string, f *frame.Frame) (Stream, error)
}

// Stream is a streaming response.
type Stream interface {
	// Recv returns the next chunk. A chunk with Done set ends the stream.
	Recv() (*Chunk, error)

	// Close stops the stream and releases resources.
	Close() error
}

// Chunk is a piece of a streaming response.
type Chunk struct {
	// Delta is the incremental text content.
	Delta string

	// FinishReason is set by providers that report why generation stopped.
	FinishReason string

	// Done is true when the stream is complete.
	Done bool
}

// Collect reads s to completion and returns the concatenated, trimmed text.
// The stream is closed on return.
func Collect(s Stream) (string, error) {
	defer s.Close()

	var b strings.Builder
	for {
		chunk, err := s.Recv()
		if err != nil {
			return "", err
		}
		b.WriteString(chunk.Delta)
		if chunk.Done {
			break
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// Func adapts a plain function to the Analyzer interface.
type Func func(ctx context.Context, label string, f *frame.Frame) (string, error)

// Analyze calls fn.
func (fn Func) Analyze(ctx context.Context, label string, f *frame.Frame) (string, error) {
	return fn(ctx, label, f)
}

// SliceStream is a Stream over fixed fragments, handy for tests and replays.
type SliceStream struct {
	Fragments []string
	next      int
	closed    bool
}

// NewSliceStream returns a stream yielding fragments in order.
func NewSliceStream(fragments ...string) *SliceStream {
	return &SliceStream{Fragments: fragments}
}

// Recv returns the next fragment.
func (s *SliceStream) Recv() (*Chunk, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.next >= len(s.Fragments) {
		return &Chunk{Done: true}, nil
	}
	delta := s.Fragments[s.next]
	s.next++
	return &Chunk{Delta: delta}, nil
}

// Close marks the stream closed.
func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}
