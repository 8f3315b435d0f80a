// Package classify provides the fast first-stage classifier of the scan
// pipeline and the label normalization applied to its output.
//
// Classifiers return the raw label text produced by the model or process;
// callers pass it through Normalize before using it.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/teslashibe/go-inspect/pkg/frame"
)

// Sentinel errors for common conditions.
var (
	// ErrEmptyLabel is returned when a classifier produced no label text.
	ErrEmptyLabel = errors.New("classify: empty label")

	// ErrNoFrame is returned when Classify is called with a nil frame.
	ErrNoFrame = errors.New("classify: nil frame")
)

// Classifier assigns a label to a frame.
type Classifier interface {
	// Classify returns the raw label for f.
	Classify(ctx context.Context, f *frame.Frame) (string, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(ctx context.Context, f *frame.Frame) (string, error)

// Classify calls fn.
func (fn Func) Classify(ctx context.Context, f *frame.Frame) (string, error) {
	return fn(ctx, f)
}

// Normalize reduces raw classifier output to a display label: the last
// whitespace-delimited token with its first letter upper-cased and the
// remainder left as-is.
//
//	"minor crack"         -> "Crack"
//	"SEVERE dent"         -> "Dent"
//	"Prediction: scratch" -> "Scratch"
func Normalize(raw string) (string, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", ErrEmptyLabel
	}
	last := fields[len(fields)-1]
	r, size := utf8.DecodeRuneInString(last)
	if r == utf8.RuneError && size <= 1 {
		// Not valid UTF-8; keep the bytes untouched.
		return last, nil
	}
	return string(unicode.ToUpper(r)) + last[size:], nil
}

// HTTPError is returned when a remote classifier answers with a non-200 status.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("classify: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsServerError returns true for 5xx responses.
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
