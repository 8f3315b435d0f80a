package frame

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// CommandSource runs an external capture tool that writes a JPEG to stdout,
// for example:
//
//	libcamera-still -n -t 1 -o -
//	fswebcam --no-banner -
type CommandSource struct {
	name string
	args []string

	mu   sync.Mutex
	open bool
}

// NewCommandSource creates a source running name with args on every capture.
func NewCommandSource(name string, args ...string) *CommandSource {
	return &CommandSource{name: name, args: args}
}

// Open checks the tool is on PATH.
func (s *CommandSource) Open(ctx context.Context) error {
	if _, err := exec.LookPath(s.name); err != nil {
		return fmt.Errorf("frame: capture command: %w", err)
	}
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	return nil
}

// Capture runs the command once and decodes its stdout.
func (s *CommandSource) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		return nil, ErrClosed
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.name, s.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("frame: %s exited %d: %s", s.name, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("frame: run %s: %w", s.name, err)
	}

	return NewFrame(stdout.Bytes(), time.Now())
}

// Close marks the source closed.
func (s *CommandSource) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}

// Verify CommandSource implements Source at compile time.
var _ Source = (*CommandSource)(nil)
