package classify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/afero"
	"github.com/teslashibe/go-inspect/pkg/frame"
)

// CommandClassifier runs an external classifier process per frame, e.g. a
// Python YOLO script:
//
//	python scripts/run_yolo.py <image.jpg>
//
// The frame is written to a temporary JPEG whose path is appended to the
// arguments. The process's stdout is the raw label; a non-zero exit is a
// failure. The temporary file is always removed.
type CommandClassifier struct {
	fs     afero.Fs
	tmpDir string
	name   string
	args   []string
}

// CommandOption configures a CommandClassifier.
type CommandOption func(*CommandClassifier)

// WithFs sets the filesystem used for temporary frames. It must be backed by
// the OS filesystem for the child process to see the file.
func WithFs(fs afero.Fs) CommandOption {
	return func(c *CommandClassifier) { c.fs = fs }
}

// WithTempDir sets the directory for temporary frames.
func WithTempDir(dir string) CommandOption {
	return func(c *CommandClassifier) { c.tmpDir = dir }
}

// NewCommand creates a classifier running name with args.
func NewCommand(name string, args []string, opts ...CommandOption) *CommandClassifier {
	c := &CommandClassifier{
		fs:   afero.NewOsFs(),
		name: name,
		args: args,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify writes f to disk and runs the classifier process on it.
func (c *CommandClassifier) Classify(ctx context.Context, f *frame.Frame) (string, error) {
	if f == nil {
		return "", ErrNoFrame
	}

	tmp, err := afero.TempFile(c.fs, c.tmpDir, "frame_*.jpg")
	if err != nil {
		return "", fmt.Errorf("classify: create temp frame: %w", err)
	}
	path := tmp.Name()
	defer c.fs.Remove(path)

	if _, err := tmp.Write(f.JPEG); err != nil {
		tmp.Close()
		return "", fmt.Errorf("classify: write temp frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("classify: close temp frame: %w", err)
	}

	args := append(append([]string(nil), c.args...), path)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("classify: %s exited %d: %s", c.name, exitErr.ExitCode(), lastLine(stderr.String()))
		}
		return "", fmt.Errorf("classify: run %s: %w", c.name, err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", ErrEmptyLabel
	}
	return out, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

// Verify CommandClassifier implements Classifier at compile time.
var _ Classifier = (*CommandClassifier)(nil)
