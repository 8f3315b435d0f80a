package frame

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// DirSource replays the JPEG files of a directory in name order, wrapping
// around at the end. Useful for demos and for exercising the scanner
// without a camera.
type DirSource struct {
	fs  afero.Fs
	dir string

	mu    sync.Mutex
	files []string
	next  int
	open  bool
}

// NewDirSource creates a replay source over dir on fs. A nil fs uses the
// OS filesystem.
func NewDirSource(fs afero.Fs, dir string) *DirSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DirSource{fs: fs, dir: dir}
}

// Open lists the directory.
func (s *DirSource) Open(ctx context.Context) error {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("frame: read dir %s: %w", s.dir, err)
	}

	var files []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(info.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(s.dir, info.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("frame: no jpeg files in %s", s.dir)
	}
	sort.Strings(files)

	s.mu.Lock()
	s.files = files
	s.next = 0
	s.open = true
	s.mu.Unlock()
	return nil
}

// Capture returns the next file as a frame.
func (s *DirSource) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("frame: read %s: %w", path, err)
	}
	return NewFrame(data, time.Now())
}

// Close marks the source closed.
func (s *DirSource) Close() error {
	s.mu.Lock()
	s.open = false
	s.files = nil
	s.mu.Unlock()
	return nil
}

// Verify DirSource implements Source at compile time.
var _ Source = (*DirSource)(nil)
