package frame

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/teslashibe/go-inspect/internal/httpc"
)

// maxSnapshotSize bounds the body read from a snapshot endpoint.
const maxSnapshotSize = 16 << 20

// HTTPSource fetches JPEG snapshots from a URL, e.g. an IP camera's
// /snapshot.jpg or a robot's camera API.
type HTTPSource struct {
	url    string
	client *http.Client

	mu   sync.Mutex
	open bool
}

// NewHTTPSource creates a snapshot source. A nil client uses httpc.Client.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = httpc.Client
	}
	return &HTTPSource{url: url, client: client}
}

// Open verifies the endpoint answers with an image.
func (s *HTTPSource) Open(ctx context.Context) error {
	if _, err := s.fetch(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	return nil
}

// Capture fetches a fresh snapshot.
func (s *HTTPSource) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		return nil, ErrClosed
	}

	data, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return NewFrame(data, time.Now())
}

// Close marks the source closed and drops idle connections.
func (s *HTTPSource) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("frame: build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("frame: snapshot request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("frame: snapshot status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("frame: read snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return data, nil
}

// Verify HTTPSource implements Source at compile time.
var _ Source = (*HTTPSource)(nil)
