package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// viewerBuffer is the per-viewer send queue. A viewer that falls this far
// behind is disconnected.
const viewerBuffer = 64

// Hub publishes one feed to all connected viewers. Unless created with
// WithoutReplay, the last published message is replayed to each viewer on
// connect, so a new viewer sees the current status or frame at once.
type Hub struct {
	name   string
	logger *slog.Logger
	replay bool

	viewers    map[*viewer]struct{}
	publish    chan Message
	register   chan *viewer
	unregister chan *viewer
	done       chan struct{}

	// mu guards count and last for readers outside the run loop. Only the
	// run loop writes them.
	mu    sync.RWMutex
	count int
	last  *Message
}

// Option configures a Hub.
type Option func(*Hub)

// WithoutReplay makes the hub deliver only messages published after a
// viewer connected.
func WithoutReplay() Option {
	return func(h *Hub) { h.replay = false }
}

// New creates a hub. A nil logger uses slog.Default.
func New(name string, logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "feed", name),
		replay:     true,
		viewers:    make(map[*viewer]struct{}),
		publish:    make(chan Message, 256),
		register:   make(chan *viewer),
		unregister: make(chan *viewer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the viewer set until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for v := range h.viewers {
				h.remove(v)
			}
			h.logger.Debug("feed stopped")
			return

		case v := <-h.register:
			h.viewers[v] = struct{}{}
			if h.last != nil {
				v.queue <- *h.last
			}
			h.setCount()
			h.logger.Info("viewer connected", "viewers", len(h.viewers))

		case v := <-h.unregister:
			if _, ok := h.viewers[v]; ok {
				h.remove(v)
				h.logger.Info("viewer disconnected", "viewers", len(h.viewers))
			}

		case msg := <-h.publish:
			if h.replay {
				h.mu.Lock()
				h.last = &msg
				h.mu.Unlock()
			}
			for v := range h.viewers {
				select {
				case v.queue <- msg:
				default:
					h.remove(v)
					h.logger.Warn("disconnected slow viewer", "viewers", len(h.viewers))
				}
			}
		}
	}
}

// remove forgets v and closes its queue. Only the run loop calls it.
func (h *Hub) remove(v *viewer) {
	delete(h.viewers, v)
	close(v.queue)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.viewers)
	h.mu.Unlock()
}

// Publish queues msg for every viewer. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Publish(msg Message) {
	select {
	case h.publish <- msg:
	default:
		h.logger.Warn("publish queue full, dropping message")
	}
}

// PublishJSON encodes v and publishes it as text.
func (h *Hub) PublishJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Publish(Text(data))
	return nil
}

// PublishFrame publishes a JPEG image.
func (h *Hub) PublishFrame(jpeg []byte) {
	h.Publish(Frame(jpeg))
}

// ViewerCount returns the number of connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Last returns the message a new viewer would be replayed.
func (h *Hub) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return Message{}, false
	}
	return *h.last, true
}
