package scheduler

import (
	"sync"

	"github.com/teslashibe/go-inspect/pkg/frame"
)

// frameFeed hands captured frames to preview subscribers. A subscriber
// holds at most one frame; a newer frame replaces one not yet read.
type frameFeed struct {
	mu     sync.Mutex
	subs   map[chan *frame.Frame]struct{}
	closed bool
}

func (f *frameFeed) subscribe() (<-chan *frame.Frame, func()) {
	ch := make(chan *frame.Frame, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	if f.subs == nil {
		f.subs = make(map[chan *frame.Frame]struct{})
	}
	f.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
		})
	}
}

func (f *frameFeed) publish(fr *frame.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- fr:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- fr:
		default:
		}
	}
}

func (f *frameFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}
