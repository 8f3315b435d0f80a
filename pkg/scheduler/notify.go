package scheduler

import "sync"

// subscriberBuffer is the channel capacity of a Subscribe channel. A slow
// subscriber loses its oldest queued states, never the newest.
const subscriberBuffer = 16

// notifier delivers published states to observers in publication order
// from one goroutine, so observers may call back into the scheduler.
type notifier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []State
	closed bool
	done   chan struct{}

	// deliverMu serializes delivery with subscriber removal.
	deliverMu sync.Mutex
	observers map[uint64]func(State)
	channels  map[uint64]chan State
	nextID    uint64
}

func newNotifier(observers []func(State)) *notifier {
	n := &notifier{
		done:      make(chan struct{}),
		observers: make(map[uint64]func(State)),
		channels:  make(map[uint64]chan State),
	}
	n.cond = sync.NewCond(&n.mu)
	for _, fn := range observers {
		n.nextID++
		n.observers[n.nextID] = fn
	}
	go n.run()
	return n
}

// publish queues st for delivery. It never blocks.
func (n *notifier) publish(st State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.queue = append(n.queue, st)
	n.cond.Signal()
}

// subscribe returns a channel of states and a cancel function that closes it.
func (n *notifier) subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)

	n.deliverMu.Lock()
	n.nextID++
	id := n.nextID
	select {
	case <-n.done:
		n.deliverMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	n.channels[id] = ch
	n.deliverMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.deliverMu.Lock()
			defer n.deliverMu.Unlock()
			if c, ok := n.channels[id]; ok {
				delete(n.channels, id)
				close(c)
			}
		})
	}
}

func (n *notifier) run() {
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 {
			n.mu.Unlock()
			n.shutdown()
			return
		}
		st := n.queue[0]
		n.queue[0] = State{}
		n.queue = n.queue[1:]
		n.mu.Unlock()

		n.deliver(st)
	}
}

func (n *notifier) deliver(st State) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	for _, fn := range n.observers {
		fn(st)
	}
	for _, ch := range n.channels {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

func (n *notifier) shutdown() {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()
	for id, ch := range n.channels {
		delete(n.channels, id)
		close(ch)
	}
	close(n.done)
}

// close drains the queue and stops the delivery goroutine.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.cond.Signal()
	n.mu.Unlock()
	<-n.done
}
