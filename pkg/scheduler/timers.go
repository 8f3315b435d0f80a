package scheduler

import (
	"time"

	"github.com/teslashibe/go-inspect/pkg/clock"
)

type timerKind int

const (
	captureTimer timerKind = iota
	tickTimer
	numTimerKinds
)

func (k timerKind) String() string {
	switch k {
	case captureTimer:
		return "capture"
	case tickTimer:
		return "tick"
	default:
		return "unknown"
	}
}

type timerSlot struct {
	id    uint64
	timer clock.Timer
}

// timers owns the scheduler's one-shot timers, at most one per kind. All
// methods are called with the scheduler mutex held.
type timers struct {
	clock  clock.Clock
	slots  [numTimerKinds]*timerSlot
	lastID uint64
}

// arm schedules fire(id) after d. Arming a kind that is already live
// panics with *TimerConsistencyError.
func (t *timers) arm(kind timerKind, d time.Duration, fire func(id uint64)) uint64 {
	if live := t.slots[kind]; live != nil {
		panic(&TimerConsistencyError{Kind: kind.String(), LiveID: live.id})
	}
	t.lastID++
	id := t.lastID
	t.slots[kind] = &timerSlot{
		id:    id,
		timer: t.clock.AfterFunc(d, func() { fire(id) }),
	}
	return id
}

// cancel stops the timer of kind, if any.
func (t *timers) cancel(kind timerKind) {
	if slot := t.slots[kind]; slot != nil {
		slot.timer.Stop()
		t.slots[kind] = nil
	}
}

// cancelAll stops every live timer.
func (t *timers) cancelAll() {
	for k := timerKind(0); k < numTimerKinds; k++ {
		t.cancel(k)
	}
}

// fired consumes the slot when id is the live timer of kind. It returns
// false for callbacks of timers that were cancelled or replaced.
func (t *timers) fired(kind timerKind, id uint64) bool {
	slot := t.slots[kind]
	if slot == nil || slot.id != id {
		return false
	}
	t.slots[kind] = nil
	return true
}

func (t *timers) live(kind timerKind) bool {
	return t.slots[kind] != nil
}

// count returns the number of live timers.
func (t *timers) count() int {
	n := 0
	for _, slot := range t.slots {
		if slot != nil {
			n++
		}
	}
	return n
}
