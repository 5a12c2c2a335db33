// Package throttle implements the progress gate described in §4.3: it caps
// per-target event emission to a minimum interval while always emitting on
// the terminal advance.
package throttle

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultMinInterval = 100 * time.Millisecond

// Throttle is safe for concurrent use by host-scan's fanned-out workers.
type Throttle struct {
	clock       clockwork.Clock
	minInterval time.Duration
	total       int

	mu       sync.Mutex
	done     int
	lastEmit time.Time
}

// New builds a throttle for total advances. clock may be nil to use a real
// clock; tests inject clockwork.NewFakeClock() for deterministic intervals.
func New(total int, clock clockwork.Clock) *Throttle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{clock: clock, minInterval: defaultMinInterval, total: total}
}

// OnAdvance increments the done counter and reports whether this advance
// should emit: either it is the terminal advance (done == total) or at least
// minInterval has elapsed since the last emission.
func (t *Throttle) OnAdvance() (done int, shouldEmit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done++
	done = t.done

	now := t.clock.Now()
	terminal := done == t.total
	elapsed := t.lastEmit.IsZero() || now.Sub(t.lastEmit) >= t.minInterval

	shouldEmit = terminal || elapsed
	if shouldEmit {
		t.lastEmit = now
	}
	return done, shouldEmit
}
