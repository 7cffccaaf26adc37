package clock

import (
	"sync"
	"time"
)

// Manual returns a deterministic Clock for tests. Time stands still
// until Advance is called; tickers and After waiters fire when the
// clock moves past their deadline.
func Manual(initial time.Time) *ManualClock {
	return &ManualClock{current: initial}
}

type ManualClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*waiter
}

type waiter struct {
	deadline time.Time
	interval time.Duration // non-zero for tickers
	ch       chan time.Time
	stopped  bool
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *ManualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.waiters = append(c.waiters, &waiter{deadline: c.current.Add(d), ch: ch})
	return ch
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &waiter{deadline: c.current.Add(d), interval: d, ch: make(chan time.Time, 1)}
	c.waiters = append(c.waiters, w)
	return &manualTicker{clock: c, w: w}
}

// Advance moves the clock forward by d, firing every waiter whose
// deadline falls within the window. Tickers re-arm at their interval
// but deliver at most one tick per Advance call, matching the drop
// behavior of a real time.Ticker with a full channel.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)

	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if w.stopped {
			continue
		}
		if !w.deadline.After(c.current) {
			select {
			case w.ch <- c.current:
			default:
			}
			if w.interval > 0 {
				for !w.deadline.After(c.current) {
					w.deadline = w.deadline.Add(w.interval)
				}
				kept = append(kept, w)
			}
			continue
		}
		kept = append(kept, w)
	}
	c.waiters = kept
}

type manualTicker struct {
	clock *ManualClock
	w     *waiter
}

func (t *manualTicker) Chan() <-chan time.Time { return t.w.ch }

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.w.stopped = true
}
