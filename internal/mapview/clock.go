package mapview

import (
	"sort"
	"time"
)

// Timer is a cancellable delayed callback
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks. Implementations must run callbacks on
// the same goroutine that drives the map view.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// ManualClock is a Clock driven by Advance, for deterministic tests
type ManualClock struct {
	now     time.Time
	nextSeq int
	timers  []*manualTimer
}

type manualTimer struct {
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewManualClock creates a manual clock starting at the zero time
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// AfterFunc implements Clock
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{at: c.now.Add(d), seq: c.nextSeq, f: f}
	c.nextSeq++
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, firing due timers in order.
func (c *ManualClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		next := c.nextDue(target)
		if next == nil {
			break
		}
		c.now = next.at
		next.fired = true
		next.f()
	}
	c.now = target
	c.compact()
}

// Pending returns the number of scheduled, unfired, unstopped timers.
func (c *ManualClock) Pending() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *ManualClock) nextDue(target time.Time) *manualTimer {
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

func (c *ManualClock) compact() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
}
