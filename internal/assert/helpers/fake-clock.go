package helpers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kode4food/timerq/pkg/clock"
)

type (
	// FakeClock is a scriptable clock for deterministic scheduling
	// tests. Time only moves when Advance is called; timers armed at or
	// before the resulting reading fire in deadline order
	FakeClock struct {
		mu         sync.Mutex
		now        int64
		nextHandle clock.Handle
		armed      map[clock.Handle]int64
		sets       []SetCall
		fired      chan clock.Handle
		quit       chan struct{}
		quitOnce   sync.Once
		ready      bool
		failAlarm  bool
	}

	// SetCall records one SetTimer invocation for arming assertions
	SetCall struct {
		Handle clock.Handle
		When   int64
	}
)

const fakeClockEpoch = int64(1_000_000_000)

// NewFakeClock creates a ready fake clock
func NewFakeClock() *FakeClock {
	return &FakeClock{
		now:        fakeClockEpoch,
		nextHandle: 100,
		armed:      map[clock.Handle]int64{},
		fired:      make(chan clock.Handle, 256),
		quit:       make(chan struct{}),
		ready:      true,
	}
}

// NewBrokenClock creates a clock that failed to initialize
func NewBrokenClock() *FakeClock {
	c := NewFakeClock()
	c.ready = false
	return c
}

// FailAlarmTimers makes CreateTimer refuse the wake-from-suspend domain,
// the way a platform clock does without alarm permission
func (c *FakeClock) FailAlarmTimers() *FakeClock {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAlarm = true
	return c
}

func (c *FakeClock) CreateTimer(domain clock.Domain) clock.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return clock.InvalidHandle
	}
	if domain != clock.DomainMonotonic && domain != clock.DomainAlarm {
		return clock.InvalidHandle
	}
	if domain == clock.DomainAlarm && c.failAlarm {
		return clock.InvalidHandle
	}
	h := c.nextHandle
	c.nextHandle++
	c.armed[h] = 0
	return h
}

func (c *FakeClock) DestroyTimer(h clock.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.armed[h]; !ok {
		return fmt.Errorf("%w: %d", clock.ErrUnknownHandle, h)
	}
	delete(c.armed, h)
	return nil
}

func (c *FakeClock) SetTimer(h clock.Handle, when int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return clock.ErrNotReady
	}
	if _, ok := c.armed[h]; !ok {
		return fmt.Errorf("%w: %d", clock.ErrUnknownHandle, h)
	}
	c.sets = append(c.sets, SetCall{Handle: h, When: when})
	if when == 1 || (when > 0 && when <= c.now) {
		c.armed[h] = 0
		c.fired <- h
		return nil
	}
	c.armed[h] = when
	return nil
}

func (c *FakeClock) Wait(timeout int64) clock.Handle {
	if !c.Ready() {
		return clock.InvalidHandle
	}
	var expired <-chan time.Time
	if timeout >= 0 {
		expired = time.After(time.Duration(timeout))
	}
	select {
	case h := <-c.fired:
		// a closed clock reports a fatal error even when a firing is
		// also pending
		select {
		case <-c.quit:
			return clock.InvalidHandle
		default:
			return h
		}
	case <-c.quit:
		return clock.InvalidHandle
	case <-expired:
		return clock.PendingHandle
	}
}

func (c *FakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *FakeClock) Close() error {
	c.quitOnce.Do(func() {
		close(c.quit)
	})
	return nil
}

// Advance moves the clock forward and fires every timer armed at or
// before the new reading, earliest deadline first
func (c *FakeClock) Advance(d int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d

	var due []clock.Handle
	for h, when := range c.armed {
		if when > 0 && when <= c.now {
			due = append(due, h)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if c.armed[due[i]] != c.armed[due[j]] {
			return c.armed[due[i]] < c.armed[due[j]]
		}
		return due[i] < due[j]
	})
	for _, h := range due {
		c.armed[h] = 0
		c.fired <- h
	}
}

// Fire delivers a spurious expiration for the given handle
func (c *FakeClock) Fire(h clock.Handle) {
	c.fired <- h
}

// Armed returns the absolute time h is currently armed to, 0 if disarmed
func (c *FakeClock) Armed(h clock.Handle) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed[h]
}

// SetCalls returns a copy of every SetTimer invocation so far
func (c *FakeClock) SetCalls() []SetCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]SetCall, len(c.sets))
	copy(res, c.sets)
	return res
}
