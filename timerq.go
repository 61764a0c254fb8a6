package timerq

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/kode4food/timerq/internal/util"
	"github.com/kode4food/timerq/pkg/clock"
	"github.com/kode4food/timerq/pkg/log"
)

// TimerQueue schedules callbacks to run at absolute times expressed in
// nanoseconds of the awake-only monotonic clock. All methods are safe for
// concurrent use; callbacks execute one at a time on a dedicated
// dispatcher goroutine
type TimerQueue struct {
	clk         clock.Clock
	alarm       bool
	mu          sync.Mutex
	running     bool
	nextEventID EventID
	alarmClocks []*alarmClock
	done        chan struct{}
	closeOnce   sync.Once
}

// Alarm-clock slots are fixed: the monotonic domain always occupies slot
// 0 and the wake-from-suspend domain, present only in alarm mode, slot 1
const (
	monotonicSlot = iota
	alarmSlot
)

// New creates a queue backed by the platform clock. With alarm true the
// queue also tracks wake-from-suspend deadlines, letting hard deadlines
// fire while the host sleeps
func New(alarm bool) *TimerQueue {
	return NewWithClock(clock.System(), alarm)
}

// NewWithClock creates a queue on the provided clock
func NewWithClock(clk clock.Clock, alarm bool) *TimerQueue {
	q := &TimerQueue{
		clk:         clk,
		alarm:       alarm,
		nextEventID: 1,
		done:        make(chan struct{}),
	}
	q.alarmClocks = append(q.alarmClocks,
		newAlarmClock(clk, clock.DomainMonotonic))
	if alarm {
		q.alarmClocks = append(q.alarmClocks,
			newAlarmClock(clk, clock.DomainAlarm))
	}
	q.running = true
	go q.dispatch()
	return q
}

// Add schedules fn to run at executionTime. In alarm mode the deadline is
// honored even across suspend. It returns InvalidEventID when fn is nil,
// the clock is not ready, or the queue has been closed
func (q *TimerQueue) Add(fn func(), executionTime int64) EventID {
	if fn == nil || !q.clk.Ready() {
		return InvalidEventID
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return InvalidEventID
	}

	ev := &event{
		id:           q.nextEventIDLocked(),
		fn:           fn,
		priorityTime: executionTime,
	}
	if q.alarm {
		q.alarmClocks[alarmSlot].add(executionTime, ev, q.running)
	} else {
		q.alarmClocks[monotonicSlot].add(executionTime, ev, q.running)
	}
	return ev.id
}

// AddWindow schedules fn to run between softDeadline and hardDeadline.
// The soft deadline does not trigger while the host is suspended; the
// hard deadline does, provided the queue was constructed in alarm mode
// (otherwise only the soft deadline is used). An event registered against
// both deadlines runs at most once, whichever fires first. priorityTime
// orders events collected in the same dispatch pass; a negative value
// defaults it to hardDeadline
func (q *TimerQueue) AddWindow(
	fn func(), softDeadline, hardDeadline, priorityTime int64,
) EventID {
	if fn == nil || !q.clk.Ready() {
		return InvalidEventID
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return InvalidEventID
	}

	if priorityTime < 0 {
		priorityTime = hardDeadline
	}
	ev := &event{
		id:           q.nextEventIDLocked(),
		fn:           fn,
		priorityTime: priorityTime,
	}
	q.alarmClocks[monotonicSlot].add(softDeadline, ev, q.running)
	if q.alarm {
		q.alarmClocks[alarmSlot].add(hardDeadline, ev, q.running)
	}
	return ev.id
}

// Remove cancels a pending event. An id may be registered in more than
// one alarm clock, so every clock is checked. It returns true if the
// event was removed before execution; an event that has already begun
// executing is no longer indexed and reports false
func (q *TimerQueue) Remove(id EventID) bool {
	if !q.clk.Ready() || id == InvalidEventID {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	found := false
	for _, ac := range q.alarmClocks {
		if ac.remove(id, q.running) {
			found = true
		}
	}
	return found
}

// Ready returns true if the underlying clock initialized successfully
func (q *TimerQueue) Ready() bool {
	return q.clk.Ready()
}

// Alarm returns true if the queue can wake the host from suspend
func (q *TimerQueue) Alarm() bool {
	return q.alarm
}

// Now returns the current reading of the queue's monotonic clock, the
// timebase for all submitted deadlines
func (q *TimerQueue) Now() int64 {
	return q.clk.Now()
}

// Close shuts the queue down. Pending events are dropped without
// invocation, the dispatcher goroutine is joined, and the underlying
// timers are released; no callback runs after Close returns. Close is
// idempotent
func (q *TimerQueue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.running = false
		if q.clk.Ready() {
			for _, ac := range q.alarmClocks {
				ac.armTimerForNextEvent(false)
			}
		}
		q.mu.Unlock()

		<-q.done
		q.mu.Lock()
		for _, ac := range q.alarmClocks {
			ac.destroy()
		}
		q.mu.Unlock()
		_ = q.clk.Close()
	})
	return nil
}

func (q *TimerQueue) nextEventIDLocked() EventID {
	id := q.nextEventID
	if id == math.MaxInt64 {
		q.nextEventID = 1
	} else {
		q.nextEventID++
	}
	return id
}

// dispatch is the queue's dedicated goroutine: wait for the earliest
// armed timer, collect everything due across both domains, then run the
// callbacks outside the lock
func (q *TimerQueue) dispatch() {
	defer close(q.done)
	for {
		handle := q.clk.Wait(-1)
		slog.Debug("Clock wait returned", log.Handle(handle))

		if handle == clock.InvalidHandle {
			return
		}
		if handle == clock.PendingHandle ||
			handle == clock.InterruptedHandle {
			continue
		}

		q.mu.Lock()
		if !q.running {
			q.mu.Unlock()
			return
		}
		now := q.clk.Now()

		collected := util.Set[*event]{}
		for _, ac := range q.alarmClocks {
			ac.collectEvents(now, collected, q.running)
		}
		// erase remaining sibling registrations so a dual-registered
		// event cannot execute twice
		for _, ac := range q.alarmClocks {
			ac.removeEvents(collected, q.running)
		}
		q.mu.Unlock()

		due := collected.Items()
		sort.Slice(due, func(i, j int) bool {
			if due[i].priorityTime != due[j].priorityTime {
				return due[i].priorityTime < due[j].priorityTime
			}
			return due[i].id < due[j].id
		})
		for _, ev := range due {
			ev.fn()
		}
	}
}
