package timerq

import (
	"container/heap"
	"log/slog"

	"github.com/kode4food/timerq/internal/util"
	"github.com/kode4food/timerq/pkg/clock"
	"github.com/kode4food/timerq/pkg/log"
)

type (
	// alarmClock indexes the pending events of a single clock domain and
	// keeps that domain's one underlying timer armed for the earliest
	// deadline it holds. It is not synchronized; every method runs with
	// the owning TimerQueue's mutex held, and the queue's running state
	// is passed in explicitly rather than shared
	alarmClock struct {
		clk     clock.Clock
		domain  clock.Domain
		handle  clock.Handle
		entries map[EventID]*alarmEntry
		order   deadlineHeap
	}

	// alarmEntry pairs an event with its deadline in this domain. The
	// heap index lets remove run in O(log n) from an id lookup
	alarmEntry struct {
		ev       *event
		deadline int64
		index    int
	}

	deadlineHeap []*alarmEntry
)

func newAlarmClock(clk clock.Clock, domain clock.Domain) *alarmClock {
	handle := clk.CreateTimer(domain)
	if handle == clock.InvalidHandle {
		slog.Error("Failed to create timer", log.Domain(domain))
	}
	return &alarmClock{
		clk:     clk,
		domain:  domain,
		handle:  handle,
		entries: map[EventID]*alarmEntry{},
	}
}

// add indexes ev under deadline, re-arming the timer when the new
// deadline becomes the earliest held
func (a *alarmClock) add(deadline int64, ev *event, running bool) {
	reschedule := len(a.order) == 0 || deadline < a.order[0].deadline

	e := &alarmEntry{ev: ev, deadline: deadline}
	a.entries[ev.id] = e
	heap.Push(&a.order, e)

	if reschedule {
		a.armTimerForNextEvent(running)
	}
}

// remove drops id from both indexes. Removing the head entry re-arms the
// timer to the new head, or disarms it when nothing remains; removing any
// other entry leaves the armed timer untouched
func (a *alarmClock) remove(id EventID, running bool) bool {
	e, ok := a.entries[id]
	if !ok {
		return false
	}
	wasNext := a.order[0] == e

	delete(a.entries, id)
	heap.Remove(&a.order, e.index)

	if wasNext {
		a.armTimerForNextEvent(running)
	}
	return true
}

// collectEvents moves every event due at now into out and re-arms. The
// set is shared across alarm clocks so an event registered in more than
// one domain collapses to a single entry
func (a *alarmClock) collectEvents(
	now int64, out util.Set[*event], running bool,
) {
	for len(a.order) > 0 && a.order[0].deadline <= now {
		e := heap.Pop(&a.order).(*alarmEntry)
		delete(a.entries, e.ev.id)
		out.Add(e.ev)
	}
	a.armTimerForNextEvent(running)
}

// removeEvents erases any registrations this clock still holds for
// already collected events, so a dual-registered event executes once
func (a *alarmClock) removeEvents(events util.Set[*event], running bool) {
	for ev := range events {
		a.remove(ev.id, running)
	}
}

// armTimerForNextEvent re-establishes the arming discipline: during
// shutdown the timer fires immediately to unblock the dispatcher wait;
// otherwise it is armed to the earliest held deadline, or disarmed when
// the index is empty. Arming failures are logged and corrected by the
// next successful arming
func (a *alarmClock) armTimerForNextEvent(running bool) {
	var next int64
	switch {
	case !running:
		next = 1
	case len(a.order) > 0:
		next = a.order[0].deadline
	}
	if err := a.clk.SetTimer(a.handle, next); err != nil {
		slog.Error("Failed to arm timer", log.Domain(a.domain),
			log.Handle(a.handle), log.Deadline(next), log.Error(err))
	}
}

// destroy drops any events still indexed and releases the underlying
// timer handle
func (a *alarmClock) destroy() {
	clear(a.entries)
	a.order = nil
	if a.handle == clock.InvalidHandle {
		return
	}
	if err := a.clk.DestroyTimer(a.handle); err != nil {
		slog.Error("Failed to destroy timer", log.Domain(a.domain),
			log.Handle(a.handle), log.Error(err))
	}
	a.handle = clock.InvalidHandle
}

// Len returns the number of entries ordered by deadline
func (h deadlineHeap) Len() int {
	return len(h)
}

// Less orders entries by deadline, ties broken by event id
func (h deadlineHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].ev.id < h[j].ev.id
}

// Swap exchanges the entries at the provided indexes
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push adds an entry to the underlying heap implementation
func (h *deadlineHeap) Push(x any) {
	e := x.(*alarmEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

// Pop removes an entry from the underlying heap implementation
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	e.index = -1
	return e
}
