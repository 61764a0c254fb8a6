package timerq_test

import (
	"testing"
	"time"

	"github.com/kode4food/timerq"
	"github.com/kode4food/timerq/internal/assert"
	"github.com/kode4food/timerq/internal/assert/helpers"
)

func TestDualRegistrationFiresOnce(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, true)
	defer func() { _ = tq.Close() }()

	rec := helpers.NewInvocations()
	now := fc.Now()
	id := tq.AddWindow(rec.Record(1), now+10*msec, now+50*msec, -1)
	as.Require.NotEqual(timerq.InvalidEventID, id)

	fc.Advance(10 * msec)
	as.Equal(1, rec.Next(t, time.Second))

	// the sibling registration was erased; the hard deadline passing
	// must not run the callback again
	fc.Advance(60 * msec)
	rec.None(t, 50*time.Millisecond)
	as.False(tq.Remove(id))
}

func TestHardDeadlineFiresFirst(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, true)
	defer func() { _ = tq.Close() }()

	rec := helpers.NewInvocations()
	now := fc.Now()
	tq.AddWindow(rec.Record(1), now+100*msec, now+20*msec, -1)

	fc.Advance(20 * msec)
	as.Equal(1, rec.Next(t, time.Second))

	fc.Advance(200 * msec)
	rec.None(t, 50*time.Millisecond)
}

func TestHardDeadlineIgnoredWithoutAlarm(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, false)
	defer func() { _ = tq.Close() }()

	rec := helpers.NewInvocations()
	now := fc.Now()
	tq.AddWindow(rec.Record(1), now+10*msec, now+5*msec, -1)

	// only the soft deadline is registered
	fc.Advance(5 * msec)
	rec.None(t, 50*time.Millisecond)

	fc.Advance(5 * msec)
	as.Equal(1, rec.Next(t, time.Second))
}

func TestSingleDeadlineUsesAlarmDomain(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, true)
	defer func() { _ = tq.Close() }()

	rec := helpers.NewInvocations()
	tq.Add(rec.Record(1), fc.Now()+30*msec)

	fc.Advance(30 * msec)
	as.Equal(1, rec.Next(t, time.Second))
}

func TestPriorityTieBrokenByID(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, false)
	defer func() { _ = tq.Close() }()

	rec := helpers.NewInvocations()
	deadline := fc.Now() + 40*msec
	tq.AddWindow(rec.Record(1), deadline, deadline, 7)
	tq.AddWindow(rec.Record(2), deadline, deadline, 7)
	tq.AddWindow(rec.Record(3), deadline, deadline, 7)

	fc.Advance(40 * msec)
	as.Equal([]int{1, 2, 3}, rec.Collect(t, 3, time.Second))
}

func TestPriorityOverridesDeadlineOrder(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, false)
	defer func() { _ = tq.Close() }()

	rec := helpers.NewInvocations()
	deadline := fc.Now() + 40*msec
	tq.AddWindow(rec.Record(1), deadline, deadline, 30)
	tq.AddWindow(rec.Record(2), deadline, deadline, 10)
	tq.AddWindow(rec.Record(3), deadline, deadline, 20)

	fc.Advance(40 * msec)
	as.Equal([]int{2, 3, 1}, rec.Collect(t, 3, time.Second))
}

func TestEventIDAssignment(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, false)
	defer func() { _ = tq.Close() }()

	rec := helpers.NewInvocations()
	deadline := fc.Now() + 10*msec
	as.Equal(timerq.EventID(1), tq.Add(rec.Record(1), deadline))
	as.Equal(timerq.EventID(2), tq.Add(rec.Record(2), deadline))
	as.Equal(timerq.EventID(3), tq.Add(rec.Record(3), deadline))
}

func TestRemovedEventNeverRuns(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, true)
	defer func() { _ = tq.Close() }()

	rec := helpers.NewInvocations()
	now := fc.Now()
	id := tq.AddWindow(rec.Record(1), now+10*msec, now+20*msec, -1)

	// removal erases both domain registrations
	as.True(tq.Remove(id))
	as.False(tq.Remove(id))

	fc.Advance(30 * msec)
	rec.None(t, 50*time.Millisecond)
}

func TestCloseDropsPendingEvents(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, false)

	rec := helpers.NewInvocations()
	tq.Add(rec.Record(1), fc.Now()+50*msec)
	as.NoError(tq.Close())

	rec.None(t, 50*time.Millisecond)
}

func TestAddAfterClose(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, false)
	as.NoError(tq.Close())

	as.Equal(timerq.InvalidEventID, tq.Add(func() {}, fc.Now()+msec))
	as.Equal(timerq.InvalidEventID,
		tq.AddWindow(func() {}, fc.Now()+msec, fc.Now()+msec, -1))
	as.False(tq.Remove(1))
}

func TestBrokenClock(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewBrokenClock()
	tq := timerq.NewWithClock(fc, false)
	defer func() { _ = tq.Close() }()

	as.False(tq.Ready())
	as.Equal(timerq.InvalidEventID, tq.Add(func() {}, fc.Now()+msec))
	as.False(tq.Remove(1))
}

func TestArmingDiscipline(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, false)
	defer func() { _ = tq.Close() }()

	rec := helpers.NewInvocations()
	now := fc.Now()
	tq.Add(rec.Record(1), now+50*msec)

	calls := fc.SetCalls()
	as.Require.Len(calls, 1)
	handle := calls[0].Handle
	as.Equal(now+50*msec, calls[0].When)

	// an earlier deadline re-arms to the new head
	idB := tq.Add(rec.Record(2), now+20*msec)
	calls = fc.SetCalls()
	as.Require.Len(calls, 2)
	as.Equal(now+20*msec, calls[1].When)

	// a later deadline leaves the armed timer untouched
	idC := tq.Add(rec.Record(3), now+80*msec)
	as.Len(fc.SetCalls(), 2)

	// removing a non-head entry leaves the armed timer untouched
	as.True(tq.Remove(idC))
	as.Len(fc.SetCalls(), 2)

	// removing the head re-arms to the next deadline
	as.True(tq.Remove(idB))
	calls = fc.SetCalls()
	as.Require.Len(calls, 3)
	as.Equal(now+50*msec, calls[2].When)

	// dispatch collects the remaining event and disarms the empty index
	fc.Advance(50 * msec)
	as.Equal(1, rec.Next(t, time.Second))
	calls = fc.SetCalls()
	as.Require.Len(calls, 4)
	as.Equal(handle, calls[3].Handle)
	as.Equal(int64(0), calls[3].When)
}

func TestDispatcherExitsOnFatalWait(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock()
	tq := timerq.NewWithClock(fc, false)

	rec := helpers.NewInvocations()
	tq.Add(rec.Record(1), fc.Now()+10*msec)

	// a fatal wait error stops dispatch; nothing ever executes
	as.NoError(fc.Close())
	fc.Advance(20 * msec)
	rec.None(t, 50*time.Millisecond)
	as.NoError(tq.Close())
}

func TestAlarmTimerCreationFailure(t *testing.T) {
	as := assert.New(t)
	fc := helpers.NewFakeClock().FailAlarmTimers()
	tq := timerq.NewWithClock(fc, true)
	defer func() { _ = tq.Close() }()

	// the queue stays usable through its awake-only domain
	as.True(tq.Ready())
	as.True(tq.Alarm())

	rec := helpers.NewInvocations()
	now := fc.Now()
	id := tq.AddWindow(rec.Record(1), now+10*msec, now+50*msec, -1)
	as.Require.NotEqual(timerq.InvalidEventID, id)

	fc.Advance(10 * msec)
	as.Equal(1, rec.Next(t, time.Second))
}
