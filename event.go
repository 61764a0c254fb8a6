package timerq

// EventID is the opaque handle for a pending event, returned by Add and
// AddWindow and accepted by Remove
type EventID int64

// InvalidEventID is returned when an event cannot be scheduled
const InvalidEventID EventID = -1

// event is a scheduled unit of work. It is shared by every alarmClock
// that still indexes it plus the in-flight set built during a dispatch
// pass; the last index to drop it releases it
type event struct {
	id EventID
	fn func()

	// priorityTime breaks ties between events collected in the same
	// dispatch pass; lower values run first
	priorityTime int64
}
