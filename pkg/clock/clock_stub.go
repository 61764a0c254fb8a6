//go:build !linux

package clock

import "time"

// stubClock stands in on platforms without timerfd support. It never
// becomes ready, so queues constructed on it refuse all submissions
type stubClock struct{}

var processStart = time.Now()

// System returns the platform clock
func System() Clock {
	return &stubClock{}
}

func (*stubClock) CreateTimer(Domain) Handle { return InvalidHandle }

func (*stubClock) DestroyTimer(Handle) error { return ErrNotReady }

func (*stubClock) SetTimer(Handle, int64) error { return ErrNotReady }

func (*stubClock) Wait(int64) Handle { return InvalidHandle }

func (*stubClock) Now() int64 {
	return time.Since(processStart).Nanoseconds()
}

func (*stubClock) Ready() bool { return false }

func (*stubClock) Close() error { return nil }
