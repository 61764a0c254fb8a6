//go:build linux

package clock

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kode4food/timerq/pkg/log"
)

// linuxClock backs each timer with a timerfd and multiplexes readiness
// through a single epoll instance. The alarm domain requires permission to
// program the RTC; CreateTimer reports failure per-timer rather than
// failing the whole clock
type linuxClock struct {
	mu      sync.Mutex
	pollFD  int
	handles map[Handle]struct{}
	closed  bool
}

// System returns the platform clock
func System() Clock {
	pollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		slog.Error("Failed to create poll instance", log.Error(err))
		pollFD = int(InvalidHandle)
	}
	return &linuxClock{
		pollFD:  pollFD,
		handles: map[Handle]struct{}{},
	}
}

func (c *linuxClock) CreateTimer(domain Domain) Handle {
	if !c.Ready() {
		return InvalidHandle
	}
	var clockID int
	switch domain {
	case DomainMonotonic:
		clockID = unix.CLOCK_BOOTTIME
	case DomainAlarm:
		clockID = unix.CLOCK_BOOTTIME_ALARM
	default:
		slog.Error("Invalid clock domain", log.Domain(domain))
		return InvalidHandle
	}
	fd, err := unix.TimerfdCreate(clockID, unix.TFD_CLOEXEC)
	if err != nil {
		// not uncommon without permission for the alarm domain
		slog.Error("Failed to create timer",
			log.Domain(domain), log.Error(err))
		return InvalidHandle
	}
	event := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLWAKEUP,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(
		c.pollFD, unix.EPOLL_CTL_ADD, fd, &event,
	); err != nil {
		slog.Error("Failed to register timer",
			log.Domain(domain), log.Error(err))
		_ = unix.Close(fd)
		return InvalidHandle
	}
	c.mu.Lock()
	c.handles[Handle(fd)] = struct{}{}
	c.mu.Unlock()
	return Handle(fd)
}

func (c *linuxClock) DestroyTimer(h Handle) error {
	c.mu.Lock()
	if _, ok := c.handles[h]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(c.handles, h)
	c.mu.Unlock()
	if err := unix.EpollCtl(
		c.pollFD, unix.EPOLL_CTL_DEL, int(h), nil,
	); err != nil {
		_ = unix.Close(int(h))
		return fmt.Errorf("deregister timer %d: %w", h, err)
	}
	return unix.Close(int(h))
}

func (c *linuxClock) SetTimer(h Handle, when int64) error {
	if !c.Ready() {
		return ErrNotReady
	}
	var spec unix.ItimerSpec
	if when > 0 {
		spec.Value.Sec = when / int64(time.Second)
		spec.Value.Nsec = when % int64(time.Second)
	}
	if err := unix.TimerfdSettime(
		int(h), unix.TFD_TIMER_ABSTIME, &spec, nil,
	); err != nil {
		return fmt.Errorf("arm timer %d: %w", h, err)
	}
	return nil
}

func (c *linuxClock) Wait(timeout int64) Handle {
	if !c.Ready() {
		return InvalidHandle
	}
	var timeoutMs int
	switch {
	case timeout < 0:
		timeoutMs = -1
	case timeout > math.MaxInt32*int64(time.Millisecond):
		timeoutMs = math.MaxInt32
	default:
		timeoutMs = int(timeout / int64(time.Millisecond))
	}
	events := make([]unix.EpollEvent, 1)
	n, err := unix.EpollWait(c.pollFD, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return InterruptedHandle
		}
		slog.Error("Poll wait failed", log.Error(err))
		return InvalidHandle
	}
	if n == 0 {
		return PendingHandle
	}

	// drain the expiration count so the next wait starts clean
	h := Handle(events[0].Fd)
	var expirations [8]byte
	if _, err := unix.Read(int(h), expirations[:]); err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return PendingHandle
		}
		slog.Error("Failed to drain timer", log.Handle(h), log.Error(err))
		return InvalidHandle
	}
	return h
}

func (c *linuxClock) Now() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		slog.Error("Failed to read clock", log.Error(err))
		return 0
	}
	return ts.Nano()
}

func (c *linuxClock) Ready() bool {
	return c.pollFD != int(InvalidHandle)
}

func (c *linuxClock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.pollFD != int(InvalidHandle) {
		_ = unix.Close(c.pollFD)
	}
	for h := range c.handles {
		_ = unix.Close(int(h))
	}
	clear(c.handles)
	return nil
}
