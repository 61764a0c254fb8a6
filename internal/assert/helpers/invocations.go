package helpers

import (
	"testing"
	"time"
)

// Invocations records callback executions for order and count assertions
type Invocations struct {
	ch chan int
}

// DefaultInvokeTimeout is a conventional timeout for Next and Collect;
// each call blocks for the timeout it is passed
const DefaultInvokeTimeout = time.Second

// NewInvocations creates an empty invocation recorder
func NewInvocations() *Invocations {
	return &Invocations{
		ch: make(chan int, 64),
	}
}

// Record returns a callback that records key when invoked
func (i *Invocations) Record(key int) func() {
	return func() {
		i.ch <- key
	}
}

// Next returns the next recorded key, failing the test after timeout
func (i *Invocations) Next(t *testing.T, timeout time.Duration) int {
	t.Helper()
	select {
	case key := <-i.ch:
		return key
	case <-time.After(timeout):
		t.Fatal("timeout waiting for callback invocation")
		return 0
	}
}

// Collect returns the next count recorded keys in invocation order
func (i *Invocations) Collect(
	t *testing.T, count int, timeout time.Duration,
) []int {
	t.Helper()
	keys := make([]int, 0, count)
	deadline := time.After(timeout)
	for len(keys) < count {
		select {
		case key := <-i.ch:
			keys = append(keys, key)
		case <-deadline:
			t.Fatalf("timeout after %d of %d invocations",
				len(keys), count)
		}
	}
	return keys
}

// None asserts that no callback is invoked during the window
func (i *Invocations) None(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case key := <-i.ch:
		t.Fatalf("unexpected invocation of callback %d", key)
	case <-time.After(window):
	}
}
