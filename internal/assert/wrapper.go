package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wrapper wraps testify assertions with timer-oriented helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *require.Assertions
}

// DefaultWaitTimeout is a conventional timeout for Signaled and Silent;
// each call blocks for the duration it is passed
const DefaultWaitTimeout = time.Second

// New creates a new test assertion wrapper with both assert and require
// from testify plus queue-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    require.New(t),
	}
}

// Signaled asserts that ch delivers within timeout
func (w *Wrapper) Signaled(ch <-chan struct{}, timeout time.Duration) {
	w.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		w.Fatal("expected signal before timeout")
	}
}

// Silent asserts that ch stays quiet for the full window
func (w *Wrapper) Silent(ch <-chan struct{}, window time.Duration) {
	w.Helper()
	select {
	case <-ch:
		w.Fatal("expected no signal during window")
	case <-time.After(window):
	}
}
