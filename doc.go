// Package timerq provides a thread-safe in-process scheduler for running
// callbacks at absolute times
//
// Deadlines are expressed in nanoseconds of the awake-only monotonic
// clock. A queue constructed in alarm mode additionally tracks a
// wake-from-suspend deadline per event, so work still progresses when the
// host sleeps through its soft deadline. Callbacks run one at a time on
// the queue's dispatcher goroutine; a callback that blocks delays the
// events behind it
package timerq
