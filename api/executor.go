// Package api
// Author: momentics
//
// Executor contract used to move application logic off the reactor goroutine.

package api

// Executor abstracts parallel task execution.
type Executor interface {
	// Submit schedules task for execution.
	Submit(task func()) error
}

// TryExecutor is an Executor that can refuse work instead of waiting for
// room. Reactor-side producers use it so they never block.
type TryExecutor interface {
	Executor
	// TrySubmit schedules task if it can do so without blocking.
	TrySubmit(task func()) bool
}
