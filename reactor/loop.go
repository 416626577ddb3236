// File: reactor/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "github.com/momentics/hioload-rpc/api"

// Loop is an api.EventLoop with a reference-counted lifecycle.
type Loop interface {
	api.EventLoop

	// Start acquires a reference, launching the loop goroutine on first use.
	Start() error
	// Stop releases a reference. The last release shuts the loop down.
	Stop()
	// Done is closed once the loop goroutine has exited.
	Done() <-chan struct{}
	// Close stops the loop and releases the poller and every socket.
	Close() error
	IsActive() bool
	Pending() int
}
