// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the contracts between the readiness reactor and the listeners
// it dispatches to. All listener callbacks run on the reactor goroutine.

package api

import (
	"net"
	"strings"
)

// Op is a readiness interest bitmask.
type Op uint32

const (
	OpRead Op = 1 << iota
	OpWrite
	OpConnect
	OpAccept
)

func (o Op) String() string {
	if o == 0 {
		return "none"
	}
	var parts []string
	if o&OpRead != 0 {
		parts = append(parts, "read")
	}
	if o&OpWrite != 0 {
		parts = append(parts, "write")
	}
	if o&OpConnect != 0 {
		parts = append(parts, "connect")
	}
	if o&OpAccept != 0 {
		parts = append(parts, "accept")
	}
	return strings.Join(parts, "|")
}

// Channel is the socket view handed to listeners.
type Channel interface {
	// Fd returns the underlying socket descriptor.
	Fd() int
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	// Read performs one non-blocking read. It returns (0, nil) when no data
	// is available and io.EOF when the peer closed the stream.
	Read(p []byte) (int, error)
	// Write performs one non-blocking write and may return a short count.
	Write(p []byte) (int, error)
}

// SelectionKey is the registration of a channel with an event loop.
// Interest and attachment may only be changed on the reactor goroutine.
type SelectionKey interface {
	Channel
	Interest() Op
	SetInterest(ops Op) error
	Attach(l Listener)
	Attachment() Listener
	Valid() bool
	EventLoop() EventLoop
}

// Listener receives lifecycle events for a registered channel.
type Listener interface {
	Registered(key SelectionKey)
	Unregistered(key SelectionKey)
	HandleException(err error, loop EventLoop)
}

// ClientListener receives readiness events for a stream channel.
type ClientListener interface {
	Listener
	Connected()
	Read() error
	Write() error
	Disconnected()
}

// ServerListener accepts stream channels.
type ServerListener interface {
	Listener
	// GetClientConnection returns the listener for a freshly accepted channel.
	GetClientConnection(ch Channel) ClientListener
}

// EventLoop is the single-threaded readiness reactor.
type EventLoop interface {
	// Submit runs task on the reactor goroutine.
	Submit(task func()) error
	Register(ch Channel, ops Op, l Listener) error
	Unregister(ch Channel) error
	Connect(address string, l ClientListener) error
	Disconnect(l ClientListener) error
	StartServer(address string, l ServerListener) error
	StopServer(l ServerListener) error
	// InLoop reports whether the caller runs on the reactor goroutine.
	InLoop() bool
}
