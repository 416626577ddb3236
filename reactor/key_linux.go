//go:build linux
// +build linux

// File: reactor/key_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Selection key: the registration of one socket with one event loop.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-rpc/api"
)

// Key is the reactor's api.SelectionKey. Its mutable state is owned by the
// loop goroutine.
type Key struct {
	*socket
	loop       *EventLoop
	interest   api.Op
	armed      bool
	valid      bool
	attachment api.Listener
	// owner is the listener the key was registered for, before any
	// reactor wrapper was attached.
	owner api.Listener
}

var _ api.SelectionKey = (*Key)(nil)

func newKey(loop *EventLoop, s *socket) *Key {
	return &Key{socket: s, loop: loop}
}

// Interest returns the current interest set.
func (k *Key) Interest() api.Op { return k.interest }

// SetInterest changes the interest set. Off the loop goroutine the change is
// submitted as a task.
func (k *Key) SetInterest(ops api.Op) error {
	if !k.loop.InLoop() {
		return k.loop.Submit(func() {
			if err := k.setInterest(ops); err != nil && k.attachment != nil {
				k.attachment.HandleException(err, k.loop)
			}
		})
	}
	return k.setInterest(ops)
}

// setInterest keeps the descriptor out of epoll while the interest set is
// empty, since epoll reports errors and hang-ups regardless of the mask.
func (k *Key) setInterest(ops api.Op) error {
	if !k.valid {
		return fmt.Errorf("set interest %v on cancelled key: %w", ops, api.ErrInvalidArgument)
	}
	var err error
	switch {
	case ops == 0 && k.armed:
		err = k.loop.poller.remove(k.fd)
		k.armed = false
	case ops != 0 && !k.armed:
		err = k.loop.poller.add(k.fd, ops)
		k.armed = err == nil
	case ops != 0 && ops != k.interest:
		err = k.loop.poller.modify(k.fd, ops)
	}
	if err != nil {
		return err
	}
	k.interest = ops
	return nil
}

// Attach replaces the listener.
func (k *Key) Attach(l api.Listener) { k.attachment = l }

// Attachment returns the current listener.
func (k *Key) Attachment() api.Listener { return k.attachment }

// Valid reports whether the key is still registered.
func (k *Key) Valid() bool { return k.valid }

// EventLoop returns the owning loop.
func (k *Key) EventLoop() api.EventLoop { return k.loop }

// cancel removes the key from epoll and from the loop's table.
func (k *Key) cancel() error {
	var err error
	if k.armed {
		err = k.loop.poller.remove(k.fd)
		k.armed = false
	}
	if k.valid {
		k.valid = false
		k.loop.forget(k)
	}
	k.interest = 0
	return err
}

func (k *Key) String() string {
	return fmt.Sprintf("key{fd=%d, interest=%v, local=%v, remote=%v}", k.fd, k.interest, k.local, k.remote)
}
