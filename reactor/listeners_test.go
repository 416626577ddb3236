// File: reactor/listeners_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"errors"
	"net"
	"testing"

	"github.com/momentics/hioload-rpc/api"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type fakeKey struct {
	interest   api.Op
	attachment api.Listener
	valid      bool
}

func (k *fakeKey) Fd() int                       { return 3 }
func (k *fakeKey) LocalAddr() net.Addr           { return nil }
func (k *fakeKey) RemoteAddr() net.Addr          { return nil }
func (k *fakeKey) Read([]byte) (int, error)      { return 0, nil }
func (k *fakeKey) Write(p []byte) (int, error)   { return len(p), nil }
func (k *fakeKey) Interest() api.Op              { return k.interest }
func (k *fakeKey) SetInterest(ops api.Op) error  { k.interest = ops; return nil }
func (k *fakeKey) Attach(l api.Listener)         { k.attachment = l }
func (k *fakeKey) Attachment() api.Listener      { return k.attachment }
func (k *fakeKey) Valid() bool                   { return k.valid }
func (k *fakeKey) EventLoop() api.EventLoop      { return nil }

type countingListener struct {
	pending      int
	writes       int
	reads        int
	connected    int
	disconnected int
	exceptions   []error
	key          api.SelectionKey
	writeErr     error
}

func (c *countingListener) Registered(k api.SelectionKey)         { c.key = k }
func (c *countingListener) Unregistered(api.SelectionKey)         {}
func (c *countingListener) HandleException(err error, _ api.EventLoop) { c.exceptions = append(c.exceptions, err) }
func (c *countingListener) Connected()                            { c.connected++ }
func (c *countingListener) Disconnected()                         { c.disconnected++ }
func (c *countingListener) Read() error                           { c.reads++; return nil }

func (c *countingListener) Write() error {
	c.writes++
	if c.writeErr != nil {
		return c.writeErr
	}
	if c.pending > 0 {
		c.pending--
	}
	if c.pending == 0 {
		return c.key.SetInterest(c.key.Interest() &^ api.OpWrite)
	}
	return nil
}

func TestDrainingListener_ClosesAfterFlush(t *testing.T) {
	key := &fakeKey{interest: api.OpWrite, valid: true}
	inner := &countingListener{pending: 2}
	inner.Registered(key)

	closed := 0
	d := &drainingListener{l: inner, key: key, close: func(k api.SelectionKey, l api.ClientListener) {
		closed++
		l.Disconnected()
	}}
	key.Attach(d)

	assert.NoError(t, d.Read())
	assert.Equal(t, 0, inner.reads, "input is dropped while draining")

	assert.NoError(t, d.Write())
	assert.Equal(t, 0, closed)
	assert.NoError(t, d.Write())
	assert.Equal(t, 1, closed)
	assert.Equal(t, 1, inner.disconnected)
	assert.Equal(t, NoopClientListener, key.Attachment())

	// a stale event after close is ignored
	d.finish()
	assert.Equal(t, 1, closed)
}

func TestDrainingListener_WriteErrorCloses(t *testing.T) {
	key := &fakeKey{interest: api.OpWrite, valid: true}
	inner := &countingListener{pending: 5, writeErr: errors.New("broken pipe")}
	inner.Registered(key)
	closed := 0
	d := &drainingListener{l: inner, key: key, close: func(api.SelectionKey, api.ClientListener) { closed++ }}
	key.Attach(d)

	assert.NoError(t, d.Write())
	assert.Equal(t, 1, closed)
}

func TestPreConnectListener_ImplicitCompletion(t *testing.T) {
	key := &fakeKey{interest: api.OpConnect | api.OpRead, valid: true}
	inner := &countingListener{}
	p := &preConnectListener{l: inner, log: zaptest.NewLogger(t)}
	key.Attach(p)
	p.Registered(key)
	assert.Same(t, key, inner.key)

	assert.NoError(t, p.Read())
	assert.Equal(t, 1, inner.connected)
	assert.Equal(t, 1, inner.reads)
	assert.Same(t, inner, key.Attachment())
	assert.Equal(t, api.OpRead|api.OpWrite, key.Interest())
}

func TestPreConnectListener_ExceptionSwapsRealListener(t *testing.T) {
	key := &fakeKey{interest: api.OpConnect, valid: true}
	inner := &countingListener{}
	p := &preConnectListener{l: inner, log: zaptest.NewLogger(t)}
	key.Attach(p)
	p.Registered(key)

	p.HandleException(errors.New("refused"), nil)
	assert.Len(t, inner.exceptions, 1)
	assert.Same(t, inner, key.Attachment())
	assert.Equal(t, 0, inner.connected)
}

func TestUnwrapListener(t *testing.T) {
	inner := &countingListener{}
	assert.Same(t, inner, unwrapListener(&preConnectListener{l: inner}))
	assert.Same(t, inner, unwrapListener(&drainingListener{l: inner}))
	assert.Same(t, inner, unwrapListener(inner))
}
