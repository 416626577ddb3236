// File: reactor/listeners.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Internal listeners the reactor swaps onto keys: no-op sentinels, the
// pre-connect wrapper and the draining listener used by Disconnect.

package reactor

import (
	"github.com/momentics/hioload-rpc/api"
	"go.uber.org/zap"
)

type noopListener struct{}

func (noopListener) Registered(api.SelectionKey)          {}
func (noopListener) Unregistered(api.SelectionKey)        {}
func (noopListener) HandleException(error, api.EventLoop) {}

type noopClientListener struct{ noopListener }

func (noopClientListener) Connected()    {}
func (noopClientListener) Read() error   { return nil }
func (noopClientListener) Write() error  { return nil }
func (noopClientListener) Disconnected() {}

// NoopListener is attached to unregistered keys so late events are harmless.
var NoopListener api.Listener = noopListener{}

// NoopClientListener is attached to closed stream keys.
var NoopClientListener api.ClientListener = noopClientListener{}

// preConnectListener stands in for l while a non-blocking connect is in
// flight. Some platforms report readability before the connect completion
// bit, so a read or write is treated as an implicit completion.
type preConnectListener struct {
	l   api.ClientListener
	key api.SelectionKey
	log *zap.Logger
}

func (p *preConnectListener) Read() error {
	p.log.Debug("missing connect completion, read fired first")
	p.Connected()
	return p.l.Read()
}

func (p *preConnectListener) Write() error {
	p.log.Debug("missing connect completion, write fired first")
	p.Connected()
	return p.l.Write()
}

func (p *preConnectListener) Connected() {
	p.key.Attach(p.l)
	p.l.Connected()
	if p.key.Valid() {
		if err := p.key.SetInterest(p.key.Interest()&^api.OpConnect | api.OpRead | api.OpWrite); err != nil {
			p.l.HandleException(err, p.key.EventLoop())
		}
	}
}

// Disconnected is never expected: the real listener is attached before a
// disconnect can be initiated.
func (p *preConnectListener) Disconnected() {
	p.log.Debug("disconnected before connect completion")
}

func (p *preConnectListener) HandleException(err error, loop api.EventLoop) {
	p.key.Attach(p.l)
	p.l.HandleException(err, loop)
}

func (p *preConnectListener) Registered(key api.SelectionKey) {
	p.key = key
	p.l.Registered(key)
}

func (p *preConnectListener) Unregistered(key api.SelectionKey) {
	p.l.Unregistered(key)
}

// drainingListener defers closing a key until the listener it replaced has
// flushed its pending output, then closes and reports Disconnected.
type drainingListener struct {
	l     api.ClientListener
	key   api.SelectionKey
	close func(key api.SelectionKey, l api.ClientListener)
}

func (d *drainingListener) Write() error {
	if err := d.l.Write(); err != nil {
		d.finish()
		return nil
	}
	if d.key.Interest()&api.OpWrite == 0 {
		d.finish()
	}
	return nil
}

// Read drops input; the connection is going away.
func (d *drainingListener) Read() error { return nil }

func (d *drainingListener) Connected()                      {}
func (d *drainingListener) Disconnected()                   {}
func (d *drainingListener) Registered(api.SelectionKey)     {}
func (d *drainingListener) Unregistered(api.SelectionKey)   {}
func (d *drainingListener) HandleException(error, api.EventLoop) { d.finish() }

func (d *drainingListener) finish() {
	if d.key.Attachment() != d {
		return
	}
	d.key.Attach(NoopClientListener)
	d.close(d.key, d.l)
}

// unwrapListener returns the listener a reactor wrapper stands in for.
func unwrapListener(l api.Listener) api.Listener {
	switch w := l.(type) {
	case *preConnectListener:
		return w.l
	case *drainingListener:
		return w.l
	}
	return l
}
