// File: server/types.go
// Package server provides the listening half shared by stream servers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/control"
	"go.uber.org/zap"
)

// Config holds server-side configuration parameters.
type Config struct {
	ListenAddr string // TCP bind address, e.g. "127.0.0.1:0"
	Logger     *zap.Logger
	Metrics    *control.Metrics
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{ListenAddr: "127.0.0.1:0"}
}

// AddressFuture completes once the server is registered with its loop, with
// the bound address, or fails with the registration error.
type AddressFuture struct {
	once sync.Once
	done chan struct{}
	addr net.Addr
	err  error
}

func newAddressFuture() *AddressFuture {
	return &AddressFuture{done: make(chan struct{})}
}

func (f *AddressFuture) complete(addr net.Addr, err error) bool {
	completed := false
	f.once.Do(func() {
		f.addr, f.err = addr, err
		close(f.done)
		completed = true
	})
	return completed
}

// Done is closed when the future completes.
func (f *AddressFuture) Done() <-chan struct{} { return f.done }

// Wait blocks until the future completes or ctx ends.
func (f *AddressFuture) Wait(ctx context.Context) (net.Addr, error) {
	select {
	case <-f.done:
		return f.addr, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Base implements the lifecycle half of api.ServerListener. Servers embed it
// and add GetClientConnection.
type Base struct {
	cfg   *Config
	log   *zap.Logger
	bound *AddressFuture

	mu   sync.Mutex
	key  api.SelectionKey
	loop api.EventLoop
}

// NewBase builds a Base from cfg and opts.
func NewBase(cfg *Config, opts ...Option) *Base {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	for _, opt := range opts {
		opt(&c)
	}
	if c.Logger == nil {
		c.Logger = zap.L().Named("server")
	}
	return &Base{cfg: &c, log: c.Logger, bound: newAddressFuture()}
}

// Config returns the effective configuration.
func (b *Base) Config() *Config { return b.cfg }

// BoundAddress returns the bound-address future.
func (b *Base) BoundAddress() *AddressFuture { return b.bound }

// Listen asks loop to start accepting on the configured address with l, the
// embedding server.
func (b *Base) Listen(loop api.EventLoop, l api.ServerListener) (*AddressFuture, error) {
	b.mu.Lock()
	if b.loop != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("server already listening: %w", api.ErrAlreadyExists)
	}
	b.loop = loop
	b.mu.Unlock()
	if err := loop.StartServer(b.cfg.ListenAddr, l); err != nil {
		b.bound.complete(nil, err)
		return b.bound, err
	}
	return b.bound, nil
}

// Shutdown stops accepting. Established connections are unaffected.
func (b *Base) Shutdown(l api.ServerListener) error {
	b.mu.Lock()
	loop := b.loop
	b.mu.Unlock()
	if loop == nil {
		return nil
	}
	return loop.StopServer(l)
}

// Registered completes the bound-address future.
func (b *Base) Registered(key api.SelectionKey) {
	b.mu.Lock()
	b.key = key
	b.mu.Unlock()
	if b.bound.complete(key.LocalAddr(), nil) {
		b.log.Info("server listening", zap.Stringer("addr", key.LocalAddr()))
	}
}

// Unregistered is called once the listening socket is closed.
func (b *Base) Unregistered(api.SelectionKey) {
	b.mu.Lock()
	b.key = nil
	b.mu.Unlock()
	b.log.Info("server stopped")
}

// HandleException fails the bound-address future if still pending, and
// otherwise logs the error.
func (b *Base) HandleException(err error, _ api.EventLoop) {
	b.cfg.Metrics.Exception()
	if b.bound.complete(nil, err) {
		b.log.Error("server registration failed", zap.Error(err))
		return
	}
	b.log.Warn("server error", zap.Error(err))
}
