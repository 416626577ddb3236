// File: rpc/stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client-side handles for remote objects.

package rpc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-rpc/api"
)

// Stub forwards calls to one remote object. Interface adapters embed or wrap
// a Stub and call Call per method.
type Stub struct {
	t         *DelegationTransport
	id        any
	released  atomic.Bool
	onRelease func()
}

// Call invokes m on the remote object.
func (s *Stub) Call(ctx context.Context, m Method, args ...any) (any, error) {
	if s.released.Load() {
		return nil, fmt.Errorf("call %s on released stub: %w", m.Key(), api.ErrInvalidArgument)
	}
	return s.t.Invoke(ctx, s.id, m, args...)
}

// Identifier returns the remote identifier; nil for the bean factory.
func (s *Stub) Identifier() any { return s.id }

// Transport returns the transport the stub calls through.
func (s *Stub) Transport() *DelegationTransport { return s.t }

// Release tells the peer the object is no longer needed. Later calls fail.
// Releasing twice is a no-op.
func (s *Stub) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	if s.onRelease != nil {
		s.onRelease()
	}
	s.t.Release(s.id)
}

// CallAs invokes m and converts the result to R. A nil result yields the zero
// value.
func CallAs[R any](ctx context.Context, s *Stub, m Method, args ...any) (R, error) {
	var zero R
	v, err := s.Call(ctx, m, args...)
	if err != nil || v == nil {
		return zero, err
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("%s returned %T, want %T: %w", m.Key(), v, zero, api.ErrInvalidArgument)
	}
	return r, nil
}

// ProxyProvider creates remote objects through the peer's bean factory and
// keeps one Stub per remote identity.
type ProxyProvider struct {
	t       *DelegationTransport
	factory *Stub

	mu    sync.Mutex
	stubs map[any]*Stub
}

// NewProxyProvider returns a provider calling through t.
func NewProxyProvider(t *DelegationTransport) *ProxyProvider {
	return &ProxyProvider{
		t:       t,
		factory: &Stub{t: t},
		stubs:   make(map[any]*Stub),
	}
}

// BeanFactory returns the stub of the peer's bean factory.
func (p *ProxyProvider) BeanFactory() *Stub { return p.factory }

// Create builds a remote object implementing interfaces.
func (p *ProxyProvider) Create(ctx context.Context, interfaces []string, args ...any) (*Stub, error) {
	id, err := p.factory.Call(ctx, MethodCreate, interfaces, anySlice(args))
	if err != nil {
		return nil, err
	}
	return p.Attach(id)
}

// CreateConcrete builds a remote object of a named concrete type.
func (p *ProxyProvider) CreateConcrete(ctx context.Context, concrete string, args ...any) (*Stub, error) {
	id, err := p.factory.Call(ctx, MethodCreateConcrete, concrete, anySlice(args))
	if err != nil {
		return nil, err
	}
	return p.Attach(id)
}

// Attach returns the stub for id, creating it on first use.
func (p *ProxyProvider) Attach(id any) (*Stub, error) {
	if id == nil {
		return nil, fmt.Errorf("attach nil identifier: %w", api.ErrInvalidArgument)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.stubs[id]; ok {
		return s, nil
	}
	s := &Stub{t: p.t, id: id}
	s.onRelease = func() {
		p.mu.Lock()
		if p.stubs[id] == s {
			delete(p.stubs, id)
		}
		p.mu.Unlock()
	}
	p.stubs[id] = s
	return s, nil
}

// Len returns the number of live stubs.
func (p *ProxyProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stubs)
}

func anySlice(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}
