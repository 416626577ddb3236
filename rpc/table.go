// File: rpc/table.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server-side method registration table.

package rpc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/codec"
)

// Handler invokes a method on target.
type Handler func(target any, args []any) (any, error)

// ContextHandler is a Handler that also receives the call context, for
// methods that need the connection they are served on.
type ContextHandler func(ctx *CallContext, target any, args []any) (any, error)

// CallContext describes the call being served.
type CallContext struct {
	Method Method
	Client *ExecutingClient
	// Value is produced by the executing client's ContextResolver.
	Value any
}

// Codec returns the codec of the connection serving the call.
func (c *CallContext) Codec() codec.StatefulStreamCodec {
	if c.Client == nil {
		return nil
	}
	return c.Client.Client().Codec()
}

type tableEntry struct {
	method  Method
	handler Handler
	withCtx ContextHandler
}

// MethodTable maps method keys to handlers. It is built at startup and
// shared by every connection of a server.
type MethodTable struct {
	mu      sync.RWMutex
	entries map[string]*tableEntry
}

// NewMethodTable returns a table holding the BeanFactory methods.
func NewMethodTable() *MethodTable {
	t := &MethodTable{entries: make(map[string]*tableEntry)}
	registerBeanFactoryMethods(t)
	return t
}

// Register binds h to m.
func (t *MethodTable) Register(m Method, h Handler) error {
	if h == nil {
		return fmt.Errorf("register %s: nil handler: %w", m, api.ErrInvalidArgument)
	}
	return t.add(&tableEntry{method: m, handler: h})
}

// RegisterContext binds a context-aware handler to m.
func (t *MethodTable) RegisterContext(m Method, h ContextHandler) error {
	if h == nil {
		return fmt.Errorf("register %s: nil handler: %w", m, api.ErrInvalidArgument)
	}
	return t.add(&tableEntry{method: m, withCtx: h})
}

// MustRegister is Register that panics on error, for static tables.
func (t *MethodTable) MustRegister(m Method, h Handler) *MethodTable {
	if err := t.Register(m, h); err != nil {
		panic(err)
	}
	return t
}

func (t *MethodTable) add(e *tableEntry) error {
	key := e.method.Key()
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[key]; ok {
		return api.NewError(api.ErrCodeAlreadyExists, "method already registered").WithContext("method", key)
	}
	t.entries[key] = e
	return nil
}

func (t *MethodTable) lookup(m Method) (*tableEntry, error) {
	t.mu.RLock()
	e, ok := t.entries[m.Key()]
	t.mu.RUnlock()
	if !ok {
		return nil, api.NewError(api.ErrCodeNotFound, "no such method").WithContext("method", m.Key())
	}
	return e, nil
}

// Methods lists registered keys in sorted order.
func (t *MethodTable) Methods() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	t.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Arg converts args[i] to A. A nil argument yields the zero value.
func Arg[A any](args []any, i int) (A, error) {
	var zero A
	if i >= len(args) {
		return zero, fmt.Errorf("argument %d of %d: %w", i, len(args), api.ErrInvalidArgument)
	}
	if args[i] == nil {
		return zero, nil
	}
	a, ok := args[i].(A)
	if !ok {
		return zero, fmt.Errorf("argument %d is %T, want %T: %w", i, args[i], zero, api.ErrInvalidArgument)
	}
	return a, nil
}

func targetAs[T any](target any) (T, error) {
	t, ok := target.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("target is %T, want %T: %w", target, zero, api.ErrInvalidArgument)
	}
	return t, nil
}

// Bind0 adapts a zero-argument method.
func Bind0[T, R any](fn func(T) (R, error)) Handler {
	return func(target any, _ []any) (any, error) {
		t, err := targetAs[T](target)
		if err != nil {
			return nil, err
		}
		return fn(t)
	}
}

// Bind1 adapts a one-argument method.
func Bind1[T, A, R any](fn func(T, A) (R, error)) Handler {
	return func(target any, args []any) (any, error) {
		t, err := targetAs[T](target)
		if err != nil {
			return nil, err
		}
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(t, a)
	}
}

// Bind2 adapts a two-argument method.
func Bind2[T, A, B, R any](fn func(T, A, B) (R, error)) Handler {
	return func(target any, args []any) (any, error) {
		t, err := targetAs[T](target)
		if err != nil {
			return nil, err
		}
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		return fn(t, a, b)
	}
}

// BindContext1 adapts a one-argument method that takes the call context.
func BindContext1[T, A, R any](fn func(*CallContext, T, A) (R, error)) ContextHandler {
	return func(ctx *CallContext, target any, args []any) (any, error) {
		t, err := targetAs[T](target)
		if err != nil {
			return nil, err
		}
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(ctx, t, a)
	}
}
