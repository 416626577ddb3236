// File: rpc/executing.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server-side dispatch of RPC messages to beans.

package rpc

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-rpc/api"
	"go.uber.org/zap"
)

// methodSlot is the one-shot publication of a method id.
type methodSlot struct {
	ready     chan struct{}
	published bool
	entry     *tableEntry
	err       error
}

// ExecutingClient serves calls arriving on one accepted connection.
type ExecutingClient struct {
	client     *Client
	log        *zap.Logger
	beans      BeanFactory
	table      *MethodTable
	serializer MethodSerializer
	methodWait time.Duration
	resolver   ContextResolver
	analyzers  []Analyzer
	clock      clock.Clock

	mu      sync.Mutex
	methods map[int32]*methodSlot

	// reply sends a response; replaced in tests.
	reply func(*RR) error
}

// NewExecutingClient returns a serving endpoint backed by beans and table.
func NewExecutingClient(beans BeanFactory, table *MethodTable, opts ...Option) *ExecutingClient {
	return newExecutingClient("rpc.server.conn", beans, table, buildOptions("rpc.server", opts))
}

func newExecutingClient(name string, beans BeanFactory, table *MethodTable, o *Options) *ExecutingClient {
	e := &ExecutingClient{
		log:        o.Logger,
		beans:      beans,
		table:      table,
		serializer: o.Serializer,
		methodWait: o.MethodWait,
		resolver:   o.ContextResolver,
		analyzers:  o.Analyzers,
		clock:      o.Clock,
		methods:    make(map[int32]*methodSlot),
	}
	e.client = newClient(name, o, e.onMessage)
	e.client.onReset = func(error) { e.resetMethods() }
	e.client.onSendError = e.onSendError
	e.client.onDecoded = e.learnMethod
	e.reply = func(rr *RR) error { return e.client.Send(rr) }
	return e
}

// Client returns the underlying endpoint.
func (e *ExecutingClient) Client() *Client { return e.client }

// Beans returns the bean factory serving this connection.
func (e *ExecutingClient) Beans() BeanFactory { return e.beans }

func (e *ExecutingClient) slot(id int32) *methodSlot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.methods[id]
	if !ok {
		s = &methodSlot{ready: make(chan struct{})}
		e.methods[id] = s
	}
	return s
}

// publish records the method for id and wakes its waiters. Only the first
// publication of an id takes effect.
func (e *ExecutingClient) publish(id int32, entry *tableEntry, err error) {
	s := e.slot(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.published {
		return
	}
	s.entry, s.err, s.published = entry, err, true
	close(s.ready)
}

func (e *ExecutingClient) resetMethods() {
	e.mu.Lock()
	e.methods = make(map[int32]*methodSlot)
	e.mu.Unlock()
}

// awaitMethod blocks until id is published or the method wait elapses.
func (e *ExecutingClient) awaitMethod(id int32) (*tableEntry, error) {
	s := e.slot(id)
	select {
	case <-s.ready:
		return s.entry, s.err
	default:
	}
	timer := e.clock.Timer(e.methodWait)
	defer timer.Stop()
	select {
	case <-s.ready:
		return s.entry, s.err
	case <-timer.C:
		return nil, api.NewError(api.ErrCodeNotFound, "unknown method id").
			WithContext("method_id", id).WithContext("waited", e.methodWait.String())
	}
}

// learnMethod publishes the descriptor carried by an ExtendedRPC. It runs on
// the loop goroutine as soon as the message is decoded, so a call blocked on
// the id does not depend on a free executor worker.
func (e *ExecutingClient) learnMethod(msg any) {
	ext, ok := msg.(*ExtendedRPC)
	if !ok {
		return
	}
	m, err := e.serializer.FromSerializable(ext.SerializedMethod)
	if err != nil {
		e.publish(ext.MethodID, nil, err)
		return
	}
	entry, err := e.table.lookup(m)
	e.publish(ext.MethodID, entry, err)
}

// onMessage runs on the executor for every decoded message.
func (e *ExecutingClient) onMessage(msg any) {
	var (
		req *RPC
		ext *ExtendedRPC
	)
	switch m := msg.(type) {
	case *ExtendedRPC:
		req, ext = &m.RPC, m
	case *RPC:
		req = m
	default:
		e.log.Warn("unexpected message", zap.Stringer("client", e.client), zap.String("type", fmt.Sprintf("%T", msg)))
		return
	}

	rr := &RR{ID: req.ID, RemovedIdentifiers: e.destroy(req.DeletedIdentifiers)}
	if ext != nil {
		e.learnMethod(ext)
	}

	inv := e.invoke(req)
	if inv.Err != nil {
		rr.Exception = newRemoteError(inv.Err)
	} else {
		rr.Response = inv.Result
	}
	if err := e.reply(rr); err != nil {
		e.log.Warn("reply dropped", zap.Stringer("client", e.client), zap.Int32("id", req.ID), zap.Error(err))
	}
	for _, a := range e.analyzers {
		a(e, inv)
	}
}

// onSendError turns a response that could not be encoded into an error
// response so the caller is not left waiting.
func (e *ExecutingClient) onSendError(msg any, err error) {
	rr, ok := msg.(*RR)
	if !ok || rr.Response == nil {
		return
	}
	e.client.enqueue(&RR{ID: rr.ID, Exception: newRemoteError(err), RemovedIdentifiers: rr.RemovedIdentifiers})
}

// destroy removes the beans named by a deletion hint and returns the ids that
// were actually destroyed.
func (e *ExecutingClient) destroy(ids []any) []any {
	var removed []any
	for _, id := range ids {
		if !e.beans.Contains(id) {
			continue
		}
		if err := e.beans.Destroy(id); err != nil {
			if e.beans.Contains(id) {
				e.log.Warn("bean destroy failed", zap.Any("id", id), zap.Error(err))
				continue
			}
			// removed but its Close failed; the peer may still drop it
			e.log.Warn("bean close failed", zap.Any("id", id), zap.Error(err))
		}
		removed = append(removed, id)
	}
	return removed
}

func (e *ExecutingClient) invoke(req *RPC) (inv Invocation) {
	inv.Args = req.Args
	target, err := e.beans.Get(req.Identifier)
	if err != nil {
		inv.Err = err
		return inv
	}
	inv.Target = target
	entry, err := e.awaitMethod(req.MethodID)
	if err != nil {
		inv.Err = err
		return inv
	}
	inv.Method = entry.method

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("handler panic", zap.String("method", entry.method.Key()),
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			inv.Err = fmt.Errorf("panic in %s: %v", entry.method.Key(), r)
		}
	}()
	if entry.withCtx != nil {
		ctx := &CallContext{Method: entry.method, Client: e}
		if e.resolver != nil {
			ctx.Value = e.resolver(target, entry.method, e)
		}
		inv.Result, inv.Err = entry.withCtx(ctx, target, req.Args)
	} else {
		inv.Result, inv.Err = entry.handler(target, req.Args)
	}
	if e.log.Core().Enabled(zap.DebugLevel) {
		e.log.Debug("served", zap.Int32("id", req.ID), zap.String("method", entry.method.Key()), zap.Error(inv.Err))
	}
	return inv
}
