// File: rpc/delegating.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"sync"

	"go.uber.org/zap"
)

// result completes one pending call.
type result struct {
	rr  *RR
	err error
}

// DelegatingClient is the calling side of a connection. It assigns method
// ids, sends requests and correlates responses to pending futures by id.
type DelegatingClient struct {
	client     *Client
	log        *zap.Logger
	serializer MethodSerializer

	mu           sync.Mutex
	nextMethodID int32
	methodIDs    map[string]int32
	futures      map[int32]chan result
}

func newDelegatingClient(name string, o *Options) *DelegatingClient {
	d := &DelegatingClient{
		log:        o.Logger,
		serializer: o.Serializer,
		methodIDs:  make(map[string]int32),
		futures:    make(map[int32]chan result),
	}
	// completing a future never blocks, so responses skip the executor
	d.client = newClient(name, o, nil)
	d.client.onDecoded = d.onMessage
	d.client.onSendError = d.onSendError
	d.client.onReset = d.onReset
	return d
}

// Client returns the underlying endpoint.
func (d *DelegatingClient) Client() *Client { return d.client }

// send registers a future for id and queues the request. The method id is
// resolved on the loop goroutine, ordered with resets, so the first use of a
// method on each connection carries its descriptor.
func (d *DelegatingClient) send(id int32, identifier any, m Method, args, deleted []any) (<-chan result, error) {
	fut := make(chan result, 1)
	d.mu.Lock()
	d.futures[id] = fut
	d.mu.Unlock()

	req := &RPC{ID: id, Identifier: identifier, Args: args, DeletedIdentifiers: deleted}
	err := d.client.Execute(func() {
		if d.client.state.Load() == stateIdle {
			d.log.Debug("dropping call on idle connection", zap.Stringer("client", d.client), zap.Int32("id", id))
			return
		}
		d.client.enqueue(d.stamp(req, m))
	})
	if err != nil {
		d.forget(id)
		return nil, err
	}
	return fut, nil
}

// stamp sets req's method id, wrapping req with the descriptor when the id
// is new. Runs on the loop goroutine.
func (d *DelegatingClient) stamp(req *RPC, m Method) any {
	key := m.Key()
	d.mu.Lock()
	mid, known := d.methodIDs[key]
	if !known {
		d.nextMethodID++
		mid = d.nextMethodID
		d.methodIDs[key] = mid
	}
	d.mu.Unlock()

	req.MethodID = mid
	if known {
		return req
	}
	return &ExtendedRPC{RPC: *req, SerializedMethod: d.serializer.ToSerializable(m)}
}

// forget drops the future for id; a late response is then ignored.
func (d *DelegatingClient) forget(id int32) {
	d.mu.Lock()
	delete(d.futures, id)
	d.mu.Unlock()
}

func (d *DelegatingClient) forgetMethod(key string, mid int32) {
	d.mu.Lock()
	if d.methodIDs[key] == mid {
		delete(d.methodIDs, key)
	}
	d.mu.Unlock()
}

func (d *DelegatingClient) complete(id int32, r result) bool {
	d.mu.Lock()
	fut, ok := d.futures[id]
	delete(d.futures, id)
	d.mu.Unlock()
	if ok {
		fut <- r
	}
	return ok
}

func (d *DelegatingClient) onMessage(msg any) {
	rr, ok := msg.(*RR)
	if !ok {
		d.log.Warn("unexpected message", zap.Stringer("client", d.client), zap.Any("msg", msg))
		return
	}
	if !d.complete(rr.ID, result{rr: rr}) {
		d.log.Debug("late response", zap.Stringer("client", d.client), zap.Int32("id", rr.ID))
	}
}

// onSendError fails the call whose request could not be encoded.
func (d *DelegatingClient) onSendError(msg any, err error) {
	var req *RPC
	switch m := msg.(type) {
	case *ExtendedRPC:
		req = &m.RPC
		if mm, serr := d.serializer.FromSerializable(m.SerializedMethod); serr == nil {
			d.forgetMethod(mm.Key(), m.MethodID)
		}
	case *RPC:
		req = m
	default:
		return
	}
	d.complete(req.ID, result{err: err})
}

// onReset forgets method ids; the peer starts a fresh table on the next
// connection. Pending calls keep waiting for their timeout.
func (d *DelegatingClient) onReset(cause error) {
	d.mu.Lock()
	d.methodIDs = make(map[string]int32)
	d.mu.Unlock()
	d.log.Debug("connection reset", zap.Stringer("client", d.client), zap.Error(cause))
}

// failAll completes every pending call with err.
func (d *DelegatingClient) failAll(err error) int {
	d.mu.Lock()
	futures := d.futures
	d.futures = make(map[int32]chan result)
	d.mu.Unlock()
	for _, fut := range futures {
		fut <- result{err: err}
	}
	return len(futures)
}

// Pending returns the number of calls awaiting a response.
func (d *DelegatingClient) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.futures)
}
