// File: rpc/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DelegationTransport turns stub calls into RPC messages and waits for their
// responses under a TimeoutPolicy.

package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/control"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// maxDeletionSends bounds how often an unacknowledged deletion is resent
// before it is dropped.
const maxDeletionSends = 3

var errAttemptTimedOut = errors.New("attempt timed out")

type pendingDeletion struct {
	id    any
	sends int
}

// DelegationTransport is the client side of a stub connection. It is safe for
// concurrent use; calls are correlated by request id.
type DelegationTransport struct {
	log     *zap.Logger
	metrics *control.Metrics
	clock   clock.Clock
	agent   ConnectionAgent
	policy  TimeoutPolicy
	dc      *DelegatingClient

	nextID atomic.Int32
	closed atomic.Bool

	delMu     sync.Mutex
	deletions []*pendingDeletion
	deleted   map[any]*pendingDeletion
}

// NewDelegationTransport returns a transport that connects through agent on
// first use.
func NewDelegationTransport(agent ConnectionAgent, policy TimeoutPolicy, opts ...Option) *DelegationTransport {
	o := buildOptions("rpc.transport", opts)
	if policy == nil {
		policy = NoTimeoutPolicy{}
	}
	return &DelegationTransport{
		log:     o.Logger,
		metrics: o.Metrics,
		clock:   o.Clock,
		agent:   agent,
		policy:  policy,
		dc:      newDelegatingClient("rpc.transport.conn", o),
		deleted: make(map[any]*pendingDeletion),
	}
}

// Client returns the endpoint the transport sends through.
func (t *DelegationTransport) Client() *Client { return t.dc.client }

// Policy returns the timeout policy.
func (t *DelegationTransport) Policy() TimeoutPolicy { return t.policy }

// Invoke calls m on the remote object identified by identifier, nil meaning
// the peer's bean factory. A *RemoteError is returned for failures raised on
// the peer.
func (t *DelegationTransport) Invoke(ctx context.Context, identifier any, m Method, args ...any) (any, error) {
	start := t.clock.Now()
	for attempt := 1; ; attempt++ {
		if t.closed.Load() {
			return nil, api.ErrTransportClosed
		}
		if err := t.ensureConnected(ctx); err != nil {
			t.metrics.ObserveCall(control.OutcomeTransportError, t.clock.Since(start))
			return nil, err
		}

		id := t.nextID.Add(1)
		deleted := t.takeDeletions()
		fut, err := t.dc.send(id, identifier, m, args, deleted)
		if err != nil {
			t.metrics.ObserveCall(control.OutcomeTransportError, t.clock.Since(start))
			return nil, err
		}

		rr, err := t.await(ctx, id, fut)
		if errors.Is(err, errAttemptTimedOut) {
			terr := &TimeoutError{Method: m, Attempt: attempt, Timeout: t.policy.Timeout()}
			t.log.Debug("call timed out", zap.String("method", m.Key()), zap.Int("attempt", attempt))
			if herr := t.policy.HandleTimeout(t, terr); herr != nil {
				t.metrics.ObserveCall(control.OutcomeTimeout, t.clock.Since(start))
				return nil, herr
			}
			continue
		}
		if err != nil {
			t.metrics.ObserveCall(control.OutcomeTransportError, t.clock.Since(start))
			return nil, err
		}

		t.reconcile(deleted, rr.RemovedIdentifiers)
		if rr.Exception != nil {
			t.metrics.ObserveCall(control.OutcomeRemoteError, t.clock.Since(start))
			return nil, rr.Exception
		}
		t.metrics.ObserveCall(control.OutcomeOK, t.clock.Since(start))
		return rr.Response, nil
	}
}

func (t *DelegationTransport) ensureConnected(ctx context.Context) error {
	c := t.dc.client
	if !c.beginConnect() {
		return nil
	}
	if err := t.agent.Connect(ctx, c); err != nil {
		c.abortConnect()
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// await waits for the response to id for one policy timeout.
func (t *DelegationTransport) await(ctx context.Context, id int32, fut <-chan result) (*RR, error) {
	var expired <-chan time.Time
	if d := t.policy.Timeout(); d > 0 {
		timer := t.clock.Timer(d)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case r := <-fut:
		return r.rr, r.err
	case <-expired:
		t.dc.forget(id)
		return nil, errAttemptTimedOut
	case <-ctx.Done():
		t.dc.forget(id)
		return nil, ctx.Err()
	}
}

// Release queues identifier for deletion on the peer. The id travels with
// the next call.
func (t *DelegationTransport) Release(identifier any) {
	if identifier == nil {
		return
	}
	t.delMu.Lock()
	defer t.delMu.Unlock()
	if _, ok := t.deleted[identifier]; ok {
		return
	}
	d := &pendingDeletion{id: identifier}
	t.deleted[identifier] = d
	t.deletions = append(t.deletions, d)
}

// PendingDeletions returns the identifiers not yet acknowledged by the peer.
func (t *DelegationTransport) PendingDeletions() []any {
	t.delMu.Lock()
	defer t.delMu.Unlock()
	ids := make([]any, 0, len(t.deletions))
	for _, d := range t.deletions {
		ids = append(ids, d.id)
	}
	return ids
}

func (t *DelegationTransport) takeDeletions() []any {
	t.delMu.Lock()
	defer t.delMu.Unlock()
	if len(t.deletions) == 0 {
		return nil
	}
	ids := make([]any, 0, len(t.deletions))
	for _, d := range t.deletions {
		ids = append(ids, d.id)
	}
	return ids
}

// reconcile removes acknowledged deletions. Ids sent but not acknowledged
// stay pending until they have been sent maxDeletionSends times.
func (t *DelegationTransport) reconcile(sent, acked []any) {
	if len(sent) == 0 && len(acked) == 0 {
		return
	}
	t.delMu.Lock()
	defer t.delMu.Unlock()
	for _, id := range acked {
		if _, ok := t.deleted[id]; !ok {
			t.log.Warn("deletion acknowledged twice", zap.Any("id", id))
			continue
		}
		delete(t.deleted, id)
	}
	for _, id := range sent {
		if d, ok := t.deleted[id]; ok {
			d.sends++
			if d.sends >= maxDeletionSends {
				t.log.Warn("deletion not acknowledged, dropping", zap.Any("id", id), zap.Int("sends", d.sends))
				delete(t.deleted, id)
			}
		}
	}
	kept := t.deletions[:0]
	for _, d := range t.deletions {
		if t.deleted[d.id] == d {
			kept = append(kept, d)
		}
	}
	for i := len(kept); i < len(t.deletions); i++ {
		t.deletions[i] = nil
	}
	t.deletions = kept
}

// Close fails pending calls and disconnects. It is idempotent.
func (t *DelegationTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if n := t.dc.failAll(api.ErrTransportClosed); n > 0 {
		t.log.Debug("pending calls failed on close", zap.Int("calls", n))
	}
	c := t.dc.client
	if c.state.Load() != stateIdle {
		err = multierr.Append(err, t.agent.Disconnect(c))
	}
	return err
}
