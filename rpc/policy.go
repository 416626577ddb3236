// File: rpc/policy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-rpc/api"
)

// TimeoutPolicy bounds calls and decides what happens when one times out.
type TimeoutPolicy interface {
	// Timeout is the per-attempt wait; zero waits indefinitely.
	Timeout() time.Duration
	// HandleTimeout returns nil to retry the call or an error to fail it.
	HandleTimeout(t *DelegationTransport, err error) error
}

// TimeoutError reports one timed out attempt.
type TimeoutError struct {
	Method  Method
	Attempt int
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call %s timed out after %v (attempt %d)", e.Method.Key(), e.Timeout, e.Attempt)
}

func (e *TimeoutError) Unwrap() error { return api.ErrOperationTimeout }

// NoTimeoutPolicy waits forever.
type NoTimeoutPolicy struct{}

func (NoTimeoutPolicy) Timeout() time.Duration { return 0 }

func (NoTimeoutPolicy) HandleTimeout(_ *DelegationTransport, err error) error { return err }

// FailFastPolicy fails a call on its first timeout.
type FailFastPolicy time.Duration

func (p FailFastPolicy) Timeout() time.Duration { return time.Duration(p) }

func (FailFastPolicy) HandleTimeout(_ *DelegationTransport, err error) error { return err }

// RetryPolicy retries a timed out call up to Attempts times in total,
// sleeping Backoff between attempts.
type RetryPolicy struct {
	Wait     time.Duration
	Attempts int
	Backoff  time.Duration
	Clock    clock.Clock
}

// NewRetryPolicy returns a policy with no backoff.
func NewRetryPolicy(wait time.Duration, attempts int) *RetryPolicy {
	return &RetryPolicy{Wait: wait, Attempts: attempts}
}

func (p *RetryPolicy) Timeout() time.Duration { return p.Wait }

func (p *RetryPolicy) HandleTimeout(_ *DelegationTransport, err error) error {
	te, ok := err.(*TimeoutError)
	if !ok || te.Attempt >= p.Attempts {
		return err
	}
	if p.Backoff > 0 {
		c := p.Clock
		if c == nil {
			c = clock.New()
		}
		c.Sleep(p.Backoff)
	}
	return nil
}
