// File: codec/synchronized.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import "sync"

// SynchronizedCodec serializes every call to the wrapped codec under one lock.
type SynchronizedCodec struct {
	mu    sync.Locker
	inner StatefulStreamCodec
}

var _ StatefulStreamCodec = (*SynchronizedCodec)(nil)

// Synchronized wraps c. A nil mu gets a private mutex; pass a shared lock to
// order codec calls with other work, such as a cipher swap.
func Synchronized(c StatefulStreamCodec, mu sync.Locker) *SynchronizedCodec {
	if s, ok := c.(*SynchronizedCodec); ok && (mu == nil || mu == s.mu) {
		return s
	}
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &SynchronizedCodec{mu: mu, inner: c}
}

func (s *SynchronizedCodec) ToDataStatePair(o any) (DataStatePair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ToDataStatePair(o)
}

func (s *SynchronizedCodec) FromDataStatePair(p DataStatePair) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.FromDataStatePair(p)
}

func (s *SynchronizedCodec) ResetState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.ResetState()
}

// Unwrap returns the codec under the lock.
func (s *SynchronizedCodec) Unwrap() StatefulStreamCodec { return s.inner }

// Mutex returns the lock guarding the codec.
func (s *SynchronizedCodec) Mutex() sync.Locker { return s.mu }

// Unwrap strips every synchronization layer from c.
func Unwrap(c StatefulStreamCodec) StatefulStreamCodec {
	for {
		s, ok := c.(*SynchronizedCodec)
		if !ok {
			return c
		}
		c = s.inner
	}
}

// MutexOf returns the outermost lock guarding c, or nil if c is not
// synchronized.
func MutexOf(c StatefulStreamCodec) sync.Locker {
	if s, ok := c.(*SynchronizedCodec); ok {
		return s.mu
	}
	return nil
}

// Find returns the first layer of c, looking through synchronization and
// decorator layers, that has type T.
func Find[T StatefulStreamCodec](c StatefulStreamCodec) (T, bool) {
	for c != nil {
		if t, ok := c.(T); ok {
			return t, true
		}
		u, ok := c.(interface{ Unwrap() StatefulStreamCodec })
		if !ok {
			break
		}
		c = u.Unwrap()
	}
	var zero T
	return zero, false
}
