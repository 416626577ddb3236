// File: reactor/taskqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded producer/consumer task queue for the event loop.

package reactor

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-rpc/api"
)

// taskQueue is a ring buffer of tasks. External producers block while the
// queue holds capacity entries; the loop itself may always push.
type taskQueue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	ring     *queue.Queue
	capacity int
	closed   bool
}

func newTaskQueue(capacity int) *taskQueue {
	q := &taskQueue{ring: queue.New(), capacity: capacity}
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// push enqueues task. If bounded is set it waits for free capacity.
func (q *taskQueue) push(task func(), bounded bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for bounded && !q.closed && q.ring.Length() >= q.capacity {
		q.notFull.Wait()
	}
	if q.closed {
		return api.ErrLoopClosed
	}
	q.ring.Add(task)
	return nil
}

// pop removes the oldest task, or returns nil when empty.
func (q *taskQueue) pop() func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring.Length() == 0 {
		return nil
	}
	task := q.ring.Remove().(func())
	q.notFull.Signal()
	return task
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length()
}

// close rejects further pushes, releases blocked producers and returns the
// number of tasks dropped.
func (q *taskQueue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	n := q.ring.Length()
	q.ring = queue.New()
	q.notFull.Broadcast()
	return n
}
