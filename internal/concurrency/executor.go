// File: internal/concurrency/executor.go
// Package concurrency implements the worker pool that runs message handlers
// off the reactor goroutine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across a fixed set of worker goroutines fed by a
// bounded queue. Submit blocks while the queue is full; TrySubmit refuses
// instead, for callers on the reactor goroutine.

package concurrency

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-rpc/api"
	"go.uber.org/zap"
)

// ErrExecutorClosed is returned by Submit after Close.
var ErrExecutorClosed = errors.New("executor is closed")

var (
	_ api.TryExecutor = (*Executor)(nil)
	_ api.TryExecutor = Inline{}
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	queue   chan TaskFunc
	closeCh chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
	log     *zap.Logger
	workers int

	// statistics
	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	panics         atomic.Int64
}

// NewExecutor starts numWorkers workers with a queue of queueSize tasks.
// Non-positive values default to runtime.NumCPU() and 64 per worker.
func NewExecutor(numWorkers, queueSize int, log *zap.Logger) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = numWorkers * 64
	}
	if log == nil {
		log = zap.L().Named("executor")
	}
	e := &Executor{
		queue:   make(chan TaskFunc, queueSize),
		closeCh: make(chan struct{}),
		log:     log,
		workers: numWorkers,
	}
	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.run(i)
	}
	return e
}

// Submit enqueues a task, blocking while the queue is full.
func (e *Executor) Submit(task func()) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	select {
	case e.queue <- task:
		e.totalTasks.Add(1)
		return nil
	case <-e.closeCh:
		return ErrExecutorClosed
	}
}

// TrySubmit enqueues task only if the queue has room.
func (e *Executor) TrySubmit(task func()) bool {
	if e.closed.Load() {
		return false
	}
	select {
	case e.queue <- task:
		e.totalTasks.Add(1)
		return true
	default:
		return false
	}
}

// NumWorkers returns the number of workers.
func (e *Executor) NumWorkers() int { return e.workers }

// Close stops accepting tasks, lets workers finish what is queued and waits
// for them to exit.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
	}
	e.wg.Wait()
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total, done := e.totalTasks.Load(), e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": done,
		"pending_tasks":   total - done,
		"panics":          e.panics.Load(),
		"num_workers":     int64(e.workers),
	}
}

func (e *Executor) run(id int) {
	defer e.wg.Done()
	for {
		select {
		case task := <-e.queue:
			e.execute(id, task)
		case <-e.closeCh:
			// drain what was accepted before close
			for {
				select {
				case task := <-e.queue:
					e.execute(id, task)
				default:
					return
				}
			}
		}
	}
}

// execute runs the task, recovering from panics to keep the worker alive.
func (e *Executor) execute(id int, task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.log.Error("task panicked", zap.Int("worker", id), zap.Any("panic", r), zap.Stack("stack"))
		}
		e.completedTasks.Add(1)
	}()
	task()
}

// Inline runs tasks on the submitting goroutine.
type Inline struct{}

// Submit runs task immediately.
func (Inline) Submit(task func()) error {
	task()
	return nil
}

// TrySubmit runs task immediately.
func (Inline) TrySubmit(task func()) bool {
	task()
	return true
}
