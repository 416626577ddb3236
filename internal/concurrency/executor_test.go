// File: internal/concurrency/executor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestExecutor_RunsAllTasks(t *testing.T) {
	e := NewExecutor(4, 8, zaptest.NewLogger(t))
	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		require.NoError(t, e.Submit(func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	e.Close()
	assert.EqualValues(t, 200, n.Load())
	stats := e.Stats()
	assert.EqualValues(t, 200, stats["completed_tasks"])
	assert.EqualValues(t, 0, stats["pending_tasks"])
	assert.EqualValues(t, 4, stats["num_workers"])
}

func TestExecutor_PanicKeepsWorker(t *testing.T) {
	e := NewExecutor(1, 1, zaptest.NewLogger(t))
	defer e.Close()
	require.NoError(t, e.Submit(func() { panic("boom") }))
	done := make(chan struct{})
	require.NoError(t, e.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker died after panic")
	}
	assert.EqualValues(t, 1, e.Stats()["panics"])
}

func TestExecutor_CloseDrainsAndRejects(t *testing.T) {
	e := NewExecutor(1, 4, zaptest.NewLogger(t))
	release := make(chan struct{})
	var ran atomic.Int64
	require.NoError(t, e.Submit(func() { <-release; ran.Add(1) }))
	require.NoError(t, e.Submit(func() { ran.Add(1) }))

	closed := make(chan struct{})
	go func() { e.Close(); close(closed) }()
	time.Sleep(20 * time.Millisecond)
	assert.ErrorIs(t, e.Submit(func() {}), ErrExecutorClosed)

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close did not return")
	}
	assert.EqualValues(t, 2, ran.Load())
}

func TestExecutor_SubmitBlocksWhenFull(t *testing.T) {
	e := NewExecutor(1, 1, zaptest.NewLogger(t))
	defer e.Close()
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.Submit(func() { close(started); <-release }))
	<-started
	require.NoError(t, e.Submit(func() {}))

	submitted := make(chan error, 1)
	go func() { submitted <- e.Submit(func() {}) }()
	select {
	case <-submitted:
		t.Fatal("submit should block on a full queue")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-submitted)
}

func TestExecutor_TrySubmitRefusesWhenFull(t *testing.T) {
	e := NewExecutor(1, 1, zaptest.NewLogger(t))
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.Submit(func() { close(started); <-release }))
	<-started

	var ran atomic.Int64
	assert.True(t, e.TrySubmit(func() { ran.Add(1) }), "one free slot")
	assert.False(t, e.TrySubmit(func() { ran.Add(1) }), "queue full")

	close(release)
	e.Close()
	assert.EqualValues(t, 1, ran.Load())
	assert.False(t, e.TrySubmit(func() {}), "closed")
}

func TestInline(t *testing.T) {
	ran := 0
	require.NoError(t, Inline{}.Submit(func() { ran++ }))
	assert.True(t, Inline{}.TrySubmit(func() { ran++ }))
	assert.Equal(t, 2, ran)
}
