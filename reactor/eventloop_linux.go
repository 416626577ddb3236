//go:build linux
// +build linux

// File: reactor/eventloop_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-goroutine epoll event loop.

package reactor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/control"
	"github.com/momentics/hioload-rpc/internal/concurrency"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// EventLoop multiplexes socket readiness on one goroutine locked to one OS
// thread. The registration table and every key are owned by that goroutine.
type EventLoop struct {
	cfg     *Config
	log     *zap.Logger
	metrics *control.Metrics
	poller  *poller
	tasks   *taskQueue

	keys      map[int]*Key
	listeners map[api.Listener]*Key
	nkeys     atomic.Int64

	tid   atomic.Int64
	alive atomic.Bool

	mu      sync.Mutex
	refs    int
	running bool
	// stopping is set once the shutdown task has run; the goroutine is
	// committed to exit and a new Start must not reuse it.
	stopping bool
	closed   bool
	done     chan struct{}
}

var _ Loop = (*EventLoop)(nil)

// New creates an event loop. The loop goroutine starts on the first Start.
func New(cfg *Config) (Loop, error) {
	cfg = cfg.normalize()
	p, err := newPoller(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	close(done)
	e := &EventLoop{
		cfg:       cfg,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		poller:    p,
		tasks:     newTaskQueue(cfg.Backlog),
		keys:      make(map[int]*Key),
		listeners: make(map[api.Listener]*Key),
		done:      done,
	}
	if cfg.Probes != nil {
		cfg.Probes.RegisterProbe(cfg.ID+".pending", func() any { return e.Pending() })
		cfg.Probes.RegisterProbe(cfg.ID+".keys", func() any { return e.nkeys.Load() })
		cfg.Probes.RegisterProbe(cfg.ID+".active", func() any { return e.IsActive() })
	}
	return e, nil
}

// Start acquires a reference and launches the loop goroutine if needed. It
// returns once the goroutine has locked its thread. A Start racing a
// shutdown waits for the old goroutine to exit and launches a new one.
func (e *EventLoop) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.running && e.stopping && !e.closed {
		if e.InLoop() {
			// still on the old goroutine: take the shutdown back
			e.stopping = false
			e.alive.Store(true)
			break
		}
		done := e.done
		e.mu.Unlock()
		<-done
		e.mu.Lock()
	}
	if e.closed {
		return api.ErrLoopClosed
	}
	e.refs++
	if e.running {
		return nil
	}
	e.running = true
	e.done = make(chan struct{})
	ready := make(chan struct{})
	go e.run(ready, e.done)
	<-ready
	return nil
}

// Stop releases a reference. At zero a shutdown task is queued; the loop
// exits after processing it unless Start was called again meanwhile.
func (e *EventLoop) Stop() {
	e.mu.Lock()
	if e.refs == 0 {
		e.mu.Unlock()
		return
	}
	e.refs--
	last := e.refs == 0
	e.mu.Unlock()
	if last {
		e.submitShutdown()
	}
}

func (e *EventLoop) submitShutdown() {
	_ = e.tasks.push(func() {
		e.mu.Lock()
		if e.refs == 0 {
			e.stopping = true
			e.alive.Store(false)
		}
		e.mu.Unlock()
	}, false)
	e.wakeup()
}

// Done is closed when the loop goroutine exits.
func (e *EventLoop) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// IsActive reports whether the loop goroutine is processing events.
func (e *EventLoop) IsActive() bool { return e.alive.Load() }

// Pending returns the number of queued tasks.
func (e *EventLoop) Pending() int { return e.tasks.len() }

// ReadBufferSize is the configured read buffer hint for listeners.
func (e *EventLoop) ReadBufferSize() int { return e.cfg.ReadBufferSize }

// Logger returns the loop logger.
func (e *EventLoop) Logger() *zap.Logger { return e.log }

// Close stops the loop regardless of references and releases every socket
// and the poller. Queued tasks are dropped.
func (e *EventLoop) Close() error {
	if e.InLoop() {
		return fmt.Errorf("close from the loop goroutine: %w", api.ErrInvalidArgument)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	running := e.running
	e.refs = 0
	done := e.done
	e.mu.Unlock()

	if running {
		e.submitShutdown()
		<-done
	}
	if n := e.tasks.close(); n > 0 {
		e.log.Debug("dropped queued tasks on close", zap.Int("count", n))
	}
	var err error
	for _, k := range e.keys {
		l := k.attachment
		err = multierr.Append(err, k.cancel())
		err = multierr.Append(err, k.close())
		if cl, ok := unwrapListener(l).(api.ClientListener); ok {
			cl.Disconnected()
		}
	}
	err = multierr.Append(err, e.poller.close())
	if e.cfg.Probes != nil {
		e.cfg.Probes.UnregisterProbe(e.cfg.ID + ".pending")
		e.cfg.Probes.UnregisterProbe(e.cfg.ID + ".keys")
		e.cfg.Probes.UnregisterProbe(e.cfg.ID + ".active")
	}
	return err
}

// InLoop reports whether the caller runs on the loop goroutine.
func (e *EventLoop) InLoop() bool {
	tid := e.tid.Load()
	return tid != 0 && tid == int64(unix.Gettid())
}

// Submit runs task on the loop goroutine. On the loop with nothing queued it
// runs inline; otherwise it is queued in FIFO order. Producers outside the
// loop block while the queue is full.
func (e *EventLoop) Submit(task func()) error {
	if task == nil {
		return fmt.Errorf("nil task: %w", api.ErrInvalidArgument)
	}
	if e.InLoop() {
		if e.tasks.len() == 0 {
			e.runTask(task)
			return nil
		}
		return e.tasks.push(task, false)
	}
	if err := e.tasks.push(task, true); err != nil {
		return err
	}
	e.wakeup()
	return nil
}

func (e *EventLoop) wakeup() {
	if err := e.poller.wakeup(); err != nil {
		e.log.Warn("wakeup failed", zap.Error(err))
	}
}

func (e *EventLoop) run(ready, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if e.cfg.PinCPU {
		if err := concurrency.PinCurrentThread(e.cfg.CPU); err != nil {
			e.log.Warn("thread pinning failed", zap.Error(err))
		}
	}
	e.tid.Store(int64(unix.Gettid()))
	e.alive.Store(true)
	close(ready)
	e.log.Debug("event loop started")

	defer func() {
		if e.alive.Load() {
			e.log.Warn("event loop exited unexpectedly")
			e.alive.Store(false)
		}
		e.tid.Store(0)
		e.mu.Lock()
		e.running = false
		e.stopping = false
		e.mu.Unlock()
		e.log.Debug("event loop stopped")
		close(done)
	}()

	for e.alive.Load() {
		if err := e.poll(); err != nil {
			e.log.Error("poll failed", zap.Error(err))
			return
		}
	}
}

// poll runs one iteration: a snapshot of queued tasks, then one epoll wait.
func (e *EventLoop) poll() error {
	ran := 0
	for n := e.tasks.len(); ran < n; ran++ {
		task := e.tasks.pop()
		if task == nil {
			break
		}
		e.runTask(task)
	}
	if !e.alive.Load() {
		return nil
	}
	timeout := int(e.cfg.PollTimeout / time.Millisecond)
	if ran > 0 {
		timeout = 0
	}
	events, err := e.poller.wait(timeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if k, ok := e.keys[int(ev.Fd)]; ok {
			e.dispatch(k, ev.Events)
		}
	}
	return nil
}

func (e *EventLoop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.Exception()
			e.log.Error("unattributed panic in task", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	if !e.cfg.Verbose {
		task()
		e.metrics.TaskExecuted()
		return
	}
	start := time.Now()
	task()
	e.metrics.TaskExecuted()
	e.log.Debug("task executed", zap.Duration("elapsed", time.Since(start)))
}

// dispatch delivers ready operations to the key's listener. The attachment
// is fetched again after every callback since a callback may replace it.
func (e *EventLoop) dispatch(k *Key, events uint32) {
	ready := readyOps(events, k.interest)
	if ready == 0 {
		return
	}
	e.metrics.KeyDispatched()
	defer func() {
		if r := recover(); r != nil {
			e.fail(k, fmt.Errorf("listener panic: %v", r))
		}
	}()

	if ready&api.OpAccept != 0 {
		e.acceptAll(k)
		return
	}
	if ready&api.OpConnect != 0 {
		connected, err := k.finishConnect()
		if err != nil {
			e.fail(k, err)
			return
		}
		if !connected {
			return
		}
		cl, ok := k.attachment.(api.ClientListener)
		if !ok {
			return
		}
		e.metrics.Connected()
		if k.interest&api.OpConnect != 0 {
			if err := k.setInterest(k.interest&^api.OpConnect | api.OpRead); err != nil {
				e.fail(k, err)
				return
			}
		}
		cl.Connected()
		ready &^= api.OpConnect
	}
	if ready&api.OpRead != 0 && k.valid {
		if cl, ok := k.attachment.(api.ClientListener); ok {
			if err := cl.Read(); err != nil {
				e.fail(k, err)
				return
			}
		}
	}
	if ready&api.OpWrite != 0 && k.valid {
		if cl, ok := k.attachment.(api.ClientListener); ok {
			if err := cl.Write(); err != nil {
				e.fail(k, err)
			}
		}
	}
}

func (e *EventLoop) fail(k *Key, err error) {
	e.metrics.Exception()
	if k == nil || k.attachment == nil {
		e.log.Warn("unattributed error", zap.Error(err))
		return
	}
	k.attachment.HandleException(err, e)
}

func (e *EventLoop) acceptAll(k *Key) {
	sl, ok := k.attachment.(api.ServerListener)
	if !ok {
		return
	}
	for k.valid {
		child, err := k.accept()
		if err != nil {
			e.fail(k, err)
			return
		}
		if child == nil {
			return
		}
		e.metrics.Accepted()
		e.adopt(sl, child)
	}
}

// adopt registers an accepted socket with the listener the server supplies.
func (e *EventLoop) adopt(sl api.ServerListener, s *socket) {
	k := e.track(s)
	cl := sl.GetClientConnection(k)
	if cl == nil {
		_ = k.cancel()
		_ = k.close()
		return
	}
	k.attachment = cl
	k.owner = cl
	e.listeners[cl] = k
	if err := k.setInterest(api.OpRead | api.OpWrite); err != nil {
		cl.HandleException(err, e)
		return
	}
	cl.Registered(k)
	cl.Connected()
}

func (e *EventLoop) track(s *socket) *Key {
	k := newKey(e, s)
	k.valid = true
	e.keys[s.fd] = k
	e.nkeys.Add(1)
	return k
}

// forget drops k from the registration table.
func (e *EventLoop) forget(k *Key) {
	if cur, ok := e.keys[k.fd]; ok && cur == k {
		delete(e.keys, k.fd)
		e.nkeys.Add(-1)
	}
	if k.owner != nil && e.listeners[k.owner] == k {
		delete(e.listeners, k.owner)
	}
}

// Register adds an already open channel with the given interest.
func (e *EventLoop) Register(ch api.Channel, ops api.Op, l api.Listener) error {
	if ch == nil || l == nil {
		return fmt.Errorf("register: %w", api.ErrInvalidArgument)
	}
	return e.Submit(func() {
		if _, exists := e.keys[ch.Fd()]; exists {
			l.HandleException(fmt.Errorf("register fd %d: %w", ch.Fd(), api.ErrAlreadyExists), e)
			return
		}
		k := e.track(&socket{fd: ch.Fd(), local: ch.LocalAddr(), remote: ch.RemoteAddr()})
		k.attachment = l
		k.owner = l
		e.listeners[l] = k
		if err := k.setInterest(ops); err != nil {
			_ = k.cancel()
			l.HandleException(err, e)
			return
		}
		l.Registered(k)
	})
}

// Unregister removes the channel from the loop without closing it. The key
// keeps a no-op attachment so stale events are ignored.
func (e *EventLoop) Unregister(ch api.Channel) error {
	if ch == nil {
		return fmt.Errorf("unregister: %w", api.ErrInvalidArgument)
	}
	fd := ch.Fd()
	return e.Submit(func() {
		k, ok := e.keys[fd]
		if !ok {
			return
		}
		l := unwrapListener(k.attachment)
		if err := k.cancel(); err != nil {
			e.log.Debug("unregister", zap.Int("fd", fd), zap.Error(err))
		}
		k.attachment = NoopListener
		if l != nil {
			l.Unregistered(k)
		}
	})
}

// Connect starts a non-blocking connect to address and registers l.
func (e *EventLoop) Connect(address string, l api.ClientListener) error {
	if l == nil {
		return fmt.Errorf("connect: %w", api.ErrInvalidArgument)
	}
	addr, err := resolveTCP(address)
	if err != nil {
		return err
	}
	return e.Submit(func() {
		if old, ok := e.listeners[l]; ok && old.valid {
			l.HandleException(fmt.Errorf("connect %s: listener already registered: %w", address, api.ErrAlreadyExists), e)
			return
		}
		s, connected, err := dialTCP(addr)
		if err != nil {
			e.metrics.Exception()
			l.HandleException(err, e)
			return
		}
		k := e.track(s)
		k.owner = l
		e.listeners[l] = k
		if connected {
			k.attachment = l
			if err := k.setInterest(api.OpRead | api.OpWrite); err != nil {
				l.HandleException(err, e)
				return
			}
			e.metrics.Connected()
			l.Registered(k)
			l.Connected()
			return
		}
		p := &preConnectListener{l: l, log: e.log}
		k.attachment = p
		if err := k.setInterest(api.OpConnect | api.OpRead); err != nil {
			p.Registered(k)
			p.HandleException(err, e)
			return
		}
		p.Registered(k)
	})
}

// Disconnect closes the connection owned by l. Pending output is flushed
// first when write interest is set.
func (e *EventLoop) Disconnect(l api.ClientListener) error {
	if l == nil {
		return fmt.Errorf("disconnect: %w", api.ErrInvalidArgument)
	}
	return e.Submit(func() {
		k, ok := e.listeners[l]
		if !ok || !k.valid {
			return
		}
		if _, draining := k.attachment.(*drainingListener); draining {
			return
		}
		if k.interest&api.OpWrite != 0 {
			d := &drainingListener{l: l, key: k, close: e.closeClient}
			k.attachment = d
			if err := k.setInterest(api.OpWrite); err != nil {
				d.finish()
			}
			return
		}
		k.attachment = NoopClientListener
		e.closeClient(k, l)
	})
}

func (e *EventLoop) closeClient(key api.SelectionKey, l api.ClientListener) {
	k := key.(*Key)
	if err := multierr.Combine(k.cancel(), k.close()); err != nil {
		e.log.Debug("close connection", zap.Error(err))
	}
	l.Disconnected()
}

// StartServer binds address and accepts connections for l.
func (e *EventLoop) StartServer(address string, l api.ServerListener) error {
	if l == nil {
		return fmt.Errorf("start server: %w", api.ErrInvalidArgument)
	}
	addr, err := resolveTCP(address)
	if err != nil {
		return err
	}
	return e.Submit(func() {
		s, err := listenTCP(addr, e.cfg.ListenBacklog)
		if err != nil {
			l.HandleException(err, e)
			return
		}
		k := e.track(s)
		k.attachment = l
		k.owner = l
		e.listeners[l] = k
		if err := k.setInterest(api.OpAccept); err != nil {
			_ = k.cancel()
			_ = k.close()
			l.HandleException(err, e)
			return
		}
		e.log.Debug("server listening", zap.Stringer("addr", s.local))
		l.Registered(k)
	})
}

// StopServer closes the listening socket owned by l. Accepted connections
// are not affected.
func (e *EventLoop) StopServer(l api.ServerListener) error {
	if l == nil {
		return fmt.Errorf("stop server: %w", api.ErrInvalidArgument)
	}
	return e.Submit(func() {
		k, ok := e.listeners[l]
		if !ok {
			return
		}
		if err := multierr.Combine(k.cancel(), k.close()); err != nil {
			e.log.Debug("stop server", zap.Error(err))
		}
		k.attachment = NoopListener
		l.Unregistered(k)
	})
}
