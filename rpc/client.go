// File: rpc/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client is the framed message endpoint of one connection.

package rpc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/codec"
	"github.com/momentics/hioload-rpc/control"
	"github.com/momentics/hioload-rpc/pool"
	"github.com/momentics/hioload-rpc/protocol"
	"github.com/multiformats/go-varint"
	"go.uber.org/zap"
)

// Connection states.
const (
	stateIdle int32 = iota
	stateConnecting
	stateConnected
)

// maxReadsPerEvent caps reads per readiness event so one busy connection
// cannot starve the rest of the loop.
const maxReadsPerEvent = 16

// Client is an api.ClientListener that frames codec output over a
// connection. Decoded messages go to the message hook on the executor, never
// on the loop goroutine. Send may be called from any goroutine.
//
// The loop never waits for the executor. Messages it cannot hand over at
// once are parked in an overflow ring that a helper goroutine feeds to the
// executor in arrival order.
//
// Fields below the loop marker are owned by the loop goroutine.
type Client struct {
	name     string
	log      *zap.Logger
	metrics  *control.Metrics
	codec    codec.StatefulStreamCodec
	executor api.Executor

	onMessage   func(msg any)
	onDecoded   func(msg any)
	onSendError func(msg any, err error)
	onReset     func(cause error)

	loopMu sync.RWMutex
	loop   api.EventLoop
	state  atomic.Int32

	ovMu     sync.Mutex
	overflow *queue.Queue
	draining bool

	// loop
	key          api.SelectionKey
	decoder      *protocol.Decoder
	readBuf      []byte
	pendingState []byte
	out          [][]byte
	outOff       int
}

var _ api.ClientListener = (*Client)(nil)

// newClient builds an endpoint. onMessage runs on the executor.
func newClient(name string, o *Options, onMessage func(any)) *Client {
	return &Client{
		name:      name,
		log:       o.Logger,
		metrics:   o.Metrics,
		codec:     o.Codec(),
		executor:  o.Executor,
		onMessage: onMessage,
		overflow:  queue.New(),
		decoder:   protocol.NewDecoder(o.MaxFrameSize),
		readBuf:   make([]byte, o.ReadBufferSize),
	}
}

func (c *Client) String() string { return c.name }

// Codec returns the connection codec.
func (c *Client) Codec() codec.StatefulStreamCodec { return c.codec }

// SetEventLoop binds the client to loop before it is connected.
func (c *Client) SetEventLoop(loop api.EventLoop) {
	c.loopMu.Lock()
	c.loop = loop
	c.loopMu.Unlock()
}

// EventLoop returns the loop the client is bound to.
func (c *Client) EventLoop() api.EventLoop {
	c.loopMu.RLock()
	defer c.loopMu.RUnlock()
	return c.loop
}

// IsConnected reports whether the connection is established.
func (c *Client) IsConnected() bool { return c.state.Load() == stateConnected }

// beginConnect moves an idle client to connecting and reports whether the
// caller should start a connection.
func (c *Client) beginConnect() bool {
	return c.state.CompareAndSwap(stateIdle, stateConnecting)
}

// abortConnect undoes beginConnect after a connect request was rejected.
func (c *Client) abortConnect() {
	c.state.CompareAndSwap(stateConnecting, stateIdle)
}

// Execute runs task on the loop goroutine, ordered with Send.
func (c *Client) Execute(task func()) error {
	loop := c.EventLoop()
	if loop == nil {
		return api.ErrNotConnected
	}
	return loop.Submit(task)
}

// Send encodes, frames and queues msg on the loop goroutine. Messages are
// written in Send order.
func (c *Client) Send(msg any) error {
	return c.Execute(func() { c.enqueue(msg) })
}

// Disconnect closes the connection after pending output is flushed.
func (c *Client) Disconnect() error {
	loop := c.EventLoop()
	if loop == nil {
		return nil
	}
	return loop.Disconnect(c)
}

func (c *Client) enqueue(msg any) {
	if c.state.Load() == stateIdle {
		c.log.Debug("dropping message on idle connection", zap.Stringer("client", c), zap.Any("msg", msg))
		return
	}
	pair, err := c.codec.ToDataStatePair(msg)
	if err != nil {
		c.log.Error("encode failed", zap.Stringer("client", c), zap.Error(err))
		if c.onSendError != nil {
			c.onSendError(msg, err)
		}
		return
	}
	if pair.State != nil {
		c.out = append(c.out, frameOf(pair.State))
		c.metrics.Frame("out")
	}
	c.out = append(c.out, frameOf(pair.Data))
	c.metrics.Frame("out")
	if c.state.Load() == stateConnected {
		c.wantWrite()
	}
}

// frameOf frames payload into a pooled slice, returned by Write once sent.
func frameOf(payload []byte) []byte {
	return protocol.AppendFrame(pool.GetBytes(len(payload)+varint.MaxLenUvarint63), payload)
}

func (c *Client) wantWrite() {
	if c.key == nil || !c.key.Valid() || c.key.Interest()&api.OpWrite != 0 {
		return
	}
	if err := c.key.SetInterest(c.key.Interest() | api.OpWrite); err != nil {
		c.HandleException(err, c.key.EventLoop())
	}
}

// Registered records the key and the loop owning it.
func (c *Client) Registered(key api.SelectionKey) {
	c.key = key
	c.SetEventLoop(key.EventLoop())
	c.state.CompareAndSwap(stateIdle, stateConnecting)
}

func (c *Client) Unregistered(api.SelectionKey) {}

// Connected flushes anything queued while connecting.
func (c *Client) Connected() {
	c.state.Store(stateConnected)
	c.log.Debug("connected", zap.Stringer("client", c),
		zap.Any("local", c.key.LocalAddr()), zap.Any("remote", c.key.RemoteAddr()))
	if len(c.out) > 0 {
		c.wantWrite()
	}
}

// Read decodes every complete frame. STATE frames are held and paired with
// the next DATA frame.
func (c *Client) Read() error {
	for i := 0; i < maxReadsPerEvent; i++ {
		n, err := c.key.Read(c.readBuf)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		c.decoder.Feed(c.readBuf[:n])
		if n < len(c.readBuf) {
			break
		}
	}
	for {
		payload, err := c.decoder.Next()
		if err != nil {
			return err
		}
		if payload == nil {
			return nil
		}
		c.metrics.Frame("in")
		switch payload[0] {
		case protocol.TagState:
			if c.pendingState != nil {
				return api.NewError(api.ErrCodeProtocol, "two state frames without data")
			}
			c.pendingState = payload
			continue
		case protocol.TagData:
		default:
			return api.NewError(api.ErrCodeProtocol, "unknown frame tag").
				WithContext("tag", protocol.TagName(payload[0]))
		}
		pair := codec.DataStatePair{Data: payload, State: c.pendingState}
		c.pendingState = nil
		msg, err := c.codec.FromDataStatePair(pair)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		c.dispatch(msg)
	}
}

// dispatch hands msg to the executor without blocking the loop. Once
// anything is parked, later messages queue behind it.
func (c *Client) dispatch(msg any) {
	if c.onDecoded != nil {
		c.onDecoded(msg)
	}
	if c.onMessage == nil {
		return
	}
	task := func() { c.onMessage(msg) }

	c.ovMu.Lock()
	parked := c.draining
	c.ovMu.Unlock()
	if !parked {
		if te, ok := c.executor.(api.TryExecutor); ok && te.TrySubmit(task) {
			return
		}
	}

	c.ovMu.Lock()
	c.overflow.Add(task)
	if !c.draining {
		c.draining = true
		c.log.Debug("executor saturated, parking messages", zap.Stringer("client", c))
		go c.drainOverflow()
	}
	c.ovMu.Unlock()
}

// drainOverflow feeds parked messages to the executor, waiting for room as
// needed, and exits once the ring is empty.
func (c *Client) drainOverflow() {
	for {
		c.ovMu.Lock()
		if c.overflow.Length() == 0 {
			c.draining = false
			c.ovMu.Unlock()
			return
		}
		task := c.overflow.Remove().(func())
		c.ovMu.Unlock()
		if err := c.executor.Submit(task); err != nil {
			c.log.Warn("message dropped", zap.Stringer("client", c), zap.Error(err))
		}
	}
}

// Parked returns the number of messages waiting for executor capacity.
func (c *Client) Parked() int {
	c.ovMu.Lock()
	defer c.ovMu.Unlock()
	return c.overflow.Length()
}

// Write flushes queued frames in order, resuming partial writes, and drops
// write interest once the queue is empty.
func (c *Client) Write() error {
	for len(c.out) > 0 {
		frame := c.out[0]
		n, err := c.key.Write(frame[c.outOff:])
		if err != nil {
			return err
		}
		c.outOff += n
		if c.outOff < len(frame) {
			return nil
		}
		pool.PutBytes(frame)
		c.out[0] = nil
		c.out = c.out[1:]
		c.outOff = 0
	}
	if c.key.Valid() && c.key.Interest()&api.OpWrite != 0 {
		return c.key.SetInterest(c.key.Interest() &^ api.OpWrite)
	}
	return nil
}

// HandleException closes the connection. Errors raised before the socket was
// registered reset the client directly.
func (c *Client) HandleException(err error, loop api.EventLoop) {
	c.metrics.Exception()
	c.log.Info("connection error", zap.Stringer("client", c), zap.Error(err))
	if c.key != nil && c.key.Valid() && loop != nil {
		if derr := loop.Disconnect(c); derr == nil {
			return
		}
	}
	c.reset(err)
}

// Disconnected resets the connection state.
func (c *Client) Disconnected() {
	c.log.Debug("disconnected", zap.Stringer("client", c))
	c.reset(api.ErrNotConnected)
}

// reset drops queued I/O and codec state so a reconnect starts clean.
func (c *Client) reset(cause error) {
	c.state.Store(stateIdle)
	c.key = nil
	for _, frame := range c.out {
		pool.PutBytes(frame)
	}
	c.out = nil
	c.outOff = 0
	c.pendingState = nil
	c.decoder.Reset()
	c.codec.ResetState()
	if c.onReset != nil {
		c.onReset(cause)
	}
}
