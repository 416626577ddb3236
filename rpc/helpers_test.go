// File: rpc/helpers_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/codec"
	"github.com/momentics/hioload-rpc/internal/concurrency"
	"github.com/momentics/hioload-rpc/protocol"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const greeterInterface = "test.Greeter"

var (
	methodHello     = NewMethod(greeterInterface, "Hello")
	methodGreet     = NewMethod(greeterInterface, "Greet", "string")
	methodFail      = NewMethod(greeterInterface, "Fail")
	methodCodecType = NewMethod(greeterInterface, "CodecType")
	methodMissing   = NewMethod(greeterInterface, "Missing")
	methodLoad      = NewMethod(greeterInterface, "Load")
)

const failMessage = "greeter is broken: code 7"

type greeter struct {
	prefix   string
	closeErr error
	closed   atomic.Bool
}

func (g *greeter) Close() error {
	g.closed.Store(true)
	return g.closeErr
}

func newGreeterTable() *MethodTable {
	t := NewMethodTable()
	t.MustRegister(methodHello, Bind0(func(g *greeter) (string, error) {
		return g.prefix + "hello", nil
	}))
	t.MustRegister(methodGreet, Bind1(func(g *greeter, name string) (string, error) {
		return g.prefix + "hello, " + name, nil
	}))
	t.MustRegister(methodFail, Bind0(func(*greeter) (any, error) {
		return nil, errors.New(failMessage)
	}))
	t.MustRegister(methodLoad, Bind0(func(*greeter) (any, error) {
		return nil, fmt.Errorf("load greeting: %w", fmt.Errorf("read config: %w", io.ErrUnexpectedEOF))
	}))
	if err := t.RegisterContext(methodCodecType, func(ctx *CallContext, _ any, _ []any) (any, error) {
		return fmt.Sprintf("%T", codec.Unwrap(ctx.Value.(codec.StatefulStreamCodec))), nil
	}); err != nil {
		panic(err)
	}
	return t
}

func newGreeterFactory(t *testing.T) *MapBeanFactory {
	f := NewMapBeanFactory(zaptest.NewLogger(t))
	f.Provide([]string{greeterInterface}, func(args ...any) (any, error) {
		g := &greeter{}
		if len(args) > 0 {
			prefix, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("prefix of type %T", args[0])
			}
			g.prefix = prefix
		}
		return g, nil
	})
	return f
}

func testOptions(t *testing.T, extra ...Option) []Option {
	return append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithExecutor(concurrency.Inline{}),
	}, extra...)
}

// fakeLoop runs every task synchronously under one lock, standing in for the
// loop goroutine.
type fakeLoop struct {
	mu          sync.Mutex
	disconnects int
}

var _ api.EventLoop = (*fakeLoop)(nil)

func (l *fakeLoop) Submit(task func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	task()
	return nil
}

func (l *fakeLoop) Register(api.Channel, api.Op, api.Listener) error { return nil }
func (l *fakeLoop) Unregister(api.Channel) error                     { return nil }
func (l *fakeLoop) Connect(string, api.ClientListener) error         { return nil }
func (l *fakeLoop) StartServer(string, api.ServerListener) error     { return nil }
func (l *fakeLoop) StopServer(api.ServerListener) error              { return nil }
func (l *fakeLoop) InLoop() bool                                     { return false }

func (l *fakeLoop) Disconnect(c api.ClientListener) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnects++
	c.Disconnected()
	return nil
}

// sent decodes the frames queued on c so far.
func sent(t *testing.T, loop *fakeLoop, c *Client) []any {
	t.Helper()
	var frames [][]byte
	require.NoError(t, loop.Submit(func() {
		for _, f := range c.out {
			frames = append(frames, append([]byte(nil), f...))
		}
	}))
	dec := protocol.NewDecoder(protocol.DefaultMaxFrameSize)
	cd := codec.DefaultFactory()
	var (
		msgs  []any
		state []byte
	)
	for _, f := range frames {
		dec.Feed(f)
		payload, err := dec.Next()
		require.NoError(t, err)
		require.NotNil(t, payload)
		if payload[0] == protocol.TagState {
			state = payload
			continue
		}
		msg, err := cd.FromDataStatePair(codec.DataStatePair{Data: payload, State: state})
		require.NoError(t, err)
		state = nil
		msgs = append(msgs, msg)
	}
	return msgs
}
