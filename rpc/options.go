// File: rpc/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/codec"
	"github.com/momentics/hioload-rpc/control"
	"github.com/momentics/hioload-rpc/internal/concurrency"
	"github.com/momentics/hioload-rpc/protocol"
	"go.uber.org/zap"
)

// DefaultMethodWait bounds how long a call waits for its method descriptor.
const DefaultMethodWait = 5 * time.Second

// ContextResolver produces CallContext.Value for context-aware handlers.
type ContextResolver func(target any, m Method, c *ExecutingClient) any

// Invocation is reported to analyzers after a served call.
type Invocation struct {
	Method Method
	Target any
	Args   []any
	Result any
	Err    error
}

// Analyzer observes served calls, for example to switch ciphers after a
// handshake step has been answered.
type Analyzer func(c *ExecutingClient, inv Invocation)

// Options configures clients, servers and transports.
type Options struct {
	Codec           codec.Factory
	Executor        api.Executor
	Serializer      MethodSerializer
	MethodWait      time.Duration
	ReadBufferSize  int
	MaxFrameSize    int
	ContextResolver ContextResolver
	Analyzers       []Analyzer
	Logger          *zap.Logger
	Metrics         *control.Metrics
	Clock           clock.Clock
}

// Option mutates Options.
type Option func(*Options)

var (
	sharedExecutorOnce sync.Once
	sharedExecutor     *concurrency.Executor
)

// defaultExecutor is a process-wide pool used when no executor is supplied.
func defaultExecutor() api.Executor {
	sharedExecutorOnce.Do(func() {
		sharedExecutor = concurrency.NewExecutor(runtime.NumCPU(), 0, zap.L().Named("rpc.executor"))
	})
	return sharedExecutor
}

func defaultContextResolver(_ any, _ Method, c *ExecutingClient) any {
	return c.Client().Codec()
}

func buildOptions(name string, opts []Option) *Options {
	o := &Options{
		Codec:           codec.DefaultFactory,
		Serializer:      DescriptorSerializer{},
		MethodWait:      DefaultMethodWait,
		ReadBufferSize:  64 * 1024,
		MaxFrameSize:    protocol.DefaultMaxFrameSize,
		ContextResolver: defaultContextResolver,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Executor == nil {
		o.Executor = defaultExecutor()
	}
	if o.Logger == nil {
		o.Logger = zap.L().Named(name)
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// WithCodec sets the per-connection codec factory.
func WithCodec(f codec.Factory) Option { return func(o *Options) { o.Codec = f } }

// WithExecutor sets the pool running message handlers.
func WithExecutor(e api.Executor) Option { return func(o *Options) { o.Executor = e } }

// WithSerializer sets the method serializer.
func WithSerializer(s MethodSerializer) Option { return func(o *Options) { o.Serializer = s } }

// WithMethodWait bounds the wait for an unknown method id.
func WithMethodWait(d time.Duration) Option { return func(o *Options) { o.MethodWait = d } }

// WithReadBufferSize sets the per-read buffer size.
func WithReadBufferSize(n int) Option { return func(o *Options) { o.ReadBufferSize = n } }

// WithMaxFrameSize bounds accepted frames.
func WithMaxFrameSize(n int) Option { return func(o *Options) { o.MaxFrameSize = n } }

// WithContextResolver sets the context resolution hook.
func WithContextResolver(r ContextResolver) Option {
	return func(o *Options) { o.ContextResolver = r }
}

// WithAnalyzer appends a post-invocation analyzer.
func WithAnalyzer(a Analyzer) Option {
	return func(o *Options) { o.Analyzers = append(o.Analyzers, a) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *control.Metrics) Option { return func(o *Options) { o.Metrics = m } }

// WithClock sets the clock used for call and method timeouts.
func WithClock(c clock.Clock) Option { return func(o *Options) { o.Clock = c } }
