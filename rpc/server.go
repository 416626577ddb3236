// File: rpc/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/server"
	"go.uber.org/zap"
)

// Server accepts connections and serves each with an ExecutingClient backed
// by a shared bean factory and method table.
type Server struct {
	*server.Base
	beans BeanFactory
	table *MethodTable
	opts  *Options
	conns atomic.Int64
}

var _ api.ServerListener = (*Server)(nil)

// NewServer returns a server for beans and table. cfg may be nil.
func NewServer(beans BeanFactory, table *MethodTable, cfg *server.Config, opts ...Option) *Server {
	o := buildOptions("rpc.server", opts)
	base := server.NewBase(cfg, server.WithLogger(o.Logger), server.WithMetrics(o.Metrics))
	if table == nil {
		table = NewMethodTable()
	}
	return &Server{Base: base, beans: beans, table: table, opts: o}
}

// Table returns the method table.
func (s *Server) Table() *MethodTable { return s.table }

// Start begins accepting on loop. The returned future yields the bound
// address.
func (s *Server) Start(loop api.EventLoop) (*server.AddressFuture, error) {
	return s.Listen(loop, s)
}

// Stop stops accepting new connections.
func (s *Server) Stop() error { return s.Shutdown(s) }

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int64 { return s.conns.Load() }

// GetClientConnection creates the serving endpoint for an accepted channel.
func (s *Server) GetClientConnection(ch api.Channel) api.ClientListener {
	n := s.conns.Add(1)
	name := fmt.Sprintf("rpc.server.conn[%d]", n)
	if ra := ch.RemoteAddr(); ra != nil {
		name = fmt.Sprintf("rpc.server.conn[%s]", ra)
	}
	e := newExecutingClient(name, s.beans, s.table, s.opts)
	s.opts.Logger.Debug("accepted", zap.String("conn", name))
	return e.client
}
