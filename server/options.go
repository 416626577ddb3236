// File: server/options.go
// Package server defines functional options for server configuration.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-rpc/control"
	"go.uber.org/zap"
)

// Option customizes a server Config.
type Option func(*Config)

// WithListenAddr sets the bind address.
func WithListenAddr(addr string) Option {
	return func(c *Config) { c.ListenAddr = addr }
}

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *control.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}
