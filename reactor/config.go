// File: reactor/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event loop configuration.

package reactor

import (
	"time"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/control"
	"go.uber.org/zap"
)

// Config holds event loop parameters.
type Config struct {
	// ID names the loop in logs and probes.
	ID string
	// Backlog bounds the task queue for producers outside the loop.
	Backlog int
	// ListenBacklog is passed to listen(2) by StartServer.
	ListenBacklog int
	// PollTimeout is the idle poll wait when no tasks ran.
	PollTimeout time.Duration
	// MaxEvents caps events returned by a single poll.
	MaxEvents int
	// ReadBufferSize is a hint for listeners allocating read buffers.
	ReadBufferSize int
	// PinCPU binds the loop's OS thread to CPU.
	PinCPU bool
	CPU    int
	// Verbose logs per-task durations at debug level.
	Verbose bool
	Logger  *zap.Logger
	Metrics *control.Metrics
	// Probes receives pending, keys and active probes under ID.
	Probes api.Debug
}

// DefaultConfig returns the standard loop configuration.
func DefaultConfig() *Config {
	return &Config{
		ID:             "reactor",
		Backlog:        1024,
		ListenBacklog:  128,
		PollTimeout:    100 * time.Millisecond,
		MaxEvents:      128,
		ReadBufferSize: 64 * 1024,
	}
}

// normalize fills zero fields from DefaultConfig.
func (c *Config) normalize() *Config {
	d := DefaultConfig()
	if c == nil {
		c = d
	}
	out := *c
	if out.ID == "" {
		out.ID = d.ID
	}
	if out.Backlog <= 0 {
		out.Backlog = d.Backlog
	}
	if out.ListenBacklog <= 0 {
		out.ListenBacklog = d.ListenBacklog
	}
	if out.PollTimeout <= 0 {
		out.PollTimeout = d.PollTimeout
	}
	if out.MaxEvents <= 0 {
		out.MaxEvents = d.MaxEvents
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.Logger == nil {
		out.Logger = zap.L().Named(out.ID)
	}
	return &out
}
