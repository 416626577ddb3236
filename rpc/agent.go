// File: rpc/agent.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"context"

	"github.com/momentics/hioload-rpc/api"
)

// ConnectionAgent decides how and where a transport's client connects.
// Connect starts a connection and may return before it is established.
type ConnectionAgent interface {
	Connect(ctx context.Context, c *Client) error
	Disconnect(c *Client) error
}

// SimpleConnectionAgent connects to a fixed address through one loop.
type SimpleConnectionAgent struct {
	Address string
	Loop    api.EventLoop
}

// NewSimpleConnectionAgent returns an agent for address.
func NewSimpleConnectionAgent(address string, loop api.EventLoop) *SimpleConnectionAgent {
	return &SimpleConnectionAgent{Address: address, Loop: loop}
}

func (a *SimpleConnectionAgent) Connect(ctx context.Context, c *Client) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.SetEventLoop(a.Loop)
	return a.Loop.Connect(a.Address, c)
}

func (a *SimpleConnectionAgent) Disconnect(c *Client) error {
	return a.Loop.Disconnect(c)
}
