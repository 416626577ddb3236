//go:build linux
// +build linux

// File: server/types_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type refusingServer struct {
	*Base
	accepted chan struct{}
}

func (s *refusingServer) GetClientConnection(api.Channel) api.ClientListener {
	s.accepted <- struct{}{}
	return nil
}

func startLoop(t *testing.T) reactor.Loop {
	t.Helper()
	cfg := reactor.DefaultConfig()
	cfg.Logger = zaptest.NewLogger(t)
	loop, err := reactor.New(cfg)
	require.NoError(t, err)
	require.NoError(t, loop.Start())
	t.Cleanup(func() { _ = loop.Close() })
	return loop
}

func TestBase_BoundAddress(t *testing.T) {
	loop := startLoop(t)
	s := &refusingServer{
		Base:     NewBase(nil, WithLogger(zaptest.NewLogger(t))),
		accepted: make(chan struct{}, 1),
	}
	fut, err := s.Listen(loop, s)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr, err := fut.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, addr)
	assert.NotZero(t, addr.(*net.TCPAddr).Port)
	select {
	case <-s.BoundAddress().Done():
	default:
		t.Fatal("future should be done")
	}

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	select {
	case <-s.accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("connection not offered to the server")
	}

	_, err = s.Listen(loop, s)
	assert.ErrorIs(t, err, api.ErrAlreadyExists)
	require.NoError(t, s.Shutdown(s))
}

func TestBase_RegistrationFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	loop := startLoop(t)
	s := &refusingServer{
		Base:     NewBase(&Config{ListenAddr: ln.Addr().String()}, WithLogger(zaptest.NewLogger(t))),
		accepted: make(chan struct{}, 1),
	}
	fut, err := s.Listen(loop, s)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr, err := fut.Wait(ctx)
	assert.Error(t, err)
	assert.Nil(t, addr)
}

func TestAddressFuture_WaitHonorsContext(t *testing.T) {
	f := newAddressFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.True(t, f.complete(nil, api.ErrNotFound))
	assert.False(t, f.complete(nil, nil), "completes once")
	_, err = f.Wait(context.Background())
	assert.ErrorIs(t, err, api.ErrNotFound)
}
