// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package rpc implements remote invocation over the reactor.
//
// A DelegationTransport turns stub calls into RPC messages sent through a
// Client endpoint. On the server side every accepted connection gets an
// ExecutingClient that resolves the target bean and the method handler, runs
// it on a worker pool and sends back an RR response.
//
// Method identity is negotiated on first use: the first call of a method on
// a connection carries its full descriptor in an ExtendedRPC, later calls
// carry only the integer id.
package rpc
