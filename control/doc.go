// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer for hioload-rpc.
//
// Provides:
//   - Prometheus collectors for reactor tasks, readiness dispatch and RPC calls
//   - A probe registry reactors and transports publish live state into
//
// Every collector method is nil-safe so components can run without metrics.
package control
