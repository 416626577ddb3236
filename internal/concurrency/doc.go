// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker pool and thread pinning helpers. The executor runs RPC message
// handlers so the reactor goroutine never blocks on application code; thread
// pinning optionally binds the reactor's locked OS thread to one CPU.
package concurrency
