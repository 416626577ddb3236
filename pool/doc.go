// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable memory for the wire path: a generic sync.Pool wrapper and
// size-classed byte slices that back outbound frames until they are written.
package pool
