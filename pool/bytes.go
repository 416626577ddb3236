// File: pool/bytes.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed byte slices for wire frames.

package pool

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

const (
	minClassShift = 8  // 256 B
	maxClassShift = 16 // 64 KiB
	numClasses    = maxClassShift - minClassShift + 1
)

// sizeClass recycles slices of one capacity. Slices are held by pointer so
// Put does not allocate.
type sizeClass struct {
	size   int
	pool   sync.Pool
	allocs atomic.Int64
}

func (c *sizeClass) get() []byte {
	if p, ok := c.pool.Get().(*[]byte); ok {
		return (*p)[:0]
	}
	c.allocs.Add(1)
	return make([]byte, 0, c.size)
}

func (c *sizeClass) put(b []byte) {
	b = b[:0]
	c.pool.Put(&b)
}

var classes [numClasses]sizeClass

func init() {
	for i := range classes {
		classes[i].size = 1 << (minClassShift + i)
	}
}

// classOf returns the smallest class holding n bytes, or -1 when n is above
// the largest class.
func classOf(n int) int {
	if n <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len(uint(n - 1))
	if shift > maxClassShift {
		return -1
	}
	return shift - minClassShift
}

// GetBytes returns an empty slice with capacity of at least n.
func GetBytes(n int) []byte {
	c := classOf(n)
	if c < 0 {
		return make([]byte, 0, n)
	}
	return classes[c].get()
}

// PutBytes recycles b. Slices whose capacity is not exactly a class size are
// left to the garbage collector.
func PutBytes(b []byte) {
	c := cap(b)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	shift := bits.Len(uint(c)) - 1
	if shift < minClassShift || shift > maxClassShift {
		return
	}
	classes[shift-minClassShift].put(b)
}

// Allocations reports how many slices each class has had to allocate, keyed
// by class capacity.
func Allocations() map[int]int64 {
	out := make(map[int]int64, numClasses)
	for i := range classes {
		out[classes[i].size] = classes[i].allocs.Load()
	}
	return out
}
