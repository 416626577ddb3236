// File: pool/bytes_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassOf(t *testing.T) {
	cases := map[int]int{0: 0, 1: 0, 256: 0, 257: 1, 512: 1, 1000: 2, 65536: 8, 65537: -1}
	for n, want := range cases {
		assert.Equal(t, want, classOf(n), "n=%d", n)
	}
}

func TestGetPutBytes(t *testing.T) {
	b := GetBytes(300)
	assert.Zero(t, len(b))
	assert.Equal(t, 512, cap(b))

	b = append(b, "frame"...)
	PutBytes(b)

	big := GetBytes(1 << 20)
	assert.Equal(t, 1<<20, cap(big))
	assert.NotPanics(t, func() {
		PutBytes(big)
		PutBytes(make([]byte, 0, 300))
		PutBytes(nil)
	})
}

func TestSizeClass_AllocatesOnlyWhenEmpty(t *testing.T) {
	c := &sizeClass{size: 1024}
	b := c.get()
	assert.Equal(t, 1024, cap(b))
	assert.EqualValues(t, 1, c.allocs.Load())

	c.put(append(b, "payload"...))
	again := c.get()
	assert.Zero(t, len(again), "recycled slices come back empty")
	assert.Equal(t, 1024, cap(again))
	assert.LessOrEqual(t, c.allocs.Load(), int64(2))
}

func TestAllocations(t *testing.T) {
	before := Allocations()[4096]
	b := GetBytes(4000)
	assert.Equal(t, 4096, cap(b))
	assert.GreaterOrEqual(t, Allocations()[4096], before)
	assert.Len(t, Allocations(), numClasses)
	PutBytes(b)
}
