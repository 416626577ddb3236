// control/debug_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	n := 0
	dp.RegisterProbe("b.count", func() any { n++; return n })
	dp.RegisterProbe("a.name", func() any { return "loop" })

	assert.Equal(t, []string{"a.name", "b.count"}, dp.Names())
	state := dp.DumpState()
	assert.Equal(t, "loop", state["a.name"])
	assert.Equal(t, 1, state["b.count"])

	dp.UnregisterProbe("b.count")
	assert.Equal(t, []string{"a.name"}, dp.Names())

	var nilProbes *DebugProbes
	assert.NotPanics(t, func() { nilProbes.RegisterProbe("x", func() any { return nil }) })
}

func TestPlatformProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	state := dp.DumpState()
	assert.Positive(t, state["platform.cpus"])
	assert.Contains(t, dp.Names(), "platform.os")
	assert.IsType(t, map[int]int64{}, state["pool.allocs"])
}
