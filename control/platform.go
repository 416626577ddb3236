// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Runtime probes shared by every platform.

package control

import (
	"runtime"

	"github.com/momentics/hioload-rpc/pool"
)

func registerRuntimeProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any { return runtime.NumCPU() })
	dp.RegisterProbe("platform.goroutines", func() any { return runtime.NumGoroutine() })
	dp.RegisterProbe("pool.allocs", func() any { return pool.Allocations() })
}
