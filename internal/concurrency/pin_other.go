//go:build !linux
// +build !linux

// hioload-rpc/internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>

package concurrency

import "runtime"

// PinCurrentThread only locks the OS thread on this platform.
func PinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	return nil
}
