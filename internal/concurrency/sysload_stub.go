// File: internal/concurrency/sysload_stub.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
//
// Stub sampler for platforms without /proc. Reports idle CPU and ample
// memory, so only utilization and queue pressure drive adjustments.

//go:build !linux

package concurrency

func sampleSysLoad(_ *tuner) SysLoad {
	return SysLoad{CPUPercent: 0, AvailMemBytes: 1 << 40}
}
