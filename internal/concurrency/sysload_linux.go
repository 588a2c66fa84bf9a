// File: internal/concurrency/sysload_linux.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Host load sampling on Linux: CPU busy share from the /proc/stat deltas
// between consecutive samples, available memory from sysinfo(2).

//go:build linux

package concurrency

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// sampleSysLoad reads one load sample. The tuner's mutex is held by the
// caller; prevBusy/prevTotal carry the CPU counters between samples. The
// first sample reports 0% CPU (no delta yet), so the first adjustment
// decision treats the host CPU as idle.
func sampleSysLoad(t *tuner) SysLoad {
	var out SysLoad

	if busy, total, ok := readProcStat(); ok {
		if t.prevTotal > 0 && total > t.prevTotal {
			dBusy := busy - t.prevBusy
			dTotal := total - t.prevTotal
			out.CPUPercent = 100 * float64(dBusy) / float64(dTotal)
		}
		t.prevBusy, t.prevTotal = busy, total
	}

	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err == nil {
		out.AvailMemBytes = uint64(si.Freeram+si.Bufferram) * uint64(si.Unit)
	}
	return out
}

// readProcStat returns the aggregate busy and total jiffies from the first
// "cpu " line of /proc/stat.
func readProcStat() (busy, total uint64, ok bool) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, 0, false
	}
	fields := strings.Fields(sc.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, false
	}
	var vals []uint64
	for _, fv := range fields[1:] {
		v, err := strconv.ParseUint(fv, 10, 64)
		if err != nil {
			break
		}
		vals = append(vals, v)
	}
	if len(vals) < 4 {
		return 0, 0, false
	}
	for _, v := range vals {
		total += v
	}
	// Fields 3 (idle) and 4 (iowait) are the non-busy time.
	idle := vals[3]
	if len(vals) > 4 {
		idle += vals[4]
	}
	return total - idle, total, true
}
