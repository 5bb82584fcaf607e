// Package procstats reads process-level resource counters for the metrics
// snapshot endpoint. Counters are gathered fresh on every call.
package procstats

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// CPUUsage reports cumulative process CPU time in microseconds since start.
type CPUUsage struct {
	User   int64 `json:"user"`
	System int64 `json:"system"`
}

// MemoryUsage reports process memory counters in bytes. RSS comes from the
// kernel; the heap breakdown comes from the Go allocator.
type MemoryUsage struct {
	RSS       int64  `json:"rss"`
	HeapTotal uint64 `json:"heapTotal"`
	HeapUsed  uint64 `json:"heapUsed"`
	External  uint64 `json:"external"`
}

// Snapshot is a point-in-time composite of the process resource counters.
type Snapshot struct {
	CPU    CPUUsage
	Memory MemoryUsage
}

// Collect gathers rusage and allocator counters. The only failure mode is the
// rusage syscall itself.
func Collect() (Snapshot, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return Snapshot{}, err
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Snapshot{
		CPU: CPUUsage{
			User:   timevalMicros(ru.Utime),
			System: timevalMicros(ru.Stime),
		},
		Memory: MemoryUsage{
			// ru_maxrss is reported in kilobytes on Linux.
			RSS:       ru.Maxrss * 1024,
			HeapTotal: ms.HeapSys,
			HeapUsed:  ms.HeapAlloc,
			External:  ms.Sys - ms.HeapSys,
		},
	}, nil
}

func timevalMicros(tv unix.Timeval) int64 {
	return int64(tv.Sec)*1_000_000 + int64(tv.Usec)
}
