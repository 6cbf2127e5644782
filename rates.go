// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"math"
	"time"
)

// DefaultPrecision is the number of decimals derived gauges get rounded to,
// unless configured otherwise.
const DefaultPrecision = 2

// CPUCounters is a pair of cumulative CPU counters, together with the number
// of logical CPUs the container could use at the time the counters were taken.
type CPUCounters struct {
	Total  uint64 // CPU time consumed by the container.
	System uint64 // CPU time consumed by the host system.
	CPUs   uint32 // number of online (logical) CPUs.
}

// CPUPercent returns the CPU utilization in percent between two successive
// counter pairs, scaled by the number of CPUs in cur. The utilization is
// exactly 0.0 if either the container or the system counter didn't advance,
// such as after a counter reset or when getting the same sample twice.
func CPUPercent(prev, cur CPUCounters) float64 {
	if cur.Total <= prev.Total || cur.System <= prev.System {
		return 0.0
	}
	cpudelta := float64(cur.Total - prev.Total)
	sysdelta := float64(cur.System - prev.System)
	return cpudelta / sysdelta * float64(cur.CPUs) * 100.0
}

// NetworkSpeed returns the transfer speed in KiB/s between two cumulative byte
// counter readings taken at the specified runtime sample times. It reports
// false if there is no valid speed: when the counter went backwards or the
// sample times didn't advance.
func NetworkSpeed(prevBytes, bytes uint64, prevRead, read time.Time) (float64, bool) {
	if bytes < prevBytes {
		return 0, false
	}
	secs := read.Sub(prevRead).Seconds()
	if secs <= 0 {
		return 0, false
	}
	return ToKB(float64(bytes-prevBytes) / secs), true
}

// ToKB converts bytes into KiB.
func ToKB(bytes float64) float64 {
	return bytes / 1024
}

// ToMB converts bytes into MiB.
func ToMB(bytes float64) float64 {
	return bytes / (1024 * 1024)
}

// Round rounds v half away from zero to the specified number of decimals.
// Negative decimals are taken as zero.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
