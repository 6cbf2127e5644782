// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"fmt"
	"strconv"
	"time"

	"github.com/siemens/dockermon/engine"
)

// DerivedStats are the utilization gauges derived from a container's raw
// resource counters. A nil gauge is unknown, either because the engine didn't
// report the necessary counters or because there was no previous sample to
// compute a rate from.
type DerivedStats struct {
	Read       time.Time // engine sample timestamp.
	OnlineCPUs uint32

	CPUPercent *float64

	MemoryMB         *float64 // usage without page cache.
	MemoryLimitMB    *float64
	MemoryMaxUsageMB *float64
	MemoryPercent    *float64

	NetworkSpeedUpKB   *float64 // KiB/s
	NetworkSpeedDownKB *float64 // KiB/s
	NetworkTotalUpMB   *float64
	NetworkTotalDownMB *float64
}

// Precision specifies the number of decimals the individual derived gauges
// get rounded to.
type Precision struct {
	CPU           int `mapstructure:"cpu" yaml:"cpu"`
	MemoryMB      int `mapstructure:"memory_mb" yaml:"memory_mb"`
	MemoryPercent int `mapstructure:"memory_percent" yaml:"memory_percent"`
	NetworkKB     int `mapstructure:"network_kb" yaml:"network_kb"`
	NetworkMB     int `mapstructure:"network_mb" yaml:"network_mb"`
}

// DefaultPrecisions returns [DefaultPrecision] for all gauges.
func DefaultPrecisions() Precision {
	return Precision{
		CPU:           DefaultPrecision,
		MemoryMB:      DefaultPrecision,
		MemoryPercent: DefaultPrecision,
		NetworkKB:     DefaultPrecision,
		NetworkMB:     DefaultPrecision,
	}
}

// networkCounters are the cumulative network byte counters summed over all
// interfaces of a container, together with the engine's sample timestamp.
type networkCounters struct {
	read time.Time
	tx   uint64
	rx   uint64
}

// baselines are the previous counter samples rates get computed against. nil
// baselines signal that there is no previous sample yet.
type baselines struct {
	cpu *CPUCounters
	net *networkCounters
}

// derive computes the gauges from a raw stats sample and the previous
// baselines, returning the new baselines for the next sample. Fields missing
// in the sample are reported as MalformedPayloadErrors and leave only the
// affected gauges unknown.
func derive(
	name string, sample engine.Stats, hostnet bool, prev baselines, prec Precision,
) (DerivedStats, baselines, []error) {
	stats := DerivedStats{Read: sample.Read}
	next := prev
	var errs []error

	if cpu := sample.CPU; cpu == nil {
		errs = append(errs, &MalformedPayloadError{
			Container: name, Field: "cpu_stats", Raw: "<missing>"})
	} else {
		cur := CPUCounters{
			Total:  cpu.TotalUsage,
			System: cpu.SystemUsage,
			CPUs:   cpu.OnlineCPUs,
		}
		if cur.CPUs == 0 {
			// older engines don't report online CPUs.
			cur.CPUs = uint32(len(cpu.PercpuUsage))
		}
		stats.OnlineCPUs = cur.CPUs
		if prev.cpu != nil {
			stats.CPUPercent = gauge(CPUPercent(*prev.cpu, cur), prec.CPU)
		}
		next.cpu = &cur
	}

	if mem := sample.Memory; mem == nil {
		errs = append(errs, &MalformedPayloadError{
			Container: name, Field: "memory_stats", Raw: "<missing>"})
	} else if cache, ok := mem.Stats["cache"]; !ok {
		errs = append(errs, &MalformedPayloadError{
			Container: name, Field: "memory_stats.stats.cache", Raw: fmt.Sprintf("%+v", *mem)})
	} else if mem.Limit == 0 || cache > mem.Usage {
		errs = append(errs, &MalformedPayloadError{
			Container: name, Field: "memory_stats.limit", Raw: fmt.Sprintf("%+v", *mem)})
	} else {
		usage := float64(mem.Usage - cache)
		stats.MemoryMB = gauge(ToMB(usage), prec.MemoryMB)
		stats.MemoryLimitMB = gauge(ToMB(float64(mem.Limit)), prec.MemoryMB)
		stats.MemoryMaxUsageMB = gauge(ToMB(float64(mem.MaxUsage)), prec.MemoryMB)
		stats.MemoryPercent = gauge(usage/float64(mem.Limit)*100.0, prec.MemoryPercent)
	}

	if hostnet {
		return stats, next, errs
	}
	if sample.Networks == nil {
		errs = append(errs, &MalformedPayloadError{
			Container: name, Field: "networks", Raw: "<missing>"})
		return stats, next, errs
	}
	cur := networkCounters{read: sample.Read}
	for _, nif := range sample.Networks {
		cur.tx += nif.TxBytes
		cur.rx += nif.RxBytes
	}
	stats.NetworkTotalUpMB = gauge(ToMB(float64(cur.tx)), prec.NetworkMB)
	stats.NetworkTotalDownMB = gauge(ToMB(float64(cur.rx)), prec.NetworkMB)
	if prev.net != nil {
		if up, ok := NetworkSpeed(prev.net.tx, cur.tx, prev.net.read, cur.read); ok {
			stats.NetworkSpeedUpKB = gauge(up, prec.NetworkKB)
		}
		if down, ok := NetworkSpeed(prev.net.rx, cur.rx, prev.net.read, cur.read); ok {
			stats.NetworkSpeedDownKB = gauge(down, prec.NetworkKB)
		}
	}
	next.net = &cur
	return stats, next, errs
}

// gauge returns a pointer to v rounded to the specified decimals.
func gauge(v float64, decimals int) *float64 {
	v = Round(v, decimals)
	return &v
}

// fmtGauge formats a gauge for logging.
func fmtGauge(g *float64) string {
	if g == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*g, 'f', -1, 64)
}
