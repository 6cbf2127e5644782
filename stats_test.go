// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"errors"
	"time"

	"github.com/siemens/dockermon/engine"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const mib = 1024 * 1024

func sample(read time.Time, total, system uint64, usage, cache, limit uint64, tx, rx uint64) engine.Stats {
	return engine.Stats{
		Read: read,
		CPU: &engine.CPUStats{
			TotalUsage:  total,
			SystemUsage: system,
			OnlineCPUs:  2,
		},
		Memory: &engine.MemoryStats{
			Usage:    usage,
			MaxUsage: usage * 2,
			Limit:    limit,
			Stats:    map[string]uint64{"cache": cache},
		},
		Networks: map[string]engine.NetworkStats{
			"eth0": {TxBytes: tx / 2, RxBytes: rx / 2},
			"eth1": {TxBytes: tx - tx/2, RxBytes: rx - rx/2},
		},
	}
}

var _ = Describe("deriving statistics", func() {

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	It("has no rates on the first sample", func() {
		stats, base, errs := derive("foo",
			sample(t0, 100, 1000, 300*mib, 100*mib, 400*mib, 2*mib, 4*mib),
			false, baselines{}, DefaultPrecisions())
		Expect(errs).To(BeEmpty())
		Expect(stats.Read).To(Equal(t0))
		Expect(stats.OnlineCPUs).To(Equal(uint32(2)))
		Expect(stats.CPUPercent).To(BeNil())
		Expect(stats.NetworkSpeedUpKB).To(BeNil())
		Expect(stats.NetworkSpeedDownKB).To(BeNil())
		Expect(stats.NetworkTotalUpMB).To(HaveValue(Equal(2.0)))
		Expect(stats.NetworkTotalDownMB).To(HaveValue(Equal(4.0)))
		Expect(base.cpu).NotTo(BeNil())
		Expect(base.net).NotTo(BeNil())
	})

	It("derives memory usage without page cache", func() {
		stats, _, errs := derive("foo",
			sample(t0, 100, 1000, 300*mib, 100*mib, 400*mib, 0, 0),
			false, baselines{}, DefaultPrecisions())
		Expect(errs).To(BeEmpty())
		Expect(stats.MemoryMB).To(HaveValue(Equal(200.0)))
		Expect(stats.MemoryLimitMB).To(HaveValue(Equal(400.0)))
		Expect(stats.MemoryMaxUsageMB).To(HaveValue(Equal(600.0)))
		Expect(stats.MemoryPercent).To(HaveValue(Equal(50.0)))
	})

	It("derives rates from the second sample on", func() {
		_, base, _ := derive("foo",
			sample(t0, 100, 1000, 300*mib, 100*mib, 400*mib, 10*1024, 20*1024),
			false, baselines{}, DefaultPrecisions())
		stats, base, errs := derive("foo",
			sample(t0.Add(2*time.Second), 150, 2000, 300*mib, 100*mib, 400*mib, 30*1024, 60*1024),
			false, base, DefaultPrecisions())
		Expect(errs).To(BeEmpty())
		Expect(stats.CPUPercent).To(HaveValue(Equal(10.0)))
		Expect(stats.NetworkSpeedUpKB).To(HaveValue(Equal(10.0)))
		Expect(stats.NetworkSpeedDownKB).To(HaveValue(Equal(20.0)))
		Expect(base.cpu.Total).To(Equal(uint64(150)))
		Expect(base.net.read).To(Equal(t0.Add(2 * time.Second)))
	})

	It("clamps CPU usage and drops network speeds on counter resets", func() {
		_, base, _ := derive("foo",
			sample(t0, 500, 5000, 300*mib, 100*mib, 400*mib, 30*1024, 60*1024),
			false, baselines{}, DefaultPrecisions())
		stats, base, errs := derive("foo",
			sample(t0.Add(time.Second), 100, 1000, 300*mib, 100*mib, 400*mib, 10*1024, 20*1024),
			false, base, DefaultPrecisions())
		Expect(errs).To(BeEmpty())
		Expect(stats.CPUPercent).To(HaveValue(BeIdenticalTo(0.0)))
		Expect(stats.NetworkSpeedUpKB).To(BeNil())
		Expect(stats.NetworkSpeedDownKB).To(BeNil())
		By("updating the baselines nevertheless")
		Expect(base.cpu.Total).To(Equal(uint64(100)))
		Expect(base.net.tx).To(Equal(uint64(10 * 1024)))
	})

	It("skips networks in host network mode", func() {
		_, base, _ := derive("foo",
			sample(t0, 100, 1000, 300*mib, 100*mib, 400*mib, 10*1024, 20*1024),
			true, baselines{}, DefaultPrecisions())
		Expect(base.net).To(BeNil())
		stats, _, errs := derive("foo",
			sample(t0.Add(time.Second), 200, 2000, 300*mib, 100*mib, 400*mib, 20*1024, 40*1024),
			true, base, DefaultPrecisions())
		Expect(errs).To(BeEmpty())
		Expect(stats.CPUPercent).NotTo(BeNil())
		Expect(stats.NetworkSpeedUpKB).To(BeNil())
		Expect(stats.NetworkSpeedDownKB).To(BeNil())
		Expect(stats.NetworkTotalUpMB).To(BeNil())
		Expect(stats.NetworkTotalDownMB).To(BeNil())
	})

	It("falls back to counting per-CPU usages", func() {
		s := sample(t0, 100, 1000, 300*mib, 100*mib, 400*mib, 0, 0)
		s.CPU.OnlineCPUs = 0
		s.CPU.PercpuUsage = []uint64{1, 2, 3, 4}
		stats, base, _ := derive("foo", s, false, baselines{}, DefaultPrecisions())
		Expect(stats.OnlineCPUs).To(Equal(uint32(4)))
		Expect(base.cpu.CPUs).To(Equal(uint32(4)))
	})

	It("reports malformed payloads and leaves only the affected gauges unknown", func() {
		s := sample(t0, 100, 1000, 300*mib, 100*mib, 400*mib, 0, 0)
		s.Memory.Stats = map[string]uint64{"inactive_file": 42}
		stats, _, errs := derive("foo", s, false, baselines{}, DefaultPrecisions())
		Expect(errs).To(HaveLen(1))
		Expect(errors.Is(errs[0], ErrMalformedPayload)).To(BeTrue())
		var merr *MalformedPayloadError
		Expect(errors.As(errs[0], &merr)).To(BeTrue())
		Expect(merr.Container).To(Equal("foo"))
		Expect(merr.Field).To(Equal("memory_stats.stats.cache"))
		Expect(merr.Raw).To(ContainSubstring("inactive_file"))
		Expect(stats.MemoryMB).To(BeNil())
		Expect(stats.MemoryPercent).To(BeNil())
		Expect(stats.NetworkTotalUpMB).NotTo(BeNil())

		stats, base, errs := derive("foo", engine.Stats{Read: t0}, false, baselines{}, DefaultPrecisions())
		Expect(errs).To(HaveLen(3))
		Expect(stats.CPUPercent).To(BeNil())
		Expect(stats.MemoryMB).To(BeNil())
		Expect(base.cpu).To(BeNil())
		Expect(base.net).To(BeNil())
	})

	It("rejects a zero memory limit", func() {
		_, _, errs := derive("foo",
			sample(t0, 100, 1000, 300*mib, 100*mib, 0, 0, 0),
			false, baselines{}, DefaultPrecisions())
		Expect(errs).To(ConsistOf(MatchError(ErrMalformedPayload)))
	})

	It("rounds to the configured precision", func() {
		prec := Precision{CPU: 1, MemoryMB: 0, MemoryPercent: 3, NetworkKB: 2, NetworkMB: 2}
		stats, _, _ := derive("foo",
			sample(t0, 100, 1000, 100*mib+mib/3, 0, 300*mib, 0, 0),
			false, baselines{}, prec)
		Expect(stats.MemoryMB).To(HaveValue(Equal(100.0)))
		Expect(stats.MemoryPercent).To(HaveValue(Equal(33.444)))
	})

})
