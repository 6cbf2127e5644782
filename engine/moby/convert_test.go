// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package moby

import (
	"time"

	"github.com/docker/docker/api/types/container"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("converting Docker API types", func() {

	It("converts inspection details", func() {
		details := container.InspectResponse{
			ContainerJSONBase: &container.ContainerJSONBase{
				ID:      "1234",
				Created: "2026-01-02T03:04:05.000000006Z",
				State: &container.State{
					Status:     "exited",
					StartedAt:  "2026-01-02T03:04:06Z",
					FinishedAt: "2026-01-02T04:04:06Z",
					ExitCode:   42,
				},
				HostConfig: &container.HostConfig{
					NetworkMode: "host",
				},
			},
			Config: &container.Config{Image: "busybox:latest"},
		}
		insp := inspection(details)
		Expect(insp.ID).To(Equal("1234"))
		Expect(insp.Image).To(Equal("busybox:latest"))
		Expect(insp.Status).To(Equal("exited"))
		Expect(insp.ExitCode).To(Equal(42))
		Expect(insp.Created).To(Equal(time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)))
		Expect(insp.StartedAt).To(Equal(time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)))
		Expect(insp.FinishedAt).To(Equal(time.Date(2026, 1, 2, 4, 4, 6, 0, time.UTC)))
		Expect(insp.HostNetwork()).To(BeTrue())
	})

	It("survives sparse inspection details", func() {
		insp := inspection(container.InspectResponse{})
		Expect(insp.Status).To(BeEmpty())
		Expect(insp.Created).To(BeZero())
		Expect(insp.HostNetwork()).To(BeFalse())
	})

	It("maps Docker's zero timestamps onto zero time", func() {
		Expect(parseTime("0001-01-01T00:00:00Z")).To(BeZero())
		Expect(parseTime("garbage")).To(BeZero())
	})

	It("converts stats and keeps missing parts missing", func() {
		read := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		stats := &container.StatsResponse{Read: read}
		snap := snapshot(stats)
		Expect(snap.Read).To(Equal(read))
		Expect(snap.CPU).To(BeNil())
		Expect(snap.Memory).To(BeNil())
		Expect(snap.Networks).To(BeNil())

		stats.CPUStats = container.CPUStats{
			CPUUsage: container.CPUUsage{
				TotalUsage:  100,
				PercpuUsage: []uint64{50, 50},
			},
			SystemUsage: 1000,
			OnlineCPUs:  2,
		}
		stats.MemoryStats = container.MemoryStats{
			Usage: 2048,
			Limit: 4096,
			Stats: map[string]uint64{"cache": 1024},
		}
		stats.Networks = map[string]container.NetworkStats{
			"eth0": {RxBytes: 1, TxBytes: 2},
			"eth1": {RxBytes: 3, TxBytes: 4},
		}
		snap = snapshot(stats)
		Expect(snap.CPU).NotTo(BeNil())
		Expect(snap.CPU.TotalUsage).To(Equal(uint64(100)))
		Expect(snap.CPU.SystemUsage).To(Equal(uint64(1000)))
		Expect(snap.CPU.OnlineCPUs).To(Equal(uint32(2)))
		Expect(snap.CPU.PercpuUsage).To(HaveLen(2))
		Expect(snap.Memory).To(HaveField("Stats", HaveKeyWithValue("cache", uint64(1024))))
		Expect(snap.Networks).To(HaveLen(2))
		Expect(snap.Networks).To(HaveKeyWithValue("eth1", HaveField("TxBytes", uint64(4))))
	})

})
