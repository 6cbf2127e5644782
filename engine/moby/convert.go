// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package moby

import (
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/siemens/dockermon/engine"
)

// inspection converts the Docker-specific container details into our
// engine-neutral inspection information. Docker reports unset timestamps as
// "0001-01-01T00:00:00Z" which nicely maps onto the zero time.Time.
func inspection(details container.InspectResponse) engine.Inspection {
	insp := engine.Inspection{}
	if details.Config != nil {
		insp.Image = details.Config.Image
	}
	if details.ContainerJSONBase == nil {
		return insp
	}
	insp.ID = details.ID
	insp.Created = parseTime(details.Created)
	if details.State != nil {
		insp.Status = string(details.State.Status)
		insp.StartedAt = parseTime(details.State.StartedAt)
		insp.FinishedAt = parseTime(details.State.FinishedAt)
		insp.ExitCode = details.State.ExitCode
	}
	if details.HostConfig != nil {
		insp.NetworkMode = string(details.HostConfig.NetworkMode)
	}
	return insp
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// snapshot converts a Docker stats response into an engine stats snapshot.
// Docker on Windows doesn't report the system CPU usage and an engine might
// not report any networks at all, so we leave out what's missing in order to
// allow the supervision to tell apart “missing” from “zero”.
func snapshot(stats *container.StatsResponse) engine.Stats {
	snap := engine.Stats{
		Read: stats.Read,
	}
	if stats.CPUStats.SystemUsage != 0 || stats.CPUStats.CPUUsage.TotalUsage != 0 {
		snap.CPU = &engine.CPUStats{
			TotalUsage:  stats.CPUStats.CPUUsage.TotalUsage,
			SystemUsage: stats.CPUStats.SystemUsage,
			OnlineCPUs:  stats.CPUStats.OnlineCPUs,
			PercpuUsage: stats.CPUStats.CPUUsage.PercpuUsage,
		}
	}
	if stats.MemoryStats.Limit != 0 || stats.MemoryStats.Usage != 0 || stats.MemoryStats.Stats != nil {
		snap.Memory = &engine.MemoryStats{
			Usage:    stats.MemoryStats.Usage,
			MaxUsage: stats.MemoryStats.MaxUsage,
			Limit:    stats.MemoryStats.Limit,
			Stats:    stats.MemoryStats.Stats,
		}
	}
	if stats.Networks != nil {
		snap.Networks = make(map[string]engine.NetworkStats, len(stats.Networks))
		for ifname, netstats := range stats.Networks {
			snap.Networks[ifname] = engine.NetworkStats{
				RxBytes: netstats.RxBytes,
				TxBytes: netstats.TxBytes,
			}
		}
	}
	return snap
}
