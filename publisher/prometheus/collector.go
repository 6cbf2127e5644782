// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

// Package prometheus publishes the supervised hosts and their containers as
// Prometheus metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/siemens/dockermon"
)

// Namespace of all metrics published.
const Namespace = "dockermon"

// Source of the hosts to be published; see [dockermon.Registry].
type Source interface {
	Hosts() []string
	Host(name string) (*dockermon.Host, bool)
}

// Filter decides whether a container of a host is to be published and under
// which name.
type Filter func(host, container string) (name string, ok bool)

// Option represents options to NewCollector.
type Option func(*Collector)

// WithFilter sets the filter for deciding which containers get published.
func WithFilter(f Filter) Option {
	return func(c *Collector) {
		c.filter = f
	}
}

// Collector is a prometheus.Collector that reports the current states and
// gauges of the hosts and containers of a Source upon each scrape.
type Collector struct {
	source Source
	filter Filter

	hostUp                *prometheus.Desc
	hostInfo              *prometheus.Desc
	hostContainers        *prometheus.Desc
	hostContainersRunning *prometheus.Desc
	hostCPUPercent        *prometheus.Desc
	hostMemoryMB          *prometheus.Desc
	hostMemoryPercent     *prometheus.Desc

	containerInfo    *prometheus.Desc
	containerUp      *prometheus.Desc
	containerStarted *prometheus.Desc
	containerGauges  []containerGauge
}

// containerGauge describes an optional container gauge together with how to
// get its current value, if known.
type containerGauge struct {
	desc  *prometheus.Desc
	value func(dockermon.DerivedStats) *float64
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a new Collector for the specified source.
func NewCollector(source Source, opts ...Option) *Collector {
	hostLabels := []string{"host"}
	containerLabels := []string{"host", "container"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", name), help, labels, nil)
	}
	c := &Collector{
		source: source,
		filter: func(_, container string) (string, bool) { return container, true },

		hostUp:                desc("host_up", "Whether the container engine of a host is connected", hostLabels),
		hostInfo:              desc("host_info", "Container engine metadata", []string{"host", "version", "api_version", "os", "os_type", "architecture", "kernel_version"}),
		hostContainers:        desc("host_containers", "Number of containers of a host, regardless of their state", hostLabels),
		hostContainersRunning: desc("host_containers_running", "Number of running containers of a host", hostLabels),
		hostCPUPercent:        desc("host_cpu_percent", "CPU utilization of all running containers of a host", hostLabels),
		hostMemoryMB:          desc("host_memory_mb", "Memory usage of all running containers of a host in MiB", hostLabels),
		hostMemoryPercent:     desc("host_memory_percent", "Memory usage of all running containers of a host relative to their limits", hostLabels),

		containerInfo:    desc("container_info", "Container metadata and lifecycle state", []string{"host", "container", "id", "image", "state"}),
		containerUp:      desc("container_up", "Whether a container is running", containerLabels),
		containerStarted: desc("container_start_time_seconds", "Start time of a running or paused container since the Unix epoch", containerLabels),
	}
	for _, g := range []struct {
		name  string
		help  string
		value func(dockermon.DerivedStats) *float64
	}{
		{"container_cpu_percent", "CPU utilization of a container", func(s dockermon.DerivedStats) *float64 { return s.CPUPercent }},
		{"container_memory_mb", "Memory usage of a container without page cache in MiB", func(s dockermon.DerivedStats) *float64 { return s.MemoryMB }},
		{"container_memory_limit_mb", "Memory limit of a container in MiB", func(s dockermon.DerivedStats) *float64 { return s.MemoryLimitMB }},
		{"container_memory_max_usage_mb", "Maximum memory usage of a container in MiB", func(s dockermon.DerivedStats) *float64 { return s.MemoryMaxUsageMB }},
		{"container_memory_percent", "Memory usage of a container relative to its limit", func(s dockermon.DerivedStats) *float64 { return s.MemoryPercent }},
		{"container_network_speed_up_kb", "Transmit speed of a container in KiB/s", func(s dockermon.DerivedStats) *float64 { return s.NetworkSpeedUpKB }},
		{"container_network_speed_down_kb", "Receive speed of a container in KiB/s", func(s dockermon.DerivedStats) *float64 { return s.NetworkSpeedDownKB }},
		{"container_network_total_up_mb", "Total transmitted data of a container in MiB", func(s dockermon.DerivedStats) *float64 { return s.NetworkTotalUpMB }},
		{"container_network_total_down_mb", "Total received data of a container in MiB", func(s dockermon.DerivedStats) *float64 { return s.NetworkTotalDownMB }},
	} {
		c.containerGauges = append(c.containerGauges, containerGauge{
			desc:  desc(g.name, g.help, containerLabels),
			value: g.value,
		})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Describe sends the descriptors of all metrics this collector might report.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.hostUp, c.hostInfo, c.hostContainers, c.hostContainersRunning,
		c.hostCPUPercent, c.hostMemoryMB, c.hostMemoryPercent,
		c.containerInfo, c.containerUp, c.containerStarted,
	} {
		ch <- d
	}
	for _, g := range c.containerGauges {
		ch <- g.desc
	}
}

// Collect sends the current metrics of all hosts and their published
// containers. Gauges that are currently unknown are left out.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.source.Hosts() {
		host, ok := c.source.Host(name)
		if !ok {
			ch <- prometheus.MustNewConstMetric(c.hostUp, prometheus.GaugeValue, 0, name)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.hostUp, prometheus.GaugeValue, 1, name)
		c.collectHost(ch, host)
		for _, cname := range host.Containers() {
			m, ok := host.Lookup(cname)
			if !ok {
				continue
			}
			display, ok := c.filter(name, cname)
			if !ok {
				continue
			}
			c.collectContainer(ch, name, display, m)
		}
	}
}

func (c *Collector) collectHost(ch chan<- prometheus.Metric, host *dockermon.Host) {
	info := host.Info()
	if info.Updated.IsZero() {
		return
	}
	name := host.Name()
	ch <- prometheus.MustNewConstMetric(c.hostInfo, prometheus.GaugeValue, 1,
		name, info.Version, info.APIVersion, info.OperatingSystem, info.OSType,
		info.Architecture, info.KernelVersion)
	ch <- prometheus.MustNewConstMetric(c.hostContainers, prometheus.GaugeValue,
		float64(info.Containers), name)
	ch <- prometheus.MustNewConstMetric(c.hostContainersRunning, prometheus.GaugeValue,
		float64(info.ContainersRunning), name)
	for _, g := range []struct {
		desc  *prometheus.Desc
		value *float64
	}{
		{c.hostCPUPercent, info.CPUPercent},
		{c.hostMemoryMB, info.MemoryMB},
		{c.hostMemoryPercent, info.MemoryPercent},
	} {
		if g.value != nil {
			ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, *g.value, name)
		}
	}
}

func (c *Collector) collectContainer(ch chan<- prometheus.Metric, host, name string, m *dockermon.ContainerMonitor) {
	info := m.Info()
	if !info.Observed {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.containerInfo, prometheus.GaugeValue, 1,
		host, name, info.ID, info.Image, string(info.State))
	up := 0.0
	if info.State == dockermon.StateRunning {
		up = 1
	}
	ch <- prometheus.MustNewConstMetric(c.containerUp, prometheus.GaugeValue, up, host, name)
	if !info.Uptime.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.containerStarted, prometheus.GaugeValue,
			float64(info.Uptime.Unix()), host, name)
	}
	stats := m.Stats()
	for _, g := range c.containerGauges {
		if v := g.value(stats); v != nil {
			ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, *v, host, name)
		}
	}
}
