// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

// Package config loads and validates the YAML configuration of the hosts to
// be supervised, as well as of the publishers.
//
// An example configuration:
//
//	hosts:
//	  - name: local
//	    url: unix:///run/docker.sock
//	    interval: 10s
//	    retry: 5
//	    retrydelay: 30s
//	    exclude: [ "watchtower" ]
//	    rename:
//	      homeassistant: HA
//	    precision:
//	      cpu: 1
//	publishers:
//	  log: true
//	  prometheus: ":9323"
package config

import (
	"time"

	"github.com/siemens/dockermon"
	"github.com/siemens/dockermon/engine"
	"golang.org/x/exp/slices"
)

// Defaults for optional host settings.
const (
	DefaultURL   = "unix:///var/run/docker.sock"
	DefaultRetry = 5
)

// Config is the complete configuration.
type Config struct {
	Hosts      []Host     `yaml:"hosts"`
	Publishers Publishers `yaml:"publishers"`
}

// Host is the configuration of a single host, that is, container engine.
type Host struct {
	Name       string            `yaml:"name"`
	URL        string            `yaml:"url,omitempty"`
	CertPath   string            `yaml:"certpath,omitempty"`
	Root       string            `yaml:"root,omitempty"`
	Interval   time.Duration     `yaml:"interval,omitempty"`
	Retry      *int              `yaml:"retry,omitempty"`
	RetryDelay time.Duration     `yaml:"retrydelay,omitempty"`
	Containers []string          `yaml:"containers,omitempty"`
	Exclude    []string          `yaml:"exclude,omitempty"`
	Rename     map[string]string `yaml:"rename,omitempty"`
	Precision  Precision         `yaml:"precision,omitempty"`
}

// Precision optionally overrides the number of decimals of individual gauges;
// unset gauges use [dockermon.DefaultPrecision].
type Precision struct {
	CPU           *int `yaml:"cpu,omitempty"`
	MemoryMB      *int `yaml:"memory_mb,omitempty"`
	MemoryPercent *int `yaml:"memory_percent,omitempty"`
	NetworkKB     *int `yaml:"network_kb,omitempty"`
	NetworkMB     *int `yaml:"network_mb,omitempty"`
}

// Publishers configures where container states and gauges get published to.
type Publishers struct {
	Log        bool   `yaml:"log"`                  // periodically log container states.
	Prometheus string `yaml:"prometheus,omitempty"` // listen address of the /metrics endpoint, if any.
}

// Visible returns true if the named container is to be published, according
// to the include and exclude lists of this host.
func (h Host) Visible(name string) bool {
	if len(h.Containers) > 0 && !slices.Contains(h.Containers, name) {
		return false
	}
	return !slices.Contains(h.Exclude, name)
}

// DisplayName returns the name under which the named container is to be
// published.
func (h Host) DisplayName(name string) string {
	if rename, ok := h.Rename[name]; ok && rename != "" {
		return rename
	}
	return name
}

// HostConfig returns the registry configuration of this host.
func (h Host) HostConfig() dockermon.HostConfig {
	retry := DefaultRetry
	if h.Retry != nil {
		retry = *h.Retry
	}
	return dockermon.HostConfig{
		Name: h.Name,
		Endpoint: engine.Endpoint{
			URL:      h.URL,
			CertPath: h.CertPath,
			Root:     h.Root,
		},
		Interval:   h.Interval,
		Retry:      retry,
		RetryDelay: h.RetryDelay,
		Precision:  h.Precision.resolve(),
	}
}

// HostConfigs returns the registry configurations of all hosts.
func (c *Config) HostConfigs() []dockermon.HostConfig {
	cfgs := make([]dockermon.HostConfig, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		cfgs = append(cfgs, h.HostConfig())
	}
	return cfgs
}

// Host returns the configuration of the named host.
func (c *Config) Host(name string) (Host, bool) {
	idx := slices.IndexFunc(c.Hosts, func(h Host) bool { return h.Name == name })
	if idx < 0 {
		return Host{}, false
	}
	return c.Hosts[idx], true
}

func (p Precision) resolve() *dockermon.Precision {
	decimals := func(d *int) int {
		if d == nil {
			return dockermon.DefaultPrecision
		}
		return *d
	}
	return &dockermon.Precision{
		CPU:           decimals(p.CPU),
		MemoryMB:      decimals(p.MemoryMB),
		MemoryPercent: decimals(p.MemoryPercent),
		NetworkKB:     decimals(p.NetworkKB),
		NetworkMB:     decimals(p.NetworkMB),
	}
}
