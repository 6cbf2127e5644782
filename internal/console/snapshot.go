// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package console

import (
	"github.com/siemens/dockermon"
)

// Source of the hosts to be shown; see [dockermon.Registry].
type Source interface {
	Hosts() []string
	Host(name string) (*dockermon.Host, bool)
}

// Filter decides whether a container of a host is to be shown and under which
// name.
type Filter func(host, container string) (name string, ok bool)

// HostSnapshot is the state of a host and its shown containers at a
// particular point in time.
type HostSnapshot struct {
	Name       string
	Connected  bool
	Info       dockermon.HostInfo
	Containers []ContainerSnapshot
}

// ContainerSnapshot is the state of a single container at a particular point
// in time.
type ContainerSnapshot struct {
	Host    string
	Name    string // name of the container on its host.
	Display string // name to show.
	Info    dockermon.ContainerInfo
	Stats   dockermon.DerivedStats
}

// Snapshot returns the current states of all hosts of the source, together
// with their containers passing the filter. A nil filter passes all
// containers.
func Snapshot(source Source, filter Filter) []HostSnapshot {
	if filter == nil {
		filter = func(_, container string) (string, bool) { return container, true }
	}
	hosts := []HostSnapshot{}
	for _, name := range source.Hosts() {
		hs := HostSnapshot{Name: name}
		host, ok := source.Host(name)
		if !ok {
			hosts = append(hosts, hs)
			continue
		}
		hs.Connected = true
		hs.Info = host.Info()
		for _, cname := range host.Containers() {
			display, ok := filter(name, cname)
			if !ok {
				continue
			}
			m, ok := host.Lookup(cname)
			if !ok {
				continue
			}
			hs.Containers = append(hs.Containers, ContainerSnapshot{
				Host:    name,
				Name:    cname,
				Display: display,
				Info:    m.Info(),
				Stats:   m.Stats(),
			})
		}
		hosts = append(hosts, hs)
	}
	return hosts
}
