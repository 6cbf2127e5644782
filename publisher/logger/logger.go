// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

// Package logger publishes container state transitions to the log.
package logger

import (
	"sync"

	"github.com/siemens/dockermon"
	"github.com/thediveo/lxkns/log"
)

// Filter decides whether a container of a host is to be published and under
// which name.
type Filter func(host, container string) (name string, ok bool)

// Publisher logs the state transitions of the containers on all hosts it gets
// attached to. A Publisher is attached to hosts by passing it as
// [dockermon.WithEntityObserver] when connecting them.
type Publisher struct {
	filter Filter

	mu     sync.Mutex
	states map[*dockermon.ContainerMonitor]dockermon.ContainerState
}

var (
	_ dockermon.EntityObserver = (*Publisher)(nil)
	_ dockermon.Observer       = (*Publisher)(nil)
)

// New returns a new log Publisher. A nil filter publishes all containers under
// their own names.
func New(filter Filter) *Publisher {
	if filter == nil {
		filter = func(_, container string) (string, bool) { return container, true }
	}
	return &Publisher{
		filter: filter,
		states: map[*dockermon.ContainerMonitor]dockermon.ContainerState{},
	}
}

// EntitiesAdded subscribes to all containers of a newly connected host, or to
// a newly created container.
func (p *Publisher) EntitiesAdded(host *dockermon.Host, container string) {
	if container == "" {
		info := host.Info()
		log.Infof("host %s: connected to engine %s (API %s)",
			host.Name(), info.Version, info.APIVersion)
		for _, name := range host.Containers() {
			p.subscribe(host, name)
		}
		return
	}
	p.subscribe(host, container)
}

func (p *Publisher) subscribe(host *dockermon.Host, container string) {
	if _, ok := p.filter(host.Name(), container); !ok {
		return
	}
	m, ok := host.Lookup(container)
	if !ok {
		return
	}
	m.RegisterCallback(p)
	p.ContainerChanged(m)
}

// ContainerChanged logs the container's state if it differs from the last
// state logged.
func (p *Publisher) ContainerChanged(m *dockermon.ContainerMonitor) {
	info := m.Info()
	if !info.Observed {
		return
	}
	p.mu.Lock()
	last, seen := p.states[m]
	p.states[m] = info.State
	p.mu.Unlock()
	if seen && last == info.State {
		return
	}
	name, _ := p.filter(m.Host(), m.Name())
	log.Infof("host %s: container %s is %s: %s", m.Host(), name, info.State, info.Status)
}

// ContainerRemoved logs the container's removal.
func (p *Publisher) ContainerRemoved(m *dockermon.ContainerMonitor) {
	p.mu.Lock()
	delete(p.states, m)
	p.mu.Unlock()
	name, _ := p.filter(m.Host(), m.Name())
	log.Infof("host %s: container %s removed", m.Host(), name)
}
