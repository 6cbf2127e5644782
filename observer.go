// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"github.com/google/uuid"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/exp/slices"
)

// Observer receives notifications about the state of a particular container
// monitor. Observers are called on the monitor's poll goroutine and thus must
// not block for long; they may query the monitor's Info and Stats, but must
// not call NotifyRemoved.
//
// Observers get compared for registration, so implementations should use
// pointer receivers.
type Observer interface {
	// ContainerChanged gets called after each successful poll of the
	// container state and (if alive) its statistics.
	ContainerChanged(m *ContainerMonitor)
	// ContainerRemoved gets called exactly once when the container monitor is
	// being removed; no further notifications follow.
	ContainerRemoved(m *ContainerMonitor)
}

// EntityObserver gets notified about new hosts and containers becoming
// available, so that presentation collaborators can create their entities
// and register their Observers with the new monitors.
type EntityObserver interface {
	// EntitiesAdded gets called with an empty container name when a host has
	// been connected, and with a container name when a new container has been
	// created on the host.
	EntitiesAdded(host *Host, container string)
}

// Subscription represents an Observer registration with a container monitor.
type Subscription struct {
	monitor *ContainerMonitor
	token   uuid.UUID
}

// Unregister removes the registration, so that the Observer won't receive any
// further notifications. Unregistering multiple times is a no-op.
func (s Subscription) Unregister() {
	if s.monitor == nil {
		return
	}
	s.monitor.unregister(s.token)
}

// Token returns the unique token of this subscription.
func (s Subscription) Token() uuid.UUID { return s.token }

type subscriber struct {
	token    uuid.UUID
	observer Observer
}

// RegisterCallback registers the specified Observer with this container
// monitor. Registering the same observer again doesn't add a duplicate
// registration, but instead returns the existing subscription.
func (m *ContainerMonitor) RegisterCallback(obs Observer) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx := slices.IndexFunc(m.subscribers, func(s subscriber) bool {
		return s.observer == obs
	}); idx >= 0 {
		return Subscription{monitor: m, token: m.subscribers[idx].token}
	}
	token := uuid.New()
	m.subscribers = append(m.subscribers, subscriber{token: token, observer: obs})
	return Subscription{monitor: m, token: token}
}

func (m *ContainerMonitor) unregister(token uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = deleteAndZeroFunc(m.subscribers, func(s subscriber) bool {
		return s.token == token
	})
}

// observers returns a snapshot of the currently registered observers.
func (m *ContainerMonitor) observers() []Observer {
	m.mu.Lock()
	defer m.mu.Unlock()
	obs := make([]Observer, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		obs = append(obs, s.observer)
	}
	return obs
}

// notifyChanged notifies all registered observers about a new observation,
// unless the monitor has already been removed.
func (m *ContainerMonitor) notifyChanged() {
	m.notifymu.Lock()
	defer m.notifymu.Unlock()
	if m.removed {
		return
	}
	obs := m.observers()
	if len(obs) > 0 {
		log.Debugf("container %s: notifying %d observers", m.name, len(obs))
	}
	for _, o := range obs {
		o.ContainerChanged(m)
	}
}

// NotifyRemoved notifies all registered observers that this container monitor
// is being removed. Only the first call notifies; any later calls are no-ops
// and no change notifications follow.
func (m *ContainerMonitor) NotifyRemoved() {
	m.notifymu.Lock()
	defer m.notifymu.Unlock()
	if m.removed {
		return
	}
	m.removed = true
	for _, o := range m.observers() {
		o.ContainerRemoved(m)
	}
}
