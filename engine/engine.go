// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that a container isn't known to the container engine
// (anymore).
var ErrNotFound = errors.New("container not found")

// Engine represents a session with a single container engine. Engines can be
// safely used from multiple goroutines.
type Engine interface {
	// Version returns the engine version information.
	Version(ctx context.Context) (Version, error)
	// Info returns system-wide information about the engine and its host.
	Info(ctx context.Context) (SystemInfo, error)
	// List returns all containers, including stopped ones.
	List(ctx context.Context) ([]ContainerRef, error)
	// Container resolves the named container into a handle for further
	// operations; it returns an error wrapping ErrNotFound if there is no such
	// container.
	Container(ctx context.Context, name string) (Container, error)
	// Events subscribes to the engine's container lifecycle events. The event
	// channel gets closed when the stream ends; a new subscription needs to be
	// issued in this case. Any transport error is reported on the error
	// channel, after which the event channel gets closed.
	Events(ctx context.Context) (<-chan Event, <-chan error)
	// Close releases the engine session.
	Close() error
}

// Container is a handle to a particular container of an Engine.
type Container interface {
	// Name returns the container name, without any leading slash.
	Name() string
	// Inspect returns the current state details of the container.
	Inspect(ctx context.Context) (Inspection, error)
	// Stats returns a single, non-streamed snapshot of the container's
	// resource counters.
	Stats(ctx context.Context) (Stats, error)
	// Start starts the container.
	Start(ctx context.Context) error
	// Stop stops the container, giving it the specified grace period before
	// the engine kills it.
	Stop(ctx context.Context, grace time.Duration) error
	// Restart restarts the container.
	Restart(ctx context.Context) error
}

// Version describes the engine software.
type Version struct {
	Version    string
	APIVersion string
	OS         string
	Arch       string
}

// SystemInfo describes the engine host and its aggregate container counts.
type SystemInfo struct {
	ServerVersion     string
	Containers        int
	ContainersRunning int
	MemTotal          int64 // bytes
	NCPU              int
	OperatingSystem   string
	OSType            string
	Architecture      string
	KernelVersion     string
}

// ContainerRef identifies a container as returned by a container listing.
type ContainerRef struct {
	ID   string
	Name string
}

// Inspection describes the state of a container as returned by an inspection.
type Inspection struct {
	ID          string
	Image       string
	Status      string    // raw engine state, such as "running".
	Created     time.Time // creation time.
	StartedAt   time.Time // last start; zero if never started.
	FinishedAt  time.Time // last finish; zero if never finished.
	ExitCode    int
	NetworkMode string
}

// HostNetwork returns true if the container shares the host's network stack.
func (i Inspection) HostNetwork() bool {
	return i.NetworkMode == "host"
}

// Stats is a single resource counter snapshot of a container. Parts of the
// snapshot that the engine didn't report are nil.
type Stats struct {
	Read     time.Time               // sample timestamp as reported by the engine.
	CPU      *CPUStats               // nil if missing.
	Memory   *MemoryStats            // nil if missing.
	Networks map[string]NetworkStats // nil if missing; keyed by interface.
}

// CPUStats are the cumulative CPU counters of a container.
type CPUStats struct {
	TotalUsage  uint64   // total CPU time consumed by the container.
	SystemUsage uint64   // total CPU time of the host.
	OnlineCPUs  uint32   // zero if not reported.
	PercpuUsage []uint64 // per-CPU usage, only reported by older engines.
}

// MemoryStats are the memory counters of a container.
type MemoryStats struct {
	Usage    uint64
	MaxUsage uint64
	Limit    uint64
	Stats    map[string]uint64 // detail counters, such as "cache".
}

// NetworkStats are the cumulative counters of a single network interface.
type NetworkStats struct {
	RxBytes uint64
	TxBytes uint64
}

// Event is a single event from an engine's event stream.
type Event struct {
	Type   string // such as "container".
	Action string // such as "create" or "destroy".
	ID     string // ID of the acting object.
	Name   string // name attribute of the acting object, if any.
	Time   time.Time
}

// Event types and actions the supervision reacts to.
const (
	ContainerEvent = "container"
	ActionCreate   = "create"
	ActionDestroy  = "destroy"
)
