// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

// Package fakeengine provides a programmable in-memory container engine for
// testing container supervision without a real container engine.
package fakeengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siemens/dockermon/engine"
)

// Engine is a fake container engine. Its zero value isn't usable; use New
// instead.
type Engine struct {
	mu         sync.Mutex
	containers map[string]*Container
	order      []string
	subs       []*subscription
	version    engine.Version
	info       engine.SystemInfo
	versionErr error
	listErr    error
	infoErr    error
	closed     atomic.Bool
	nextID     int
}

var _ engine.Engine = (*Engine)(nil)

type subscription struct {
	events chan engine.Event
	errs   chan error
	once   sync.Once
}

func (s *subscription) end(err error) {
	s.once.Do(func() {
		if err != nil {
			s.errs <- err
		}
		close(s.events)
	})
}

// New returns a new fake engine without any containers.
func New() *Engine {
	return &Engine{
		containers: map[string]*Container{},
		version: engine.Version{
			Version:    "28.5.2",
			APIVersion: "1.51",
			OS:         "linux",
			Arch:       "amd64",
		},
		info: engine.SystemInfo{
			ServerVersion:   "28.5.2",
			MemTotal:        16 << 30,
			NCPU:            4,
			OperatingSystem: "Fake Linux",
			OSType:          "linux",
			Architecture:    "x86_64",
			KernelVersion:   "6.6.6",
		},
	}
}

// Add adds a new container in the specified state, without emitting any
// event.
func (e *Engine) Add(name string, status string) *Container {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	c := &Container{
		engine: e,
		name:   name,
		insp: engine.Inspection{
			ID:      fmt.Sprintf("%064x", e.nextID),
			Image:   "busybox:latest",
			Status:  status,
			Created: time.Now().Add(-time.Hour),
		},
	}
	if status == "running" || status == "paused" {
		c.insp.StartedAt = time.Now().Add(-time.Minute)
	}
	e.containers[name] = c
	e.order = append(e.order, name)
	return c
}

// Create adds a new container in "created" state and emits a create event.
func (e *Engine) Create(name string) *Container {
	c := e.Add(name, "created")
	e.Emit(engine.Event{
		Type:   engine.ContainerEvent,
		Action: engine.ActionCreate,
		ID:     c.ID(),
		Name:   name,
		Time:   time.Now(),
	})
	return c
}

// Remove removes the named container without emitting any event.
func (e *Engine) Remove(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.containers, name)
	for idx, n := range e.order {
		if n == name {
			e.order = append(e.order[:idx], e.order[idx+1:]...)
			break
		}
	}
}

// Destroy removes the named container and emits a destroy event.
func (e *Engine) Destroy(name string) {
	e.Remove(name)
	e.Emit(engine.Event{
		Type:   engine.ContainerEvent,
		Action: engine.ActionDestroy,
		Name:   name,
		Time:   time.Now(),
	})
}

// Emit sends the event to all event stream subscribers.
func (e *Engine) Emit(ev engine.Event) {
	e.mu.Lock()
	subs := append([]*subscription(nil), e.subs...)
	e.mu.Unlock()
	for _, sub := range subs {
		func() {
			defer func() { _ = recover() }() // subscription ended meanwhile.
			sub.events <- ev
		}()
	}
}

// EndStream ends all current event stream subscriptions, optionally reporting
// the specified error first.
func (e *Engine) EndStream(err error) {
	e.mu.Lock()
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()
	for _, sub := range subs {
		sub.end(err)
	}
}

// Subscribers returns the number of current event stream subscriptions.
func (e *Engine) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// FailVersion lets Version fail with the specified error; nil clears.
func (e *Engine) FailVersion(err error) { e.mu.Lock(); e.versionErr = err; e.mu.Unlock() }

// FailList lets List fail with the specified error; nil clears.
func (e *Engine) FailList(err error) { e.mu.Lock(); e.listErr = err; e.mu.Unlock() }

// FailInfo lets Info fail with the specified error; nil clears.
func (e *Engine) FailInfo(err error) { e.mu.Lock(); e.infoErr = err; e.mu.Unlock() }

// IsClosed returns true after Close has been called.
func (e *Engine) IsClosed() bool { return e.closed.Load() }

// Version returns the fake engine version.
func (e *Engine) Version(ctx context.Context) (engine.Version, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version, e.versionErr
}

// Info returns the fake system information, with the container counts
// reflecting the current containers.
func (e *Engine) Info(ctx context.Context) (engine.SystemInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.infoErr != nil {
		return engine.SystemInfo{}, e.infoErr
	}
	info := e.info
	info.Containers = len(e.containers)
	for _, c := range e.containers {
		if c.Inspection().Status == "running" {
			info.ContainersRunning++
		}
	}
	return info, nil
}

// List returns the current containers in the order they were added.
func (e *Engine) List(ctx context.Context) ([]engine.ContainerRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listErr != nil {
		return nil, e.listErr
	}
	refs := make([]engine.ContainerRef, 0, len(e.order))
	for _, name := range e.order {
		refs = append(refs, engine.ContainerRef{ID: e.containers[name].insp.ID, Name: name})
	}
	return refs, nil
}

// Container returns the named container.
func (e *Engine) Container(ctx context.Context, name string) (engine.Container, error) {
	c, ok := e.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrNotFound, name)
	}
	return c, nil
}

// Lookup returns the named fake container, if present.
func (e *Engine) Lookup(name string) (*Container, bool) {
	return e.lookup(name)
}

func (e *Engine) lookup(name string) (*Container, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.containers[name]
	return c, ok
}

// Events subscribes to the fake event stream; the subscription ends when the
// context is done or when EndStream is called.
func (e *Engine) Events(ctx context.Context) (<-chan engine.Event, <-chan error) {
	sub := &subscription{
		events: make(chan engine.Event, 16),
		errs:   make(chan error, 1),
	}
	e.mu.Lock()
	e.subs = append(e.subs, sub)
	e.mu.Unlock()
	go func() {
		<-ctx.Done()
		e.mu.Lock()
		for idx, s := range e.subs {
			if s == sub {
				e.subs = append(e.subs[:idx], e.subs[idx+1:]...)
				break
			}
		}
		e.mu.Unlock()
		sub.end(nil)
	}()
	return sub.events, sub.errs
}

// Close marks the fake engine as closed.
func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

// Container is a fake container.
type Container struct {
	engine *Engine

	mu         sync.Mutex
	name       string
	insp       engine.Inspection
	stats      engine.Stats
	inspectErr error
	statsErr   error
	commandErr error
	gate       chan struct{}

	inspects atomic.Int64
	statss   atomic.Int64
	starts   atomic.Int64
	stops    atomic.Int64
	restarts atomic.Int64
	grace    atomic.Int64
}

var _ engine.Container = (*Container)(nil)

// ID returns the container's ID.
func (c *Container) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insp.ID
}

// Name returns the container's name.
func (c *Container) Name() string { return c.name }

// Inspection returns the current inspection result.
func (c *Container) Inspection() engine.Inspection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insp
}

// SetInspection modifies the inspection result.
func (c *Container) SetInspection(fn func(insp *engine.Inspection)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.insp)
}

// SetStats sets the stats snapshot to be returned next.
func (c *Container) SetStats(stats engine.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
}

// FailInspect lets Inspect fail with the specified error; nil clears.
func (c *Container) FailInspect(err error) { c.mu.Lock(); c.inspectErr = err; c.mu.Unlock() }

// FailStats lets Stats fail with the specified error; nil clears.
func (c *Container) FailStats(err error) { c.mu.Lock(); c.statsErr = err; c.mu.Unlock() }

// FailCommands lets Start, Stop and Restart fail with the specified error;
// nil clears.
func (c *Container) FailCommands(err error) { c.mu.Lock(); c.commandErr = err; c.mu.Unlock() }

// Gate makes Start and Stop block until the returned function gets called.
func (c *Container) Gate() (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.gate = gate
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.gate = nil
			c.mu.Unlock()
			close(gate)
		})
	}
}

// Inspects returns the number of Inspect calls so far.
func (c *Container) Inspects() int64 { return c.inspects.Load() }

// StatsCalls returns the number of Stats calls so far.
func (c *Container) StatsCalls() int64 { return c.statss.Load() }

// Starts returns the number of Start calls so far.
func (c *Container) Starts() int64 { return c.starts.Load() }

// Stops returns the number of Stop calls so far.
func (c *Container) Stops() int64 { return c.stops.Load() }

// Restarts returns the number of Restart calls so far.
func (c *Container) Restarts() int64 { return c.restarts.Load() }

// Grace returns the grace period passed to the last Stop call.
func (c *Container) Grace() time.Duration { return time.Duration(c.grace.Load()) }

func (c *Container) present() bool {
	cc, ok := c.engine.lookup(c.name)
	return ok && cc == c
}

// Inspect returns the current inspection result.
func (c *Container) Inspect(ctx context.Context) (engine.Inspection, error) {
	c.inspects.Add(1)
	if !c.present() {
		return engine.Inspection{}, fmt.Errorf("%w: %s", engine.ErrNotFound, c.name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insp, c.inspectErr
}

// Stats returns the current stats snapshot.
func (c *Container) Stats(ctx context.Context) (engine.Stats, error) {
	c.statss.Add(1)
	if !c.present() {
		return engine.Stats{}, fmt.Errorf("%w: %s", engine.ErrNotFound, c.name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats, c.statsErr
}

// wait blocks on the command gate, if any.
func (c *Container) wait(ctx context.Context) error {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transition sets the container's status unless commands are set to fail.
func (c *Container) transition(status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commandErr != nil {
		return c.commandErr
	}
	now := time.Now()
	c.insp.Status = status
	switch status {
	case "running":
		c.insp.StartedAt = now
	case "exited":
		c.insp.FinishedAt = now
	}
	return nil
}

// Start "starts" the container.
func (c *Container) Start(ctx context.Context) error {
	c.starts.Add(1)
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.transition("running")
}

// Stop "stops" the container.
func (c *Container) Stop(ctx context.Context, grace time.Duration) error {
	c.stops.Add(1)
	c.grace.Store(int64(grace))
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.transition("exited")
}

// Restart "restarts" the container.
func (c *Container) Restart(ctx context.Context) error {
	c.restarts.Add(1)
	return c.transition("running")
}
