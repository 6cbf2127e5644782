// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/siemens/dockermon/engine"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/semaphore"
)

// Defaults for connecting hosts.
const (
	DefaultInterval          = 10 * time.Second
	DefaultGettingOnlineWait = 2 * time.Second
	DefaultSettleWait        = 1 * time.Second
	DefaultStopGrace         = 10 * time.Second
)

// HostInfo describes a host's container engine together with the aggregated
// resource usage of its running containers. The aggregates are nil as long as
// no running container contributed a known value.
type HostInfo struct {
	Name              string
	Version           string
	APIVersion        string
	Containers        int
	ContainersRunning int
	MemTotal          int64 // bytes
	NCPU              int
	OperatingSystem   string
	OSType            string
	Architecture      string
	KernelVersion     string

	CPUPercent    *float64
	MemoryMB      *float64
	MemoryPercent *float64

	Updated time.Time // zero until the first refresh.
}

// Host supervises the containers of a single container engine: it keeps one
// ContainerMonitor per container, attaching and detaching monitors as the
// engine reports containers to be created and destroyed. Additionally, it
// periodically refreshes the engine information, aggregating the resource
// usage of all running containers.
//
// A Host terminates when it gets closed, when its context gets cancelled, or
// when either the engine's event stream or the information refresh fails. A
// Host never reconnects by itself; use Done and Err to learn about its
// termination and then connect anew.
type Host struct {
	name       string
	eng        engine.Engine
	interval   time.Duration
	numworkers int
	onlinewait time.Duration
	settlewait time.Duration
	stopgrace  time.Duration
	prec       Precision
	observer   EntityObserver
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // loops and container monitors.
	done   chan struct{}

	errmu      sync.Mutex
	err        error
	terminated bool

	mu       sync.Mutex // protects the following fields.
	monitors map[string]*ContainerMonitor
	closing  bool
	info     HostInfo
}

// Connect starts supervising the containers of the specified container
// engine, using name as the unique name of this host. Connect takes ownership
// of the engine session: it closes the session when failing or when the host
// terminates. The specified context controls the lifetime of the host.
//
// Connect attaches to all containers present, regardless of their state,
// and waits a short time for their first observations (see
// [WithGettingOnlineWait]). Failing to list the containers is fatal and
// returns a [ConnectError].
func Connect(ctx context.Context, name string, eng engine.Engine, opts ...ConnectOption) (*Host, error) {
	h := &Host{
		name:       name,
		eng:        eng,
		interval:   DefaultInterval,
		onlinewait: DefaultGettingOnlineWait,
		settlewait: DefaultSettleWait,
		stopgrace:  DefaultStopGrace,
		prec:       DefaultPrecisions(),
		now:        time.Now,
		done:       make(chan struct{}),
		monitors:   map[string]*ContainerMonitor{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.interval <= 0 {
		h.interval = DefaultInterval
	}
	if h.numworkers <= 0 {
		h.numworkers = runtime.GOMAXPROCS(0)
	}
	h.info.Name = name
	h.ctx, h.cancel = context.WithCancel(ctx)

	if v, err := eng.Version(h.ctx); err != nil {
		log.Warnf("host %s: cannot determine engine version, reason: %s", name, err.Error())
	} else {
		log.Infof("host %s: engine version %s, API version %s, %s/%s",
			name, v.Version, v.APIVersion, v.OS, v.Arch)
		h.info.Version = v.Version
		h.info.APIVersion = v.APIVersion
	}

	// Subscribe to the event stream before listing, so we don't miss any
	// containers created in between. Attaching to an already attached
	// container is harmless.
	events, errs := eng.Events(h.ctx)
	refs, err := eng.List(h.ctx)
	if err != nil {
		h.cancel()
		_ = eng.Close()
		return nil, &ConnectError{Host: name, Err: err}
	}

	// Feel the heat and resolve the containers in parallel, bounded by the
	// number of workers.
	workersem := semaphore.NewWeighted(int64(h.numworkers))
	var resolved sync.WaitGroup
	for _, ref := range refs {
		if err := workersem.Acquire(h.ctx, 1); err != nil {
			break
		}
		resolved.Add(1)
		go func(name string) {
			defer resolved.Done()
			defer workersem.Release(1)
			c, err := eng.Container(h.ctx, name)
			if err != nil {
				log.Errorf("host %s: cannot attach to container %s, reason: %s",
					h.name, name, err.Error())
				return
			}
			h.mu.Lock()
			h.monitors[name] = newMonitor(h, name, c)
			h.mu.Unlock()
		}(ref.Name)
	}
	resolved.Wait()
	if err := h.ctx.Err(); err != nil {
		h.cancel()
		_ = eng.Close()
		return nil, &ConnectError{Host: name, Err: err}
	}

	h.mu.Lock()
	monitors := make([]*ContainerMonitor, 0, len(h.monitors))
	for _, m := range h.monitors {
		monitors = append(monitors, m)
		h.goMonitor(m)
	}
	h.mu.Unlock()
	log.Infof("host %s: attached to %d containers", name, len(monitors))
	awaitOnline(h.ctx, name, monitors, h.onlinewait)

	if h.observer != nil {
		h.observer.EntitiesAdded(h, "")
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		if err := h.eventLoop(h.ctx, events, errs); err != nil {
			h.terminate(err)
		}
	}()
	go func() {
		defer h.wg.Done()
		if err := h.infoLoop(h.ctx); err != nil {
			h.terminate(err)
		}
	}()
	go h.teardown()
	return h, nil
}

// Name returns the unique name of this host.
func (h *Host) Name() string { return h.name }

// Close terminates the supervision of this host and waits for all its
// goroutines to finish. All container monitors notify their observers about
// their removal. Closing a terminated host is a no-op.
func (h *Host) Close() {
	h.terminate(nil)
	<-h.done
}

// Done returns a channel that gets closed after the host has terminated and
// finished its teardown.
func (h *Host) Done() <-chan struct{} { return h.done }

// Err returns the reason for the host's termination, or nil if the host is
// still running, got closed, or its context was cancelled.
func (h *Host) Err() error {
	h.errmu.Lock()
	defer h.errmu.Unlock()
	return h.err
}

// terminate records the first reason for terminating and then cancels the
// host's context, starting the teardown.
func (h *Host) terminate(err error) {
	h.errmu.Lock()
	if !h.terminated {
		h.terminated = true
		h.err = err
	}
	h.errmu.Unlock()
	h.cancel()
}

// teardown waits for the host's context to be done and then winds down all
// container monitors and loops, finally closing the engine session.
func (h *Host) teardown() {
	<-h.ctx.Done()
	h.terminate(nil) // in case of parent context cancellation.
	h.mu.Lock()
	h.closing = true
	monitors := make([]*ContainerMonitor, 0, len(h.monitors))
	for _, m := range h.monitors {
		monitors = append(monitors, m)
	}
	h.mu.Unlock()
	for _, m := range monitors {
		m.Cancel()
		m.NotifyRemoved()
	}
	h.wg.Wait()
	if err := h.eng.Close(); err != nil {
		log.Warnf("host %s: cannot close engine session, reason: %s", h.name, err.Error())
	}
	if err := h.Err(); err != nil {
		log.Errorf("host %s: terminated, reason: %s", h.name, err.Error())
	} else {
		log.Infof("host %s: terminated", h.name)
	}
	close(h.done)
}

// goMonitor starts the poll goroutine of the specified container monitor. The
// caller must hold the host's lock.
func (h *Host) goMonitor(m *ContainerMonitor) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		m.run()
	}()
}

// Attach starts monitoring the named container, resolving the container
// lazily on the monitor's first poll. It returns false if the container is
// already being monitored or the host is terminating.
func (h *Host) Attach(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	if _, ok := h.monitors[name]; ok {
		log.Errorf("host %s: container %s already attached", h.name, name)
		return false
	}
	m := newMonitor(h, name, nil)
	h.monitors[name] = m
	h.goMonitor(m)
	log.Infof("host %s: attached to container %s", h.name, name)
	return true
}

// Detach stops monitoring the named container, notifying the observers of its
// monitor about the removal. Detach waits a short time (see [WithSettleWait])
// for the monitor's poll goroutine to terminate before dropping the monitor.
// It returns false if the container isn't monitored.
func (h *Host) Detach(name string) bool {
	h.mu.Lock()
	m, ok := h.monitors[name]
	h.mu.Unlock()
	if !ok {
		log.Errorf("host %s: container %s not attached", h.name, name)
		return false
	}
	m.Cancel()
	m.NotifyRemoved()
	wecker := time.NewTimer(h.settlewait)
	select {
	case <-m.Done():
		wecker.Stop()
	case <-wecker.C:
		log.Warnf("host %s: monitor of container %s not yet settled ... dropping anyway",
			h.name, name)
	}
	h.mu.Lock()
	if h.monitors[name] == m {
		delete(h.monitors, name)
	}
	h.mu.Unlock()
	log.Infof("host %s: detached from container %s", h.name, name)
	return true
}

// Containers returns the sorted names of all containers monitored.
func (h *Host) Containers() []string {
	h.mu.Lock()
	names := make([]string, 0, len(h.monitors))
	for name := range h.monitors {
		names = append(names, name)
	}
	h.mu.Unlock()
	slices.Sort(names)
	return names
}

// Container returns the monitor of the named container, if any, logging an
// error otherwise.
func (h *Host) Container(name string) (*ContainerMonitor, bool) {
	m, ok := h.Lookup(name)
	if !ok {
		log.Errorf("host %s: container %s not found", h.name, name)
	}
	return m, ok
}

// Lookup returns the monitor of the named container, if any. Unlike
// Container, Lookup keeps quiet about missing containers, as these are
// expected when iterating over Containers while containers get destroyed.
func (h *Host) Lookup(name string) (*ContainerMonitor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.monitors[name]
	return m, ok
}

// Info returns the last refreshed host information.
func (h *Host) Info() HostInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info
}

// lifecycleEvent identifies engine events by their type and action.
type lifecycleEvent struct {
	typ    string
	action string
}

// lifecycleActions maps engine events onto their handlers; events not listed
// are ignored.
var lifecycleActions = map[lifecycleEvent]func(h *Host, name string){
	{engine.ContainerEvent, engine.ActionCreate}:  (*Host).created,
	{engine.ContainerEvent, engine.ActionDestroy}: (*Host).destroyed,
}

func (h *Host) created(name string) {
	if h.Attach(name) && h.observer != nil {
		h.observer.EntitiesAdded(h, name)
	}
}

func (h *Host) destroyed(name string) {
	h.Detach(name)
}

// eventLoop dispatches the engine events until the context is done or the
// event stream ends. An ending event stream is reported as an error wrapping
// ErrStreamEnd.
func (h *Host) eventLoop(ctx context.Context, events <-chan engine.Event, errs <-chan error) error {
	log.Debugf("host %s: listening to engine events", h.name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok || err == nil {
				errs = nil
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrStreamEnd, err)
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				select {
				case err := <-errs:
					if err != nil {
						return fmt.Errorf("%w: %w", ErrStreamEnd, err)
					}
				default:
				}
				return ErrStreamEnd
			}
			handler, ok := lifecycleActions[lifecycleEvent{ev.Type, ev.Action}]
			if !ok {
				continue
			}
			if ev.Name == "" {
				log.Warnf("host %s: ignoring %s %s event for unnamed %s",
					h.name, ev.Type, ev.Action, ev.ID)
				continue
			}
			log.Debugf("host %s: %s %s %s", h.name, ev.Type, ev.Action, ev.Name)
			handler(h, ev.Name)
		}
	}
}

// infoLoop refreshes the host information immediately and then every
// interval, until the context is done or refreshing fails.
func (h *Host) infoLoop(ctx context.Context) error {
	wecker := time.NewTimer(h.interval)
	defer wecker.Stop()
	for {
		if err := h.refreshInfo(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("host %s: cannot refresh engine information: %w", h.name, err)
		}
		wecker.Reset(h.interval)
		select {
		case <-ctx.Done():
			return nil
		case <-wecker.C:
		}
	}
}

// refreshInfo fetches the engine information and aggregates the resource
// usage of all running containers.
func (h *Host) refreshInfo(ctx context.Context) error {
	sysinfo, err := h.eng.Info(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	monitors := make([]*ContainerMonitor, 0, len(h.monitors))
	for _, m := range h.monitors {
		monitors = append(monitors, m)
	}
	h.mu.Unlock()

	var cpu, mem, memperc aggregate
	for _, m := range monitors {
		if m.Info().State != StateRunning {
			continue
		}
		stats := m.Stats()
		cpu.add(stats.CPUPercent)
		mem.add(stats.MemoryMB)
		memperc.add(stats.MemoryPercent)
	}

	h.mu.Lock()
	info := h.info
	info.Containers = sysinfo.Containers
	info.ContainersRunning = sysinfo.ContainersRunning
	info.MemTotal = sysinfo.MemTotal
	info.NCPU = sysinfo.NCPU
	info.OperatingSystem = sysinfo.OperatingSystem
	info.OSType = sysinfo.OSType
	info.Architecture = sysinfo.Architecture
	info.KernelVersion = sysinfo.KernelVersion
	if info.Version == "" {
		info.Version = sysinfo.ServerVersion
	}
	info.CPUPercent = cpu.gauge(h.prec.CPU)
	info.MemoryMB = mem.gauge(h.prec.MemoryMB)
	info.MemoryPercent = memperc.gauge(h.prec.MemoryPercent)
	info.Updated = h.now()
	h.info = info
	h.mu.Unlock()

	log.Debugf("host %s: version %s, containers %d, running %d, CPU %s%%, memory %sMB, %s%%",
		h.name, info.Version, info.Containers, info.ContainersRunning,
		fmtGauge(info.CPUPercent), fmtGauge(info.MemoryMB), fmtGauge(info.MemoryPercent))
	return nil
}

// aggregate sums known gauge values, remembering whether there was any.
type aggregate struct {
	sum   float64
	known bool
}

func (a *aggregate) add(v *float64) {
	if v == nil {
		return
	}
	a.sum += *v
	a.known = true
}

// gauge returns the rounded sum, or nil if no known value was added.
func (a aggregate) gauge(decimals int) *float64 {
	if !a.known {
		return nil
	}
	return gauge(a.sum, decimals)
}
