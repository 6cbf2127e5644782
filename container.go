// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siemens/dockermon/engine"
	"github.com/thediveo/lxkns/log"
)

// ContainerInfo describes the last observed state of a container.
type ContainerInfo struct {
	Name        string
	ID          string
	Image       string
	State       ContainerState
	RawState    string    // state as reported by the engine.
	Status      string    // such as “Up 6 days”.
	Uptime      time.Time // start time of running and paused containers, otherwise zero.
	HostNetwork bool      // network statistics aren't available in host network mode.
	Observed    bool      // false until the first successful observation.
}

// ContainerMonitor keeps track of the state and resource usage of a single
// container, polling the container engine in regular intervals on its own
// goroutine. It notifies registered Observers after each poll.
//
// While a start or stop command is in flight the monitor is busy and skips
// polling, so that it doesn't observe (and report) the container in the
// middle of a transition.
type ContainerMonitor struct {
	name      string
	hostname  string
	eng       engine.Engine
	interval  time.Duration
	stopgrace time.Duration
	prec      Precision
	now       func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{} // closed when the poll goroutine has terminated.
	ready     chan struct{} // closed after the first observation.
	readyOnce sync.Once

	inflight atomic.Int32 // number of start/stop commands in flight.

	notifymu sync.Mutex // serializes notifications.
	removed  bool       // protected by notifymu.

	mu          sync.Mutex // protects the following fields.
	handle      engine.Container
	info        ContainerInfo
	stats       DerivedStats
	base        baselines
	subscribers []subscriber
}

// newMonitor returns a new container monitor for the named container on the
// specified host. A nil handle defers resolving the container until the first
// poll.
func newMonitor(h *Host, name string, handle engine.Container) *ContainerMonitor {
	ctx, cancel := context.WithCancel(h.ctx)
	return &ContainerMonitor{
		name:      name,
		hostname:  h.name,
		eng:       h.eng,
		interval:  h.interval,
		stopgrace: h.stopgrace,
		prec:      h.prec,
		now:       h.now,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
		handle:    handle,
		info:      ContainerInfo{Name: name},
	}
}

// Name returns the name of the container monitored.
func (m *ContainerMonitor) Name() string { return m.name }

// Host returns the name of the host the container lives on.
func (m *ContainerMonitor) Host() string { return m.hostname }

// Info returns the last observed container state.
func (m *ContainerMonitor) Info() ContainerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Stats returns the last derived resource usage statistics. The statistics
// are zero before the first observation of an alive container.
func (m *ContainerMonitor) Stats() DerivedStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Busy returns true while a start or stop command is in flight.
func (m *ContainerMonitor) Busy() bool { return m.inflight.Load() > 0 }

// Ready returns a channel that gets closed after the first observation of the
// container, or when the monitor terminated before it could make any
// observation.
func (m *ContainerMonitor) Ready() <-chan struct{} { return m.ready }

// Done returns a channel that gets closed when the poll goroutine has
// terminated.
func (m *ContainerMonitor) Done() <-chan struct{} { return m.done }

// Cancel asks the poll goroutine to terminate, without waiting for it to do
// so; use Done to wait.
func (m *ContainerMonitor) Cancel() { m.cancel() }

// Start starts the container in the background, returning a channel that
// delivers the outcome of the command. The monitor is busy until the engine
// has answered.
func (m *ContainerMonitor) Start(ctx context.Context) <-chan error {
	return m.command(ctx, "start", func(ctx context.Context, c engine.Container) error {
		return c.Start(ctx)
	})
}

// Stop stops the container in the background, returning a channel that
// delivers the outcome of the command. The engine kills the container if it
// doesn't stop within the configured grace period. The monitor is busy until
// the engine has answered.
func (m *ContainerMonitor) Stop(ctx context.Context) <-chan error {
	return m.command(ctx, "stop", func(ctx context.Context, c engine.Container) error {
		return c.Stop(ctx, m.stopgrace)
	})
}

// Restart restarts the container and waits for the engine to answer. Unlike
// Start and Stop it doesn't mark the monitor busy.
func (m *ContainerMonitor) Restart(ctx context.Context) error {
	c, err := m.resolve(ctx)
	if err == nil {
		err = c.Restart(ctx)
	}
	if err != nil {
		err = &CommandError{Container: m.name, Command: "restart", Err: err}
		log.Errorf("host %s: %s", m.hostname, err.Error())
		return err
	}
	log.Infof("host %s: restarted container %s", m.hostname, m.name)
	return nil
}

// command marks the monitor as busy and then runs the specified command on a
// separate goroutine, delivering its outcome on the returned (buffered)
// channel. The monitor is no longer busy when the outcome gets delivered.
func (m *ContainerMonitor) command(
	ctx context.Context,
	cmd string,
	fn func(context.Context, engine.Container) error,
) <-chan error {
	outcome := make(chan error, 1)
	m.inflight.Add(1)
	go func() {
		var err error
		defer func() {
			m.inflight.Add(-1)
			outcome <- err
			close(outcome)
		}()
		var c engine.Container
		c, err = m.resolve(ctx)
		if err == nil {
			err = fn(ctx, c)
		}
		if err != nil {
			err = &CommandError{Container: m.name, Command: cmd, Err: err}
			log.Errorf("host %s: %s", m.hostname, err.Error())
			return
		}
		log.Infof("host %s: %s container %s", m.hostname, cmd, m.name)
	}()
	return outcome
}

// resolve returns the handle of the container monitored, resolving it first
// if necessary.
func (m *ContainerMonitor) resolve(ctx context.Context) (engine.Container, error) {
	m.mu.Lock()
	c := m.handle
	m.mu.Unlock()
	if c != nil {
		return c, nil
	}
	c, err := m.eng.Container(ctx, m.name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		m.handle = c
	}
	return m.handle, nil
}

// markReady signals that the first observation has been made, or that there
// won't be any.
func (m *ContainerMonitor) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

// run is the poll loop of this container monitor, polling and notifying
// first, then sleeping for the poll interval. It terminates on cancellation,
// when the container cannot be resolved, or when the engine reports the
// container to be gone.
func (m *ContainerMonitor) run() {
	defer close(m.done)
	defer m.markReady()
	ctx := m.ctx
	if _, err := m.resolve(ctx); err != nil {
		if ctx.Err() == nil {
			log.Errorf("host %s: cannot attach to container %s, reason: %s",
				m.hostname, m.name, err.Error())
		}
		return
	}
	log.Debugf("host %s: monitoring container %s every %s", m.hostname, m.name, m.interval)
	wecker := time.NewTimer(m.interval)
	defer wecker.Stop()
	for {
		if !m.poll(ctx) {
			return
		}
		wecker.Reset(m.interval)
		select {
		case <-ctx.Done():
			return
		case <-wecker.C:
		}
	}
}

// poll carries out a single observation, unless a command is in flight. It
// returns false if the poll loop should terminate.
func (m *ContainerMonitor) poll(ctx context.Context) bool {
	if m.Busy() {
		log.Debugf("host %s: container %s busy, skipping poll", m.hostname, m.name)
		return true
	}
	c, _ := m.resolve(ctx)
	insp, err := c.Inspect(ctx)
	if err != nil {
		return m.fetchFailed(ctx, "inspect", err)
	}
	now := m.now()
	state := ParseState(insp.Status)
	info := ContainerInfo{
		Name:        m.name,
		ID:          insp.ID,
		Image:       insp.Image,
		State:       state,
		RawState:    insp.Status,
		Status:      StatusText(insp, now),
		HostNetwork: insp.HostNetwork(),
		Observed:    true,
	}
	if state.Alive() {
		info.Uptime = insp.StartedAt
	}

	var stats DerivedStats
	m.mu.Lock()
	base := m.base
	m.mu.Unlock()
	if state.Alive() {
		sample, err := c.Stats(ctx)
		if err != nil {
			return m.fetchFailed(ctx, "stats", err)
		}
		var errs []error
		stats, base, errs = derive(m.name, sample, info.HostNetwork, base, m.prec)
		for _, err := range errs {
			log.Errorf("host %s: %s", m.hostname, err.Error())
		}
		log.Debugf("host %s: container %s CPU usage=%s%%, memory usage=%sMB, %s%%",
			m.hostname, m.name,
			fmtGauge(stats.CPUPercent), fmtGauge(stats.MemoryMB), fmtGauge(stats.MemoryPercent))
	} else {
		// counters restart from scratch when the container comes alive again.
		base = baselines{}
		log.Debugf("host %s: container %s: %s", m.hostname, m.name, info.Status)
	}

	m.mu.Lock()
	m.info = info
	m.stats = stats
	m.base = base
	m.mu.Unlock()

	m.markReady()
	m.notifyChanged()
	return true
}

// fetchFailed logs a failed inspection or stats query and returns whether the
// poll loop should continue.
func (m *ContainerMonitor) fetchFailed(ctx context.Context, op string, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, engine.ErrNotFound) {
		log.Infof("host %s: container %s is gone, stopping monitoring", m.hostname, m.name)
		m.mu.Lock()
		m.info.State = StateUnknown
		m.stats = DerivedStats{}
		m.base = baselines{}
		m.mu.Unlock()
		return false
	}
	ferr := &FetchError{Container: m.name, Op: op, Err: err}
	log.Warnf("host %s: %s", m.hostname, ferr.Error())
	return true
}
