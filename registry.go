// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/siemens/dockermon/engine"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// DefaultRetryDelay is the delay between connection attempts, unless
// configured otherwise.
const DefaultRetryDelay = 10 * time.Second

// HostConfig describes a host to be supervised by a Registry.
type HostConfig struct {
	Name       string          // unique host name.
	Endpoint   engine.Endpoint // where and how to reach the container engine.
	Interval   time.Duration   // poll interval; zero means DefaultInterval.
	Retry      int             // number of retries after a failed connection attempt.
	RetryDelay time.Duration   // delay between connection attempts.
	Precision  *Precision      // nil means DefaultPrecisions.
}

// fingerprint returns a hash over the host configuration, allowing to detect
// configuration changes.
func (c HostConfig) fingerprint() uint64 {
	h := xxhash.New()
	for _, s := range []string{
		c.Name, c.Endpoint.URL, c.Endpoint.CertPath, c.Endpoint.Root,
		c.Interval.String(), strconv.Itoa(c.Retry), c.RetryDelay.String(),
		c.precision(),
	} {
		_, _ = h.WriteString(s)
		_, _ = h.WriteString("\x00")
	}
	return h.Sum64()
}

func (c HostConfig) precision() string {
	if c.Precision == nil {
		return "default"
	}
	return fmt.Sprintf("%+v", *c.Precision)
}

// Dialer opens an engine session for an endpoint; see [engine.Dial].
type Dialer func(ctx context.Context, ep engine.Endpoint) (engine.Engine, error)

// RegistryOption represents options to NewRegistry.
type RegistryOption func(*Registry)

// WithDialer sets the function used to open engine sessions, instead of
// [engine.Dial].
func WithDialer(dial Dialer) RegistryOption {
	return func(r *Registry) {
		r.dial = dial
	}
}

// WithConnectOptions sets options to be passed to Connect for all hosts.
// Per-host options derived from each HostConfig take precedence.
func WithConnectOptions(opts ...ConnectOption) RegistryOption {
	return func(r *Registry) {
		r.connectopts = append(r.connectopts, opts...)
	}
}

// Registry manages the set of configured hosts, keyed by their unique names.
// While running, it supervises each host on its own goroutine: it connects the
// host, retrying according to the host's retry budget, and connects anew
// whenever a connected host terminates.
//
// A Registry is meant to be created and owned by a program's entry point and
// then handed to collaborators that need to look up hosts and containers.
type Registry struct {
	dial        Dialer
	connectopts []ConnectOption

	mu      sync.Mutex // protects the following fields.
	entries map[string]*registryEntry
	group   *errgroup.Group // non-nil while running.
	ctx     context.Context // context of the running group.
}

// registryEntry is a single registered host together with its supervision.
type registryEntry struct {
	cfg         HostConfig
	fingerprint uint64
	cancel      context.CancelFunc // cancels supervision; nil while not running.
	host        *Host              // currently connected host, if any.
}

// NewRegistry returns a new, empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		dial:    engine.Dial,
		entries: map[string]*registryEntry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds the specified host configuration, returning an error wrapping
// ErrDuplicateHost if there already is a host with the same name. If the
// registry is already running, supervision of the new host starts
// immediately.
func (r *Registry) Register(cfg HostConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[cfg.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHost, cfg.Name)
	}
	e := &registryEntry{cfg: cfg, fingerprint: cfg.fingerprint()}
	r.entries[cfg.Name] = e
	if r.group != nil {
		r.superviseLocked(e)
	}
	return nil
}

// Hosts returns the sorted names of all registered hosts.
func (r *Registry) Hosts() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.Unlock()
	slices.Sort(names)
	return names
}

// Host returns the named host if it is currently connected.
func (r *Registry) Host(name string) (*Host, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok || e.host == nil {
		return nil, false
	}
	return e.host, true
}

// Container returns the monitor of the named container on the named host.
func (r *Registry) Container(host, container string) (*ContainerMonitor, bool) {
	h, ok := r.Host(host)
	if !ok {
		log.Errorf("host %s not found", host)
		return nil, false
	}
	return h.Container(container)
}

// Run supervises all registered hosts until the context is done, returning
// nil in this case. If a host cannot be initially connected within its retry
// budget, Run terminates supervision of all hosts and returns the connection
// error. A host failing to reconnect later only stays disconnected.
func (r *Registry) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	r.mu.Lock()
	if r.group != nil {
		r.mu.Unlock()
		return fmt.Errorf("registry already running")
	}
	r.group = g
	r.ctx = gctx
	for _, e := range r.entries {
		r.superviseLocked(e)
	}
	r.mu.Unlock()
	// keep the group alive even without any hosts, so that hosts can be
	// registered later.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err := g.Wait()
	r.mu.Lock()
	r.group = nil
	r.ctx = nil
	for _, e := range r.entries {
		e.cancel = nil
		e.host = nil
	}
	r.mu.Unlock()
	return err
}

// Apply reconfigures the registry to the specified host configurations:
// hosts not present anymore get removed, hosts with changed configurations
// get reconnected, and new hosts get added. Unchanged hosts are left alone.
// Apply rejects configurations with duplicate host names, leaving the
// registry untouched.
func (r *Registry) Apply(cfgs []HostConfig) error {
	wanted := map[string]HostConfig{}
	for _, cfg := range cfgs {
		if _, ok := wanted[cfg.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateHost, cfg.Name)
		}
		wanted[cfg.Name] = cfg
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		cfg, ok := wanted[name]
		if ok && cfg.fingerprint() == e.fingerprint {
			continue
		}
		if ok {
			log.Infof("host %s: configuration changed", name)
		} else {
			log.Infof("host %s: removed from configuration", name)
		}
		if e.cancel != nil {
			e.cancel()
		}
		delete(r.entries, name)
	}
	for name, cfg := range wanted {
		if _, ok := r.entries[name]; ok {
			continue
		}
		e := &registryEntry{cfg: cfg, fingerprint: cfg.fingerprint()}
		r.entries[name] = e
		if r.group != nil {
			r.superviseLocked(e)
		}
	}
	return nil
}

// superviseLocked starts supervising the specified entry; the caller must hold
// the registry lock and the registry must be running.
func (r *Registry) superviseLocked(e *registryEntry) {
	ctx, cancel := context.WithCancel(r.ctx)
	e.cancel = cancel
	r.group.Go(func() error {
		defer cancel()
		return r.supervise(ctx, e)
	})
}

// supervise connects the host of the specified entry and reconnects whenever
// the host terminates, until the context is done. It returns an error only if
// the host could not be connected at all; when reconnecting a host fails, the
// host stays disconnected while all other hosts continue.
func (r *Registry) supervise(ctx context.Context, e *registryEntry) error {
	name := e.cfg.Name
	connected := false
	for {
		host, err := r.connect(ctx, e.cfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Errorf("host %s: giving up connecting, reason: %s", name, err.Error())
			if connected {
				// only a host that never came up fails the whole registry.
				return nil
			}
			return err
		}
		connected = true
		r.setHost(e, host)
		select {
		case <-ctx.Done():
			host.Close()
			r.setHost(e, nil)
			return nil
		case <-host.Done():
		}
		r.setHost(e, nil)
		if ctx.Err() != nil {
			return nil
		}
		log.Warnf("host %s: terminated, reconnecting", name)
	}
}

func (r *Registry) setHost(e *registryEntry, h *Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.host = h
}

// connect dials and connects the configured host, retrying with a constant
// delay as often as the retry budget allows.
func (r *Registry) connect(ctx context.Context, cfg HostConfig) (*Host, error) {
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	retry := cfg.Retry
	if retry < 0 {
		retry = 0
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(retry)),
		ctx)
	opts := append(slices.Clone(r.connectopts), WithInterval(cfg.Interval))
	if cfg.Precision != nil {
		opts = append(opts, WithPrecision(*cfg.Precision))
	}
	var host *Host
	err := backoff.RetryNotify(func() error {
		log.Infof("host %s: connecting to %s", cfg.Name, cfg.Endpoint.URL)
		eng, err := r.dial(ctx, cfg.Endpoint)
		if err != nil {
			return &ConnectError{Host: cfg.Name, Err: err}
		}
		host, err = Connect(ctx, cfg.Name, eng, opts...)
		return err
	}, policy, func(err error, d time.Duration) {
		log.Warnf("host %s: %s, retrying in %s", cfg.Name, err.Error(), d)
	})
	if err != nil {
		return nil, err
	}
	return host, nil
}
