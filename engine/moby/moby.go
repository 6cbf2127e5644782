// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package moby

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/siemens/dockermon/engine"
	"github.com/thediveo/go-plugger/v3"
	"github.com/thediveo/lxkns/log"
)

// Type identifying Docker engines.
const Type = "docker.com"

// pingTimeout limits how long we wait for an engine to answer when dialing
// it.
const pingTimeout = 10 * time.Second

// Register this Docker engine dialer plugin. This statically ensures that the
// Dialer interface is fully implemented.
func init() {
	plugger.Group[engine.Dialer]().Register(
		&Dialer{}, plugger.WithPlugin("dockerd"))
}

// Dialer implements the engine.Dialer interface for Docker/Moby engines.
type Dialer struct{}

// Schemes returns the endpoint URL schemes understood by the Docker client.
func (d *Dialer) Schemes() []string {
	return []string{"unix", "tcp", "http", "https", "npipe"}
}

// Dial connects to the Docker engine at the specified endpoint and checks that
// the engine is actually responding.
func (d *Dialer) Dial(ctx context.Context, ep engine.Endpoint) (engine.Engine, error) {
	return New(ctx, ep.URL, ep.CertPath, Type)
}

// Engine talks to a Docker (or Docker API-compatible) container engine.
type Engine struct {
	cli    *client.Client
	typ    string
	apiurl string
}

var _ engine.Engine = (*Engine)(nil)

// New returns a new Engine for the Docker API endpoint at apiurl, optionally
// using the TLS client certificates in certpath. As Docker's client will accept
// any API pathname we throw at it and throw up only when actually trying to
// communicate with the engine, New pings the engine before returning.
func New(ctx context.Context, apiurl string, certpath string, typ string) (*Engine, error) {
	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
	}
	if apiurl != "" {
		opts = append(opts, client.WithHost(apiurl))
	} else {
		opts = append(opts, client.FromEnv)
	}
	if certpath != "" {
		opts = append(opts, client.WithTLSClientConfig(
			filepath.Join(certpath, "ca.pem"),
			filepath.Join(certpath, "cert.pem"),
			filepath.Join(certpath, "key.pem"),
		))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}
	pingctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := cli.Ping(pingctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("cannot reach '%s' engine API at %s: %w", typ, apiurl, err)
	}
	return &Engine{cli: cli, typ: typ, apiurl: apiurl}, nil
}

// Type returns the type identifier of the engine, such as "docker.com".
func (e *Engine) Type() string { return e.typ }

// API returns the API endpoint of the engine.
func (e *Engine) API() string { return e.apiurl }

// Client returns the underlying Docker client.
func (e *Engine) Client() *client.Client { return e.cli }

// Close closes the connection to the engine.
func (e *Engine) Close() error {
	return e.cli.Close()
}

// Version returns the engine's version information.
func (e *Engine) Version(ctx context.Context) (engine.Version, error) {
	v, err := e.cli.ServerVersion(ctx)
	if err != nil {
		return engine.Version{}, err
	}
	return engine.Version{
		Version:    v.Version,
		APIVersion: v.APIVersion,
		OS:         v.Os,
		Arch:       v.Arch,
	}, nil
}

// Info returns system-wide information about the engine.
func (e *Engine) Info(ctx context.Context) (engine.SystemInfo, error) {
	info, err := e.cli.Info(ctx)
	if err != nil {
		return engine.SystemInfo{}, err
	}
	return engine.SystemInfo{
		ServerVersion:     info.ServerVersion,
		Containers:        info.Containers,
		ContainersRunning: info.ContainersRunning,
		MemTotal:          info.MemTotal,
		NCPU:              info.NCPU,
		OperatingSystem:   info.OperatingSystem,
		OSType:            info.OSType,
		Architecture:      info.Architecture,
		KernelVersion:     info.KernelVersion,
	}, nil
}

// List returns all containers, regardless of their state.
func (e *Engine) List(ctx context.Context) ([]engine.ContainerRef, error) {
	containers, err := e.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, err
	}
	refs := make([]engine.ContainerRef, 0, len(containers))
	for _, cntr := range containers {
		if len(cntr.Names) == 0 {
			continue
		}
		refs = append(refs, engine.ContainerRef{
			ID:   cntr.ID,
			Name: strings.TrimPrefix(cntr.Names[0], "/"),
		})
	}
	return refs, nil
}

// Container resolves the named container into a handle.
func (e *Engine) Container(ctx context.Context, name string) (engine.Container, error) {
	details, err := e.cli.ContainerInspect(ctx, name)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	id := name
	if details.ContainerJSONBase != nil {
		id = details.ID
	}
	return &Container{engine: e, id: id, name: name}, nil
}

// Events subscribes to the container lifecycle event stream of the engine.
func (e *Engine) Events(ctx context.Context) (<-chan engine.Event, <-chan error) {
	evch := make(chan engine.Event)
	errch := make(chan error, 1)
	msgs, errs := e.cli.Events(ctx, events.ListOptions{
		Filters: filters.NewArgs(filters.Arg("type", string(events.ContainerEventType))),
	})
	go func() {
		defer close(evch)
		for {
			select {
			case msg := <-msgs:
				ev := engine.Event{
					Type:   string(msg.Type),
					Action: string(msg.Action),
					ID:     msg.Actor.ID,
					Name:   msg.Actor.Attributes["name"],
					Time:   time.Unix(0, msg.TimeNano),
				}
				select {
				case evch <- ev:
				case <-ctx.Done():
					return
				}
			case err := <-errs:
				if err != nil && ctx.Err() == nil {
					errch <- err
				}
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return evch, errch
}

// Container is a handle to a particular Docker container.
type Container struct {
	engine *Engine
	id     string
	name   string
}

var _ engine.Container = (*Container)(nil)

// Name returns the container's name.
func (c *Container) Name() string { return c.name }

// Inspect returns the current state of the container.
func (c *Container) Inspect(ctx context.Context) (engine.Inspection, error) {
	details, err := c.engine.cli.ContainerInspect(ctx, c.id)
	if err != nil {
		return engine.Inspection{}, wrapNotFound(err)
	}
	return inspection(details), nil
}

// Stats returns a single resource counter snapshot of the container.
func (c *Container) Stats(ctx context.Context) (engine.Stats, error) {
	resp, err := c.engine.cli.ContainerStats(ctx, c.id, false)
	if err != nil {
		return engine.Stats{}, wrapNotFound(err)
	}
	defer resp.Body.Close()
	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return engine.Stats{}, fmt.Errorf("cannot decode stats of container %s: %w", c.name, err)
	}
	return snapshot(&stats), nil
}

// Start starts the container.
func (c *Container) Start(ctx context.Context) error {
	return wrapNotFound(c.engine.cli.ContainerStart(ctx, c.id, container.StartOptions{}))
}

// Stop stops the container, handing the grace period to the engine.
func (c *Container) Stop(ctx context.Context, grace time.Duration) error {
	timeout := int(grace.Seconds())
	return wrapNotFound(c.engine.cli.ContainerStop(ctx, c.id, container.StopOptions{
		Timeout: &timeout,
	}))
}

// Restart restarts the container, using the engine's default stop timeout.
func (c *Container) Restart(ctx context.Context) error {
	return wrapNotFound(c.engine.cli.ContainerRestart(ctx, c.id, container.StopOptions{}))
}

// wrapNotFound maps the Docker client's not-found errors onto
// engine.ErrNotFound, keeping the original error message.
func wrapNotFound(err error) error {
	if err == nil {
		return nil
	}
	if client.IsErrNotFound(err) {
		log.Debugf("engine reports: %s", err.Error())
		return fmt.Errorf("%w: %s", engine.ErrNotFound, err.Error())
	}
	return err
}
