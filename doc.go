/*
Package dockermon supervises the containers of one or more container engines,
keeping a live model of each container's state and resource usage for
republishing to automation hosts, as well as forwarding start, stop and restart
commands.

# Supported Container Engines

The following container engines are supported:

  - [Docker/Moby]
  - [podman] (via Docker-compatible API only)

Engines are reached through endpoint URLs, where the URL scheme selects the
engine plugin; see [github.com/siemens/dockermon/engine].

# Quick Start

Connecting a single host is as simple as:

	eng, err := engine.Dial(ctx, engine.Endpoint{URL: "unix:///run/docker.sock"})
	host, err := dockermon.Connect(ctx, "local", eng)
	defer host.Close()
	for _, name := range host.Containers() {
	    m, _ := host.Lookup(name)
	    fmt.Println(name, m.Info().Status)
	}

For multiple hosts, including connection retries and reconnecting, use a
[Registry] instead.

# Hosts

A [Host] first lists all containers of its engine, regardless of their state,
and attaches a [ContainerMonitor] to each of them. It then follows the engine's
event stream, attaching monitors to newly created containers and detaching
monitors from destroyed containers. In parallel, it periodically refreshes the
engine information and aggregates the CPU and memory usage over all running
containers.

A Host doesn't reconnect by itself: when the event stream ends or the engine
information cannot be refreshed, the host terminates and reports the reason via
[Host.Err]. A [Registry] then connects the host anew, subject to the host's
retry budget.

# Container Monitors

Each [ContainerMonitor] polls its container on its own goroutine: it first
inspects the container state, then fetches the resource usage statistics of
running and paused containers, and finally notifies its registered [Observer]
objects. Rates, such as CPU utilization and network speeds, are derived from
the raw cumulative counters of successive polls; they thus stay unknown on the
first poll after attaching.

While a start or stop command is in flight, a monitor skips polling so as to
not report containers in the middle of transitions.

[Docker/Moby]: https://docker.com
[podman]: https://podman.io
*/
package dockermon
