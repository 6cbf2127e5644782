// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dockermon

import "time"

// ConnectOption represents options to Connect when connecting a new host.
type ConnectOption func(*Host)

// WithInterval sets the poll interval of the container monitors as well as
// the refresh interval of the host information. Intervals of zero or less
// are taken as [DefaultInterval] instead.
func WithInterval(d time.Duration) ConnectOption {
	return func(h *Host) {
		h.interval = d
	}
}

// WithWorkers sets the maximum number of parallel container engine queries
// when initially attaching to all containers of a newly connected host. A
// maximum number of zero or less is taken as GOMAXPROCS instead.
func WithWorkers(num int) ConnectOption {
	return func(h *Host) {
		h.numworkers = num
	}
}

// WithGettingOnlineWait sets the maximum duration to wait for the container
// monitors of a newly connected host to make their first observations before
// Connect returns. If the initial observations take longer, they won't be
// aborted, but instead continue in the background.
func WithGettingOnlineWait(d time.Duration) ConnectOption {
	return func(h *Host) {
		h.onlinewait = d
	}
}

// WithSettleWait sets the maximum duration to wait for the poll goroutine of a
// detached container monitor to terminate before dropping the monitor.
func WithSettleWait(d time.Duration) ConnectOption {
	return func(h *Host) {
		h.settlewait = d
	}
}

// WithStopGrace sets the grace period a container gets when stopping it,
// before the container engine kills it.
func WithStopGrace(d time.Duration) ConnectOption {
	return func(h *Host) {
		h.stopgrace = d
	}
}

// WithPrecision sets the number of decimals derived statistics get rounded
// to.
func WithPrecision(p Precision) ConnectOption {
	return func(h *Host) {
		h.prec = p
	}
}

// WithEntityObserver sets the observer to notify when the host has been
// connected and when new containers get created.
func WithEntityObserver(obs EntityObserver) ConnectOption {
	return func(h *Host) {
		h.observer = obs
	}
}

// WithClock sets the clock status texts and relative durations are based on.
func WithClock(now func() time.Time) ConnectOption {
	return func(h *Host) {
		h.now = now
	}
}
