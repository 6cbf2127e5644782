// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"context"
	"time"

	"github.com/thediveo/lxkns/log"
)

// awaitOnline waits for the specified container monitors to make their first
// observations, returning true if they all did so in time. awaitOnline will
// always return after at most the specified maxwait duration, while the
// monitors continue in the background in any case.
//
// The idea of the maxwait duration is to allow a time-boxed synchronous
// behavior without blocking too long on slow engines. This allows “typical”
// clients to get the initial container states right after connecting a
// host, instead of seeing all containers as unobserved.
func awaitOnline(ctx context.Context, host string, monitors []*ContainerMonitor, maxwait time.Duration) bool {
	log.Infof("waiting for %d container monitors of host %s to come online",
		len(monitors), host)
	// The ready channel of a container monitor also closes when the monitor
	// terminates early, so this transient go routine is bound to terminate for
	// any outcome sooner or later.
	online := make(chan struct{})
	go func() {
		defer close(online)
		for _, m := range monitors {
			select {
			case <-m.Ready():
			case <-ctx.Done():
				return
			}
		}
	}()
	// Give the monitors a (short) chance to come online, but do not hang around
	// for too long if the container engine is slow...
	wecker := time.NewTimer(maxwait)
	defer wecker.Stop()
	select {
	case <-online:
		if ctx.Err() != nil {
			return false
		}
		log.Infof("all container monitors of host %s online", host)
		return true
	case <-wecker.C:
		log.Warnf("container monitors of host %s not yet online ... continuing in background",
			host)
		return false
	}
}
