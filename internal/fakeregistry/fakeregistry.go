// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

// Package fakeregistry runs a dockermon.Registry supervising fake engines, for
// testing the consumers of registries.
package fakeregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/siemens/dockermon"
	"github.com/siemens/dockermon/engine"
	"github.com/siemens/dockermon/internal/fakeengine"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// Interval is the poll interval of the supervised fake hosts.
const Interval = 50 * time.Millisecond

const mib = 1024 * 1024

// Stats returns a statistics sample of a running container using 200MiB out
// of 400MiB.
func Stats(read time.Time) engine.Stats {
	return engine.Stats{
		Read: read,
		CPU: &engine.CPUStats{
			TotalUsage:  100,
			SystemUsage: 1000,
			OnlineCPUs:  2,
		},
		Memory: &engine.MemoryStats{
			Usage:    300 * mib,
			MaxUsage: 350 * mib,
			Limit:    400 * mib,
			Stats:    map[string]uint64{"cache": 100 * mib},
		},
		Networks: map[string]engine.NetworkStats{
			"eth0": {TxBytes: 1 * mib, RxBytes: 2 * mib},
		},
	}
}

// Run starts a registry supervising the specified fake engines in the
// background, keyed by host names. The registry gets stopped when the current
// test node finishes. Run returns only after all hosts have been connected.
func Run(engines map[string]*fakeengine.Engine, opts ...dockermon.RegistryOption) *dockermon.Registry {
	GinkgoHelper()
	reg := dockermon.NewRegistry(append([]dockermon.RegistryOption{
		dockermon.WithDialer(func(ctx context.Context, ep engine.Endpoint) (engine.Engine, error) {
			for name, eng := range engines {
				if ep.URL == "unix:///run/"+name+".sock" {
					return eng, nil
				}
			}
			return nil, fmt.Errorf("no engine at %s", ep.URL)
		}),
	}, opts...)...)
	for name := range engines {
		Expect(reg.Register(dockermon.HostConfig{
			Name:       name,
			Endpoint:   engine.Endpoint{URL: "unix:///run/" + name + ".sock"},
			Interval:   Interval,
			RetryDelay: 10 * time.Millisecond,
		})).To(Succeed())
	}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = reg.Run(ctx)
	}()
	DeferCleanup(func() {
		cancel()
		Eventually(stopped).Should(BeClosed())
	})
	for name := range engines {
		Eventually(func() bool {
			_, ok := reg.Host(name)
			return ok
		}).Should(BeTrue(), "host %s not connected", name)
	}
	return reg
}
