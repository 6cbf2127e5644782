// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/siemens/dockermon"
	"github.com/spf13/cobra"
)

func newRestartCommand(a *app) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "restart HOST CONTAINER",
		Short: "Restart a container on a configured host",
		Long: `Restart a container on a configured host. The container can be given either by
its name on the host or by its configured display name.

Examples:
  dockermon restart local homeassistant`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.restart(cmd.Context(), cmd, args[0], args[1], wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", DefaultStatusWait,
		"maximum time to wait for the host to get connected")
	return cmd
}

// restart connects only the specified host and restarts the container.
func (a *app) restart(ctx context.Context, cmd *cobra.Command, hostname, container string, wait time.Duration) error {
	cfg, err := a.load()
	if err != nil {
		return err
	}
	hostcfg, ok := cfg.Host(hostname)
	if !ok {
		return fmt.Errorf("unknown host %s", hostname)
	}
	for name, display := range hostcfg.Rename {
		if display == container {
			container = name
			break
		}
	}
	reg := a.newRegistry()
	if err := reg.Register(hostcfg.HostConfig()); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	outcome := make(chan error, 1)
	go func() {
		outcome <- reg.Run(ctx)
	}()
	defer func() {
		cancel()
		<-outcome
	}()

	host, err := awaitHost(ctx, reg, hostname, wait)
	if err != nil {
		return err
	}
	m, ok := host.Container(container)
	if !ok {
		return fmt.Errorf("host %s: unknown container %s", hostname, container)
	}
	if err := m.Restart(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "host %s: restarted container %s\n", hostname, container)
	return nil
}

// awaitHost waits for the named host of the registry to get connected.
func awaitHost(ctx context.Context, reg *dockermon.Registry, name string, wait time.Duration) (*dockermon.Host, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(settledPolling)
	defer ticker.Stop()
	for {
		if host, ok := reg.Host(name); ok {
			return host, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("host %s: not connected within %s", name, wait)
		case <-ticker.C:
		}
	}
}
