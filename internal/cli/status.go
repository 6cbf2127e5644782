// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/siemens/dockermon"
	"github.com/siemens/dockermon/internal/console"
	"github.com/spf13/cobra"
)

// DefaultStatusWait is the default maximum time to wait for hosts to get
// connected and their containers observed.
const DefaultStatusWait = 5 * time.Second

const settledPolling = 100 * time.Millisecond

func newStatusCommand(a *app) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current status of the configured hosts and their containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.status(cmd.Context(), cmd, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", DefaultStatusWait,
		"maximum time to wait for hosts to get connected")
	return cmd
}

// status connects the configured hosts, waits for them to settle and then
// prints their status.
func (a *app) status(ctx context.Context, cmd *cobra.Command, wait time.Duration) error {
	if _, err := a.load(); err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	outcome := make(chan error, 1)
	go func() {
		outcome <- reg.Run(ctx)
	}()

	var runErr error
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(settledPolling)
	defer ticker.Stop()
waiting:
	for !settled(reg) {
		select {
		case <-ctx.Done():
			break waiting
		case runErr = <-outcome:
			outcome = nil
			break waiting
		case <-deadline.C:
			break waiting
		case <-ticker.C:
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), console.Render(console.Snapshot(reg, a.filter), -1))
	if outcome != nil {
		cancel()
		runErr = <-outcome
	}
	return runErr
}

// settled returns true if all hosts of the registry are connected and all
// their containers have been observed.
func settled(reg *dockermon.Registry) bool {
	for _, name := range reg.Hosts() {
		host, ok := reg.Host(name)
		if !ok {
			return false
		}
		for _, cname := range host.Containers() {
			m, ok := host.Lookup(cname)
			if ok && !m.Info().Observed {
				return false
			}
		}
	}
	return true
}
