// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/siemens/dockermon"
	"github.com/siemens/dockermon/internal/config"
	"github.com/siemens/dockermon/internal/console"
	"github.com/siemens/dockermon/publisher/logger"
	promexp "github.com/siemens/dockermon/publisher/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/sync/errgroup"
)

func newRunCommand(a *app) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Supervise the configured hosts",
		Long: `Supervise the configured hosts until terminated, publishing container states
and resource usage according to the configured publishers.

The configuration file is watched for changes: added, removed and changed hosts
get applied without restarting. Changes to the publishers require a restart.

Examples:
  dockermon run
  dockermon run --console
  dockermon run --prometheus :9323`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), interactive)
		},
	}
	cmd.Flags().BoolVar(&interactive, "console", false,
		"show the interactive console view")
	cmd.Flags().String("prometheus", "",
		"listen address of the Prometheus metrics endpoint, overriding the configuration")
	_ = a.v.BindPFlag("publishers.prometheus", cmd.Flags().Lookup("prometheus"))
	return cmd
}

// run supervises the configured hosts until the context is done, the console
// view has been quit, or a host cannot be connected within its retry budget.
func (a *app) run(ctx context.Context, interactive bool) error {
	cfg, err := a.load()
	if err != nil {
		return err
	}
	var opts []dockermon.RegistryOption
	if cfg.Publishers.Log {
		opts = append(opts, dockermon.WithConnectOptions(
			dockermon.WithEntityObserver(logger.New(a.filter))))
	}
	reg, err := a.registry(opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var metrics net.Listener
	if addr := cfg.Publishers.Prometheus; addr != "" {
		metrics, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("cannot serve Prometheus metrics: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reg.Run(gctx)
	})
	if metrics != nil {
		g.Go(func() error {
			return promexp.Serve(gctx, metrics,
				promexp.NewCollector(reg, promexp.WithFilter(promexp.Filter(a.filter))))
		})
	}
	if err := config.Watch(gctx, a.v, a.configPath, func(cfg *config.Config) {
		a.cfg.Store(cfg)
		if err := reg.Apply(cfg.HostConfigs()); err != nil {
			log.Errorf("cannot apply changed configuration, reason: %s", err.Error())
		}
	}); err != nil {
		log.Warnf("not watching configuration file %s for changes, reason: %s",
			a.configPath, err.Error())
	}
	if interactive {
		// keep the log from scribbling over the console view.
		logrus.SetOutput(io.Discard)
		g.Go(func() error {
			defer cancel()
			return console.Run(gctx, reg, a.filter)
		})
	}
	return g.Wait()
}
