// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

// Package cli implements the dockermon command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"

	"github.com/siemens/dockermon"
	"github.com/siemens/dockermon/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/siemens/dockermon/engine/all" // pull in engine plugins
	_ "github.com/thediveo/lxkns/log/logrus"   // log via logrus
)

// DefaultConfigPath is the configuration file used unless specified
// otherwise.
const DefaultConfigPath = "/etc/dockermon/config.yaml"

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo sets the version information (called from main).
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

// app carries the state shared by all commands.
type app struct {
	v          *viper.Viper
	configPath string
	debug      bool
	dialer     dockermon.Dialer // nil means engine.Dial
	stdout     io.Writer
	cfg        atomic.Pointer[config.Config]
}

// NewRootCommand returns the root command with all its subcommands.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{v: config.NewViper(), stdout: os.Stdout})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dockermon",
		Short: "Supervise the containers of container engines",
		Long: `dockermon supervises the containers of one or more container engines,
keeping track of their states and resource usage, and publishing them to the
log, Prometheus and an interactive console view.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.SetOut(a.stdout)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", DefaultConfigPath,
		"configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false,
		"enable debug logging")
	root.AddCommand(
		newRunCommand(a),
		newStatusCommand(a),
		newRestartCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the root command, terminating the process with a non-zero exit
// code in case of errors.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// load loads the configuration and makes it the current one.
func (a *app) load() (*config.Config, error) {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return nil, err
	}
	a.cfg.Store(cfg)
	return cfg, nil
}

// filter decides about publishing containers based on the current
// configuration's include, exclude and rename settings.
func (a *app) filter(host, container string) (string, bool) {
	cfg := a.cfg.Load()
	if cfg == nil {
		return container, true
	}
	h, ok := cfg.Host(host)
	if !ok || !h.Visible(container) {
		return "", false
	}
	return h.DisplayName(container), true
}

// newRegistry returns a new, empty registry.
func (a *app) newRegistry(opts ...dockermon.RegistryOption) *dockermon.Registry {
	if a.dialer != nil {
		opts = append(opts, dockermon.WithDialer(a.dialer))
	}
	return dockermon.NewRegistry(opts...)
}

// registry returns a new registry for the current configuration.
func (a *app) registry(opts ...dockermon.RegistryOption) (*dockermon.Registry, error) {
	reg := a.newRegistry(opts...)
	if err := reg.Apply(a.cfg.Load().HostConfigs()); err != nil {
		return nil, err
	}
	return reg, nil
}

func newVersionCommand(a *app) *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, version)
				return
			}
			fmt.Fprintf(out, "dockermon %s\n", version)
			fmt.Fprintf(out, "commit: %s\n", commit)
			fmt.Fprintf(out, "built: %s\n", date)
			fmt.Fprintf(out, "go: %s\n", runtime.Version())
			fmt.Fprintf(out, "os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")
	return cmd
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			raw, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}
