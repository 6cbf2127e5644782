// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/siemens/dockermon/engine"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding publisher
// settings, such as DOCKERMON_PUBLISHERS_PROMETHEUS.
const EnvPrefix = "DOCKERMON"

// ErrInvalid is wrapped by all configuration validation errors.
var ErrInvalid = errors.New("invalid configuration")

// NewViper returns a viper instance set up for reading configuration files,
// with environment variable overrides and defaults for the publisher settings.
// Command line flags may be bound to the returned instance before calling
// Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("publishers.log", true)
	v.SetDefault("publishers.prometheus", "")
	return v
}

// Load reads, defaults and validates the configuration at path. The path
// either names a single configuration file, or a directory with configuration
// fragments whose hosts get merged.
func Load(v *viper.Viper, path string) (*Config, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration file %s: %w", path, err)
	}
	var cfg *Config
	if st.IsDir() {
		cfg, err = loadDir(v, path)
	} else {
		cfg, err = loadFile(v, path)
	}
	if err != nil {
		return nil, err
	}
	// publisher settings might have been overridden by environment variables
	// or command line flags.
	cfg.Publishers.Log = v.GetBool("publishers.log")
	cfg.Publishers.Prometheus = v.GetString("publishers.prometheus")
	if err := cfg.finish(); err != nil {
		return nil, fmt.Errorf("configuration %s: %w", path, err)
	}
	return cfg, nil
}

func loadFile(v *viper.Viper, path string) (*Config, error) {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read configuration file %s: %w", path, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration file %s: %w", path, err)
	}
	cfg, err := decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("configuration file %s: %w", path, err)
	}
	return cfg, nil
}

func loadDir(v *viper.Viper, dir string) (*Config, error) {
	paths, err := fragments(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration directory %s: %w", dir, err)
	}
	// start over with the previously merged fragments.
	if err := v.ReadConfig(strings.NewReader("")); err != nil {
		return nil, err
	}
	cfg := &Config{}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read configuration file %s: %w", path, err)
		}
		frag, err := decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("configuration file %s: %w", path, err)
		}
		if err := v.MergeConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("configuration file %s: %w", path, err)
		}
		cfg.Hosts = append(cfg.Hosts, frag.Hosts...)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a YAML configuration. In contrast to
// viper's own unmarshalling, map keys such as container names in renames keep
// their case and unknown fields are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{Publishers: Publishers{Log: true}}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

func (c *Config) finish() error {
	for idx := range c.Hosts {
		if c.Hosts[idx].URL == "" {
			c.Hosts[idx].URL = DefaultURL
		}
	}
	return Validate(c)
}

// Marshal returns the YAML representation of the configuration.
func Marshal(cfg *Config) ([]byte, error) {
	var buff bytes.Buffer
	enc := yaml.NewEncoder(&buff)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// Validate checks the configuration for errors, returning all problems found
// at once.
func Validate(cfg *Config) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	names := map[string]struct{}{}
	schemes := engine.Schemes()
	for idx, h := range cfg.Hosts {
		if h.Name == "" {
			invalid("host #%d without name", idx+1)
		} else if _, ok := names[h.Name]; ok {
			invalid("duplicate host name %q", h.Name)
		}
		names[h.Name] = struct{}{}
		u, err := url.Parse(h.URL)
		switch {
		case err != nil:
			invalid("host %q: malformed url %q", h.Name, h.URL)
		case len(schemes) > 0 && !slices.Contains(schemes, strings.ToLower(u.Scheme)):
			invalid("host %q: unsupported url scheme %q", h.Name, u.Scheme)
		}
		if h.Interval < 0 {
			invalid("host %q: negative interval %s", h.Name, h.Interval)
		}
		if h.Retry != nil && *h.Retry < 0 {
			invalid("host %q: negative retry %d", h.Name, *h.Retry)
		}
		if h.RetryDelay < 0 {
			invalid("host %q: negative retrydelay %s", h.Name, h.RetryDelay)
		}
		for gauge, decimals := range map[string]*int{
			"cpu":            h.Precision.CPU,
			"memory_mb":      h.Precision.MemoryMB,
			"memory_percent": h.Precision.MemoryPercent,
			"network_kb":     h.Precision.NetworkKB,
			"network_mb":     h.Precision.NetworkMB,
		} {
			if decimals != nil && *decimals < 0 {
				invalid("host %q: negative %s precision %d", h.Name, gauge, *decimals)
			}
		}
	}
	if addr := cfg.Publishers.Prometheus; addr != "" && !strings.Contains(addr, ":") {
		invalid("prometheus listen address %q lacks a port", addr)
	}
	return errors.Join(errs...)
}
