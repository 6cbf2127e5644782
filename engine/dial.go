// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/thediveo/go-plugger/v3"
	"github.com/thediveo/lxkns/log"
	"github.com/thediveo/procfsroot"
)

// Dialer allows specialized engine plugins to interface with the generic
// supervision, by describing which endpoint URL schemes they serve and how to
// open an engine session for such an endpoint.
type Dialer interface {
	// Schemes returns the URL schemes served by this dialer, such as "unix".
	Schemes() []string
	// Dial opens a new session with the engine at the specified endpoint. A
	// dialer must check that it actually can talk to the engine, instead of
	// just returning a lazily connecting client.
	Dial(ctx context.Context, ep Endpoint) (Engine, error)
}

// Endpoint describes where and how to reach a container engine.
type Endpoint struct {
	URL      string // API endpoint, such as "unix:///run/docker.sock".
	CertPath string // optional directory with ca.pem, cert.pem and key.pem.
	Root     string // optional procfs root wormhole, such as "/proc/1/root".
}

// Dial opens a session with the container engine at the specified endpoint,
// using the engine plugin registered for the endpoint's URL scheme.
func Dial(ctx context.Context, ep Endpoint) (Engine, error) {
	u, err := url.Parse(ep.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine endpoint %q: %w", ep.URL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	for _, dialer := range plugger.Group[Dialer]().PluginsSymbols() {
		for _, s := range dialer.S.Schemes() {
			if s != scheme {
				continue
			}
			if ep, err = resolveWormhole(ep, u); err != nil {
				return nil, err
			}
			log.Debugf("dialing '%s' engine endpoint %s", dialer.Plugin, ep.URL)
			return dialer.S.Dial(ctx, ep)
		}
	}
	return nil, fmt.Errorf("no engine plugin for endpoint scheme %q", u.Scheme)
}

// Schemes returns the URL schemes served by the registered engine plugins.
func Schemes() []string {
	schemes := []string{}
	for _, dialer := range plugger.Group[Dialer]().Symbols() {
		schemes = append(schemes, dialer.Schemes()...)
	}
	return schemes
}

// resolveWormhole translates a unix domain socket path given relative to a
// (different) mount namespace into a path accessible from our mount
// namespace, going through the procfs root wormhole specified in the
// endpoint. Symbolic links are evaluated inside the wormhole's context.
func resolveWormhole(ep Endpoint, u *url.URL) (Endpoint, error) {
	if ep.Root == "" || u.Path == "" {
		return ep, nil
	}
	switch u.Scheme {
	case "unix", "podman":
	default:
		return ep, nil
	}
	root := strings.TrimSuffix(ep.Root, "/")
	apipath, err := procfsroot.EvalSymlinks(u.Path, root, procfsroot.EvalFullPath)
	if err != nil {
		return ep, fmt.Errorf("invalid API endpoint %s in the context of %s: %w",
			u.Path, root, err)
	}
	u.Path = root + apipath
	ep.URL = u.String()
	return ep, nil
}
