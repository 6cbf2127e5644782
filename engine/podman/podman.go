// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package podman

import (
	"context"
	"net/url"

	"github.com/siemens/dockermon/engine"
	"github.com/siemens/dockermon/engine/moby"
	"github.com/thediveo/go-plugger/v3"
)

// Type identifying podman workloads.
const Type = "podman.io"

// DefaultAPIPath is the well-known location of the rootful podman service
// socket.
const DefaultAPIPath = "/run/podman/podman.sock"

// Register this podman engine dialer plugin. This statically ensures that the
// Dialer interface is fully implemented.
func init() {
	plugger.Group[engine.Dialer]().Register(
		&Dialer{}, plugger.WithPlugin("podman"))
}

// Dialer implements the engine.Dialer interface for podman services, using
// endpoint URLs of the form “podman:///path/to/podman.sock”. An empty path
// defaults to the rootful podman socket.
//
// We use the Docker API on podman, not least as the podman-specific API is
// very-very hard to use in production and podman-specific features aren't
// needed for supervising containers anyway.
type Dialer struct{}

// Schemes returns the "podman" scheme.
func (d *Dialer) Schemes() []string {
	return []string{"podman"}
}

// Dial connects to the podman service at the specified endpoint.
func (d *Dialer) Dial(ctx context.Context, ep engine.Endpoint) (engine.Engine, error) {
	return moby.New(ctx, APIURL(ep.URL), ep.CertPath, Type)
}

// APIURL translates a “podman://” endpoint URL into the Docker-compatible
// unix socket URL of the podman service.
func APIURL(endpoint string) string {
	path := DefaultAPIPath
	if u, err := url.Parse(endpoint); err == nil && u.Path != "" && u.Path != "/" {
		path = u.Path
	}
	return "unix://" + path
}
