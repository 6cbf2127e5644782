/*
Package engine defines the interface between the container runtime supervision
in dockermon and the container engines it talks to, as well as the plugin
interface for engine dialers.

The sub-package “all” pulls in all engine dialer plugins supported
out-of-the-box of this module. The individual engine-specific dialer plugins are
implemented in the other sub-packages: for instance, the “moby” and “podman”
sub-packages.

Dialers are looked up by the scheme of an endpoint URL, so “unix:///run/docker.sock”
gets handled by the plugin claiming the “unix” scheme.
*/
package engine
