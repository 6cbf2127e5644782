// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with [errors.Is]. The typed errors below wrap them,
// together with their causes.
var (
	// ErrConnect signals a failure to establish or use a session with a
	// container engine when connecting a host.
	ErrConnect = errors.New("cannot connect to container engine")
	// ErrStreamEnd signals that the engine's event stream ended.
	ErrStreamEnd = errors.New("container engine event stream ended")
	// ErrTransientFetch signals a failed inspection or stats query of a
	// single container that is worth retrying on the next poll.
	ErrTransientFetch = errors.New("transient container fetch failure")
	// ErrMalformedPayload signals an engine response lacking expected fields.
	ErrMalformedPayload = errors.New("malformed engine payload")
	// ErrCommand signals that the engine rejected a start, stop or restart
	// command.
	ErrCommand = errors.New("container command failed")
	// ErrDuplicateHost signals an attempt to register a host under an already
	// registered name.
	ErrDuplicateHost = errors.New("duplicate host name")
)

// ConnectError is returned when connecting a host fails.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("host %s: %s: %s", e.Host, ErrConnect.Error(), e.Err.Error())
}

func (e *ConnectError) Unwrap() []error { return []error{ErrConnect, e.Err} }

// FetchError is a failed inspection or stats query of a container.
type FetchError struct {
	Container string
	Op        string // "inspect" or "stats"
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("container %s: %s failed: %s", e.Container, e.Op, e.Err.Error())
}

func (e *FetchError) Unwrap() []error { return []error{ErrTransientFetch, e.Err} }

// MalformedPayloadError describes a missing or unusable field in an engine
// response, together with the raw fragment it was looked for in.
type MalformedPayloadError struct {
	Container string
	Field     string
	Raw       string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("container %s: %s: %s in %s",
		e.Container, ErrMalformedPayload.Error(), e.Field, e.Raw)
}

func (e *MalformedPayloadError) Unwrap() error { return ErrMalformedPayload }

// CommandError is returned when the engine rejects a container command.
type CommandError struct {
	Container string
	Command   string // "start", "stop" or "restart"
	Err       error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("container %s: %s failed: %s", e.Container, e.Command, e.Err.Error())
}

func (e *CommandError) Unwrap() []error { return []error{ErrCommand, e.Err} }
