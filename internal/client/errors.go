package client

import "errors"

// Sentinel errors for the failure conditions a caller is expected to
// branch on. Parse failures wrap protocol.ErrParse and unknown names wrap
// registry.ErrNotFound; everything else expected is here.
var (
	// ErrTimeout means no matching response arrived within the bounded
	// wait.
	ErrTimeout = errors.New("timeout waiting for inverter response")

	// ErrNotDiscovered means an addressed request was attempted before the
	// inverter serial number was known. Nothing is sent in that case.
	ErrNotDiscovered = errors.New("inverter serial number not discovered")

	// ErrTransport wraps socket-level failures such as an unreachable
	// network.
	ErrTransport = errors.New("transport failure")

	// ErrUnavailable means the inverter answered the batch but flagged
	// this single parameter as not readable.
	ErrUnavailable = errors.New("parameter unavailable")
)
