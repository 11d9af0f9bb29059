package state

import "errors"

var (
	// ErrMalformedUpdate is returned when a routing payload is missing required fields.
	ErrMalformedUpdate = errors.New("malformed update")
	// ErrUnknownDestination marks a trace probe with no usable forwarding entry.
	ErrUnknownDestination = errors.New("unknown destination")
	// ErrStaleUpdate marks a link state record that failed the sequence number check.
	ErrStaleUpdate = errors.New("stale update")
	// ErrInconsistentChange marks a scheduled change that does not match the current topology.
	ErrInconsistentChange = errors.New("inconsistent topology change")
)
