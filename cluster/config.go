package cluster

import "time"

// Options configures a Driver. It plays the role that the join_handler
// arguments and process-wide constants played in the original driver:
// values a deployment tunes, not values the protocol negotiates.
type Options struct {
	// MaxNodes bounds the roster. Two cooperating drivers must agree on
	// this value; it travels with the deployment, not on the wire.
	MaxNodes int

	// InitRetryInterval is how long the GCS Adapter sleeps between GCS
	// init attempts while init keeps failing (SPEC_FULL.md §4.1, §9).
	InitRetryInterval time.Duration

	// SendRetryInterval is how long it sleeps between retries of a send
	// that failed with "try again" (busy GCS, no backing off further).
	SendRetryInterval time.Duration
}

// DefaultOptions matches the constants in original_source/corosync.c:
// a 200ms init retry and a 1s send retry.
func DefaultOptions() Options {
	return Options{
		MaxNodes:          0, // resolved to wire.DefaultMaxNodes by NewRoster
		InitRetryInterval: 200 * time.Millisecond,
		SendRetryInterval: time.Second,
	}
}

// Validate reports whether o is usable, filling in zero-value durations
// with their defaults rather than rejecting them — only a negative
// MaxNodes is a genuine configuration error.
func (o *Options) Validate() error {
	if o.MaxNodes < 0 {
		return ErrMaxNodesInvalid
	}
	if o.InitRetryInterval <= 0 {
		o.InitRetryInterval = DefaultOptions().InitRetryInterval
	}
	if o.SendRetryInterval <= 0 {
		o.SendRetryInterval = DefaultOptions().SendRetryInterval
	}
	return nil
}
