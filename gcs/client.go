// Package gcs abstracts the group communication service the cluster
// driver rides on top of: virtually synchronous membership notifications
// and totally-ordered multicast, the same contract corosync's cpg API
// gives the original driver (SPEC_FULL.md §4.7). LocalHub and GRPCClient are
// the two implementations; production code depends only on Client.
package gcs

import (
	"context"
	"errors"

	"github.com/sheepdog/clusterdrv/wire"
)

// ErrTryAgain reports that the transport is momentarily unable to accept
// a send (e.g. a saturated stream buffer). The driver retries on this
// error and only this error; anything else is treated as a hard failure.
var ErrTryAgain = errors.New("gcs: try again")

// Frame is one totally-ordered multicast delivery.
type Frame struct {
	Data []byte
}

// ConfChg is a membership-change notification. Member is the roster
// after the change; Left and Joined are this change's deltas, matching
// libcpg's cpg_confchg_notify_fn signature.
type ConfChg struct {
	Member []wire.NodeID
	Left   []wire.NodeID
	Joined []wire.NodeID
}

// Client is the driver's view of the group communication service.
// Implementations must deliver frames and confchg notifications in the
// same total order to every member (virtual synchrony); Send may be
// called concurrently with the Frames/Confchg consumer loop, since it
// touches no membership state.
type Client interface {
	// Init joins the underlying transport's copy of GroupName and
	// blocks until that has taken effect, returning this process's
	// group-assigned identity and the confchg describing its own
	// arrival. That initial confchg is never re-delivered on the
	// Confchg() channel. Callers are expected to retry Init themselves
	// on error (SPEC_FULL.md §4.1's bounded retry loop); Init does not
	// retry internally.
	Init(ctx context.Context, group string) (self wire.NodeID, initial ConfChg, err error)

	// Leave departs the transport group. Frames() and Confchg() close
	// once Leave completes.
	Leave(ctx context.Context) error

	// Send multicasts data to every current member, including the
	// caller. It returns ErrTryAgain if the transport cannot accept the
	// send right now; any other error is permanent.
	Send(ctx context.Context, data []byte) error

	// Frames is the channel of multicast deliveries, in total order.
	Frames() <-chan Frame

	// Confchg is the channel of membership-change notifications, in
	// total order with Frames() (a confchg and a frame never reorder
	// relative to each other across members).
	Confchg() <-chan ConfChg

	// Ready reports, without blocking, whether a frame or confchg is
	// already buffered and waiting to be received — the analogue of
	// poll(pfd, 1, 0) in SPEC_FULL.md §4.1, used to decide whether the
	// dispatcher should drain now or wait for the rest of the batch.
	Ready() bool

	// LocalAddr is this node's transport-level address as a 16-byte
	// buffer: an IPv6 address natively, or an IPv4 address zero-padded
	// left into the last four bytes (IPv4-mapped placement).
	LocalAddr() [16]byte

	// Descriptor is this node's transport-level address as the opaque
	// "address:port" string carried in a wire.NodeInfo — distinct from
	// LocalAddr's fixed 16-byte wire format, since the roster's
	// descriptor field only ever needs to be round-tripped, never
	// interpreted as raw address bytes by a peer.
	Descriptor() string
}
