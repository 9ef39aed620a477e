package cluster

import "github.com/sheepdog/clusterdrv/wire"

//go:generate mockgen -source=$GOFILE -destination=mock_upcalls_test.go -package=cluster

// Upcalls is the host daemon's side of the five callbacks SPEC_FULL.md
// §4.6 specifies. None may block indefinitely; BlockRequested reports
// acceptance rather than blocking until accepted. Payload slices are
// owned by the driver for the call's duration and must not be retained.
type Upcalls interface {
	// CheckJoin adjudicates a JOIN_REQUEST. Only ever invoked on the
	// current master, and at most once per event (SPEC_FULL.md §8).
	CheckJoin(sender wire.NodeID, payload []byte) wire.JoinResult

	// JoinCompleted reports the outcome of a JOIN_REQUEST this node
	// observed, successful or not, with the roster as it stands after
	// the join (or unchanged, for FAIL).
	JoinCompleted(sender wire.NodeID, roster []wire.NodeInfo, result wire.JoinResult, payload []byte)

	// LeaveCompleted reports a node's departure once its LEAVE event is
	// processed and it has been removed from the roster.
	LeaveCompleted(sender wire.NodeID, roster []wire.NodeInfo)

	// BlockRequested asks whether the host accepts running the blocking
	// operation sender is requesting right now. A false return means
	// "not yet" — the dispatcher will ask again on a later drain until
	// it returns true or the block is cancelled by a matching UNBLOCK.
	BlockRequested(sender wire.NodeID) bool

	// NotifyReceived delivers a NOTIFY payload.
	NotifyReceived(sender wire.NodeID, payload []byte)
}
