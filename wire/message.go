// Package wire implements the on-the-wire envelope exchanged between
// cluster members over the group-communication service. Byte layout is
// part of the deployment's compatibility surface and must not change
// without a protocol bump.
package wire

import "fmt"

// GroupName is the 8-byte literal group identity multicasts are sent
// under, matching existing deployments of this driver.
const GroupName = "sheepdog"

// DefaultMaxNodes bounds the roster and the fixed-size node array carried
// in every envelope. It is a config knob, not a wire constant: two
// deployments must agree on it to interoperate, same as MAX_NODES did in
// the original driver.
const DefaultMaxNodes = 128

// MaxDescriptorLen bounds the opaque per-node descriptor (address:port)
// embedded in each wire NodeInfo record.
const MaxDescriptorLen = 64

// MessageKind identifies the multicast payload kind on the wire.
type MessageKind uint8

const (
	MsgJoinRequest MessageKind = iota
	MsgJoinResponse
	MsgLeave
	MsgNotify
	MsgBlock
	MsgUnblock
)

func (k MessageKind) String() string {
	switch k {
	case MsgJoinRequest:
		return "JOIN_REQUEST"
	case MsgJoinResponse:
		return "JOIN_RESPONSE"
	case MsgLeave:
		return "LEAVE"
	case MsgNotify:
		return "NOTIFY"
	case MsgBlock:
		return "BLOCK"
	case MsgUnblock:
		return "UNBLOCK"
	default:
		return fmt.Sprintf("MessageKind(%d)", uint8(k))
	}
}

// JoinResult is the master's verdict on a JOIN_REQUEST.
type JoinResult uint8

const (
	JoinSuccess JoinResult = iota
	JoinFail
	JoinLater
	JoinMasterTransfer
)

func (r JoinResult) String() string {
	switch r {
	case JoinSuccess:
		return "SUCCESS"
	case JoinFail:
		return "FAIL"
	case JoinLater:
		return "JOIN_LATER"
	case JoinMasterTransfer:
		return "MASTER_TRANSFER"
	default:
		return fmt.Sprintf("JoinResult(%d)", uint8(r))
	}
}

// NodeID is a cluster-unique pair assigned by the GCS layer. Equality
// uses both fields.
type NodeID struct {
	NodeID uint32
	PID    uint32
}

func (n NodeID) Equal(o NodeID) bool {
	return n.NodeID == o.NodeID && n.PID == o.PID
}

func (n NodeID) String() string {
	return fmt.Sprintf("%d/%d", n.NodeID, n.PID)
}

// NodeInfo is a NodeID plus the opaque host-supplied descriptor. The
// descriptor is empty until the node's JOIN_RESPONSE has been processed.
type NodeInfo struct {
	ID         NodeID
	Gone       bool
	Descriptor string // "address:port", see SPEC_FULL.md open-question decision
}

// Envelope is the decoded form of the wire message described in
// SPEC_FULL.md §4.2.
type Envelope struct {
	Sender  NodeInfo
	Type    MessageKind
	Result  JoinResult
	Nodes   []NodeInfo // first NrNodes of the wire's fixed-size array
	Payload []byte
}
