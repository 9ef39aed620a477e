package wire

import (
	"encoding/binary"
	"fmt"
)

// nodeRecordLen is the fixed on-wire size of one NodeInfo record:
// nodeid(4) + pid(4) + gone(4) + descriptor length(2) + descriptor(MaxDescriptorLen).
const nodeRecordLen = 4 + 4 + 4 + 2 + MaxDescriptorLen

// headerLen is the fixed portion preceding the roster array: sender
// record, one type/result byte, msg_len(4), nr_nodes(4).
const headerLen = nodeRecordLen + 1 + 4 + 4

// Codec encodes and decodes wire envelopes for a driver configured with
// a given MaxNodes bound.
type Codec struct {
	MaxNodes int
}

// NewCodec returns a codec bounded at maxNodes; 0 selects DefaultMaxNodes.
func NewCodec(maxNodes int) *Codec {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Codec{MaxNodes: maxNodes}
}

func putNodeRecord(buf []byte, n NodeInfo) error {
	if len(n.Descriptor) > MaxDescriptorLen {
		return fmt.Errorf("wire: descriptor too long (%d > %d)", len(n.Descriptor), MaxDescriptorLen)
	}
	binary.LittleEndian.PutUint32(buf[0:4], n.ID.NodeID)
	binary.LittleEndian.PutUint32(buf[4:8], n.ID.PID)
	gone := uint32(0)
	if n.Gone {
		gone = 1
	}
	binary.LittleEndian.PutUint32(buf[8:12], gone)
	binary.LittleEndian.PutUint16(buf[12:14], uint16(len(n.Descriptor)))
	copy(buf[14:14+MaxDescriptorLen], n.Descriptor)
	return nil
}

func getNodeRecord(buf []byte) (NodeInfo, error) {
	if len(buf) < nodeRecordLen {
		return NodeInfo{}, fmt.Errorf("wire: short node record (%d bytes)", len(buf))
	}
	dlen := binary.LittleEndian.Uint16(buf[12:14])
	if int(dlen) > MaxDescriptorLen {
		return NodeInfo{}, fmt.Errorf("wire: descriptor length %d exceeds max %d", dlen, MaxDescriptorLen)
	}
	return NodeInfo{
		ID: NodeID{
			NodeID: binary.LittleEndian.Uint32(buf[0:4]),
			PID:    binary.LittleEndian.Uint32(buf[4:8]),
		},
		Gone:       binary.LittleEndian.Uint32(buf[8:12]) != 0,
		Descriptor: string(buf[14 : 14+dlen]),
	}, nil
}

// Encode returns the envelope as two scatter/gather segments: the fixed
// header plus roster array, and the trailing payload. Callers that write
// to a single stream (e.g. a gRPC byte frame) may concatenate them; the
// split exists so a transport capable of iovec-style writes never has to
// copy the (potentially large) payload into the header buffer.
func (c *Codec) Encode(e Envelope) (head []byte, payload []byte, err error) {
	nrNodes := len(e.Nodes)
	if nrNodes > c.MaxNodes {
		return nil, nil, fmt.Errorf("wire: nr_nodes %d exceeds max_nodes %d", nrNodes, c.MaxNodes)
	}

	// The roster array always spans MaxNodes records; only the first
	// nr_nodes are filled, the rest stay zeroed.
	head = make([]byte, headerLen+c.MaxNodes*nodeRecordLen)
	if err := putNodeRecord(head[0:nodeRecordLen], e.Sender); err != nil {
		return nil, nil, err
	}
	off := nodeRecordLen
	head[off] = byte(e.Type&0x0f) | byte(e.Result&0x0f)<<4
	off++
	binary.LittleEndian.PutUint32(head[off:off+4], uint32(len(e.Payload)))
	off += 4
	binary.LittleEndian.PutUint32(head[off:off+4], uint32(nrNodes))
	off += 4
	for i, n := range e.Nodes {
		rec := head[off+i*nodeRecordLen : off+(i+1)*nodeRecordLen]
		if err := putNodeRecord(rec, n); err != nil {
			return nil, nil, err
		}
	}

	return head, e.Payload, nil
}

// EncodeFrame concatenates the two segments into a single contiguous
// frame for transports (like this repo's gRPC hub) that move opaque
// byte blobs rather than iovecs.
func (c *Codec) EncodeFrame(e Envelope) ([]byte, error) {
	head, payload, err := c.Encode(e)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, len(head)+len(payload))
	copy(frame, head)
	copy(frame[len(head):], payload)
	return frame, nil
}

// Decode parses a full frame (header + roster array + payload) as
// arrived from the transport. Malformed frames return an error; callers
// must drop them and log rather than panic, per SPEC_FULL.md §4.2.
func (c *Codec) Decode(frame []byte) (Envelope, error) {
	if len(frame) < headerLen {
		return Envelope{}, fmt.Errorf("wire: frame too short (%d bytes, need at least %d)", len(frame), headerLen)
	}

	sender, err := getNodeRecord(frame[0:nodeRecordLen])
	if err != nil {
		return Envelope{}, err
	}
	off := nodeRecordLen
	typeResult := frame[off]
	off++
	msgLen := binary.LittleEndian.Uint32(frame[off : off+4])
	off += 4
	nrNodes := binary.LittleEndian.Uint32(frame[off : off+4])
	off += 4

	if int(nrNodes) > c.MaxNodes {
		return Envelope{}, fmt.Errorf("wire: nr_nodes %d exceeds max_nodes %d", nrNodes, c.MaxNodes)
	}

	nodesEnd := off + c.MaxNodes*nodeRecordLen
	if nodesEnd > len(frame) {
		return Envelope{}, fmt.Errorf("wire: frame truncated before roster array")
	}
	nodes := make([]NodeInfo, nrNodes)
	for i := 0; i < int(nrNodes); i++ {
		rec := frame[off+i*nodeRecordLen : off+(i+1)*nodeRecordLen]
		n, err := getNodeRecord(rec)
		if err != nil {
			return Envelope{}, err
		}
		nodes[i] = n
	}

	tail := frame[nodesEnd:]
	if uint32(len(tail)) != msgLen {
		return Envelope{}, fmt.Errorf("wire: msg_len %d does not match trailing bytes %d", msgLen, len(tail))
	}
	var payload []byte
	if msgLen > 0 {
		payload = make([]byte, msgLen)
		copy(payload, tail)
	}

	return Envelope{
		Sender:  sender,
		Type:    MessageKind(typeResult & 0x0f),
		Result:  JoinResult(typeResult >> 4),
		Nodes:   nodes,
		Payload: payload,
	}, nil
}
