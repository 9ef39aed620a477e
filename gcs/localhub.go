package gcs

import (
	"context"
	"fmt"
	"sync"

	"github.com/sheepdog/clusterdrv/wire"
)

// LocalHub is an in-process Client implementation: every member of the
// same *Hub sees the same total order of frames and confchg
// notifications, with no network involved. It stands in for corosync in
// tests and for the single-process "interactive" mode driven by the CLI
// (SPEC_FULL.md §4.7, §4.8).
//
// A Hub serializes every Init/Leave/Send through a single mutex so the
// order members observe is deterministic; delivery to each member's
// buffered channel also happens under that lock and never blocks (Send
// checks capacity first; a confchg to a full channel is dropped).
type Hub struct {
	mu       sync.Mutex
	nextID   uint32
	members  map[uint32]*hubMember
	capacity int
}

type hubMember struct {
	id      wire.NodeID
	addr    string
	frames  chan Frame
	confchg chan ConfChg
	left    bool
}

// NewHub returns a Hub whose per-member channels are buffered to
// capacity frames/confchgs; a saturated buffer makes Send return
// ErrTryAgain to the sender, same as a busy corosync ring would.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 64
	}
	return &Hub{members: make(map[uint32]*hubMember), capacity: capacity}
}

// LocalHub is a Client bound to one member of a Hub. Construct one per
// simulated node via Hub.NewClient.
type LocalHub struct {
	hub    *Hub
	addr   string
	member *hubMember
}

// NewClient returns a not-yet-initialized Client for a new member of h,
// addressed as addr (used verbatim as its Descriptor, and converted by
// LocalAddr into the 16-byte form).
func (h *Hub) NewClient(addr string) *LocalHub {
	return &LocalHub{hub: h, addr: addr}
}

func (l *LocalHub) Init(ctx context.Context, group string) (wire.NodeID, ConfChg, error) {
	h := l.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := wire.NodeID{NodeID: h.nextID, PID: h.nextID}
	m := &hubMember{
		id:      id,
		addr:    l.addr,
		frames:  make(chan Frame, h.capacity),
		confchg: make(chan ConfChg, h.capacity),
	}
	h.members[id.NodeID] = m
	l.member = m

	member := h.liveMemberIDsLocked()
	initial := ConfChg{Member: member, Joined: []wire.NodeID{id}}

	// Every other live member also observes this join.
	for mid, other := range h.members {
		if mid == id.NodeID || other.left {
			continue
		}
		h.deliverConfChgLocked(other, ConfChg{Member: member, Joined: []wire.NodeID{id}})
	}

	return id, initial, nil
}

func (l *LocalHub) Leave(ctx context.Context) error {
	h := l.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	m := l.member
	if m == nil || m.left {
		return nil
	}
	m.left = true
	close(m.frames)
	close(m.confchg)

	remaining := h.liveMemberIDsLocked()
	for _, other := range h.members {
		if other.left {
			continue
		}
		h.deliverConfChgLocked(other, ConfChg{Member: remaining, Left: []wire.NodeID{m.id}})
	}
	return nil
}

func (l *LocalHub) Send(ctx context.Context, data []byte) error {
	h := l.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if l.member == nil || l.member.left {
		return fmt.Errorf("gcs: local hub member not joined")
	}

	// Check every member has room before delivering to any of them: a
	// multicast either lands on the whole group in the same order or
	// not at all, never partially.
	for _, m := range h.members {
		if !m.left && len(m.frames) == cap(m.frames) {
			return ErrTryAgain
		}
	}

	frame := Frame{Data: append([]byte(nil), data...)}
	for _, m := range h.members {
		if !m.left {
			m.frames <- frame
		}
	}
	return nil
}

func (l *LocalHub) Frames() <-chan Frame    { return l.member.frames }
func (l *LocalHub) Confchg() <-chan ConfChg { return l.member.confchg }
func (l *LocalHub) LocalAddr() [16]byte     { return localAddrBytes(l.addr) }
func (l *LocalHub) Descriptor() string      { return l.addr }

// Ready reports whether this member's next receive would return
// immediately, checked across both channels since either can carry the
// next item in the batch.
func (l *LocalHub) Ready() bool {
	if l.member == nil {
		return false
	}
	return len(l.member.frames) > 0 || len(l.member.confchg) > 0
}

func (h *Hub) liveMemberIDsLocked() []wire.NodeID {
	out := make([]wire.NodeID, 0, len(h.members))
	for _, m := range h.members {
		if !m.left {
			out = append(out, m.id)
		}
	}
	return out
}

func (h *Hub) deliverConfChgLocked(m *hubMember, cc ConfChg) {
	select {
	case m.confchg <- cc:
	default:
		// A member too far behind to keep up with membership traffic is
		// already in trouble; corosync would eventually kill its ring
		// too. Drop rather than block the whole hub.
	}
}
