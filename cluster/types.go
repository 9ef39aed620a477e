package cluster

import (
	"container/list"

	"github.com/sheepdog/clusterdrv/wire"
)

// EventKind is the internal event vocabulary the dispatcher drains.
// UNBLOCK is deliberately absent: it cancels an outstanding BLOCK rather
// than being an event of its own (SPEC_FULL.md §3).
type EventKind int

const (
	EventJoinRequest EventKind = iota
	EventJoinResponse
	EventLeave
	EventBlock
	EventNotify
)

func (k EventKind) String() string {
	switch k {
	case EventJoinRequest:
		return "JOIN_REQUEST"
	case EventJoinResponse:
		return "JOIN_RESPONSE"
	case EventLeave:
		return "LEAVE"
	case EventBlock:
		return "BLOCK"
	case EventNotify:
		return "NOTIFY"
	default:
		return "UNKNOWN"
	}
}

// Event is a queued cluster event. Zero-value HasPayload/HasResult
// distinguish "not arrived yet" from "arrived with an empty value",
// which the dispatcher's gating rules depend on (e.g. a JOIN_REQUEST
// placeholder queued from a membership-change callback before the
// JOIN_REQUEST multicast carrying its payload has arrived).
type Event struct {
	Kind   EventKind
	Sender wire.NodeInfo // full sender info, descriptor captured off the wire

	Payload    []byte
	HasPayload bool

	JoinResult wire.JoinResult
	HasResult  bool

	RosterSnapshot []wire.NodeInfo

	// Callbacked records that a "slow" upcall for this event has fired
	// at least once and must not fire again except when a BLOCK event
	// is released by its matching UNBLOCK (SPEC_FULL.md §3).
	Callbacked bool
}

// queue is a FIFO of *Event supporting O(1) head access/pop and O(n)
// removal of an arbitrary element, which UNBLOCK and departing-sender
// cancellation both need. It is single-producer/single-consumer and
// relies on the driver loop's single-goroutine discipline for safety —
// no locking, per SPEC_FULL.md §5.
type queue struct {
	l *list.List
}

func newQueue() *queue {
	return &queue{l: list.New()}
}

func (q *queue) PushBack(e *Event) *list.Element {
	return q.l.PushBack(e)
}

func (q *queue) Front() *Event {
	if q.l.Len() == 0 {
		return nil
	}
	return q.l.Front().Value.(*Event)
}

func (q *queue) PopFront() *Event {
	front := q.l.Front()
	if front == nil {
		return nil
	}
	q.l.Remove(front)
	return front.Value.(*Event)
}

func (q *queue) Len() int { return q.l.Len() }

// Find returns the first event matching pred, or nil.
func (q *queue) Find(pred func(*Event) bool) *Event {
	for el := q.l.Front(); el != nil; el = el.Next() {
		if e := el.Value.(*Event); pred(e) {
			return e
		}
	}
	return nil
}

// Remove deletes the first event matching pred, returning whether one
// was found.
func (q *queue) Remove(pred func(*Event) bool) bool {
	for el := q.l.Front(); el != nil; el = el.Next() {
		if pred(el.Value.(*Event)) {
			q.l.Remove(el)
			return true
		}
	}
	return false
}
