package cluster

import (
	"fmt"
	"time"

	"github.com/sheepdog/clusterdrv/metrics"
	"github.com/sheepdog/clusterdrv/wire"
)

// sendFunc multicasts env to every current member, including this node.
// The driver (SPEC_FULL.md §4.1) supplies the real GCS-backed
// implementation; tests supply a recording stub.
type sendFunc func(env wire.Envelope) error

// logFunc receives driver-loop diagnostics. Tests pass a no-op; the real
// driver wires it to the logger package.
type logFunc func(format string, args ...interface{})

// core holds the single-goroutine mutable state shared by Event Intake
// (SPEC_FULL.md §4.3) and the Event Dispatcher (§4.4–§4.5): the roster,
// the two event queues, and the join/election/partition bookkeeping.
// Nothing here takes a lock — correctness depends on one goroutine ever
// touching it, per §5.
type core struct {
	roster *Roster

	thisNode wire.NodeID

	blockQ    *queue
	nonblockQ *queue

	joinFinished bool
	selfElect    bool

	majorityThreshold int

	upcalls Upcalls
	send    sendFunc
	log     logFunc
	metrics *metrics.Collector

	// exit is invoked when this node, acting as master, answers a
	// JOIN_REQUEST with MASTER_TRANSFER: the master has handed off and
	// must restart (SPEC_FULL.md §4.5, §6 exit code (c)). Swapped out in
	// tests to observe the decision instead of killing the process.
	exit func(reason error)
}

func newCore(thisNode wire.NodeID, maxNodes int, upcalls Upcalls, send sendFunc, log logFunc, exit func(error), collector *metrics.Collector) *core {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	return &core{
		roster:    NewRoster(maxNodes),
		thisNode:  thisNode,
		blockQ:    newQueue(),
		nonblockQ: newQueue(),
		upcalls:   upcalls,
		send:      send,
		log:       log,
		metrics:   collector,
		exit:      exit,
	}
}

func matchKind(kind EventKind, id wire.NodeID) func(*Event) bool {
	return func(e *Event) bool { return e.Kind == kind && e.Sender.ID.Equal(id) }
}

// Snapshot is a read-only view of one instant of core state, used by the
// interactive dashboard (SPEC_FULL.md §4.8). It is only ever produced on
// the driver loop goroutine itself, via Driver.Snapshot's request/reply
// channel, so it never races with HandleDeliver/HandleConfChg/Dispatch.
type Snapshot struct {
	Self         wire.NodeID
	Roster       []wire.NodeInfo
	IsMaster     bool
	JoinFinished bool
	BlockQueue   int
	NonblockQueue int
}

func (c *core) snapshot() Snapshot {
	return Snapshot{
		Self:          c.thisNode,
		Roster:        c.roster.Entries(),
		IsMaster:      c.roster.IsMaster(c.thisNode),
		JoinFinished:  c.joinFinished,
		BlockQueue:    c.blockQ.Len(),
		NonblockQueue: c.nonblockQ.Len(),
	}
}

// HandleDeliver is the Event Intake half of a totally-ordered multicast
// delivery (SPEC_FULL.md §4.3). It never blocks and never invokes an
// upcall directly; it only mutates queued placeholders or enqueues new
// events for the dispatcher to drain.
func (c *core) HandleDeliver(env wire.Envelope) {
	switch env.Type {
	case wire.MsgJoinRequest:
		// A placeholder for this sender was queued by the confchg
		// handler when it joined; this multicast carries its payload.
		ev := c.nonblockQ.Find(matchKind(EventJoinRequest, env.Sender.ID))
		if ev == nil {
			return
		}
		ev.Sender = env.Sender
		ev.Payload = append([]byte(nil), env.Payload...)
		ev.HasPayload = true

	case wire.MsgJoinResponse:
		ev := c.nonblockQ.Find(matchKind(EventJoinRequest, env.Sender.ID))
		if ev == nil {
			return
		}
		ev.Kind = EventJoinResponse
		ev.JoinResult = env.Result
		ev.HasResult = true
		ev.RosterSnapshot = append([]wire.NodeInfo(nil), env.Nodes...)
		ev.Payload = append([]byte(nil), env.Payload...)
		ev.HasPayload = true

	case wire.MsgNotify:
		c.nonblockQ.PushBack(&Event{
			Kind: EventNotify, Sender: env.Sender,
			Payload: append([]byte(nil), env.Payload...), HasPayload: true,
		})

	case wire.MsgBlock:
		c.blockQ.PushBack(&Event{Kind: EventBlock, Sender: env.Sender})

	case wire.MsgUnblock:
		c.blockQ.Remove(matchKind(EventBlock, env.Sender.ID))

	case wire.MsgLeave:
		// A voluntary LEAVE multicast is tombstoned before queuing, like
		// a membership LEAVE notification, so a departing master can't
		// deadlock its own in-flight joins. Unlike the confchg path, it
		// does not cancel the sender's pending JOIN_REQUEST or BLOCK.
		c.roster.MarkGoneIfMaster(env.Sender.ID)
		c.nonblockQ.PushBack(&Event{Kind: EventLeave, Sender: env.Sender})

	default:
		c.log("intake: ignoring envelope of unknown type %d from %s", env.Type, env.Sender.ID)
	}
}

// HandleConfChg is the membership-change half of Event Intake
// (SPEC_FULL.md §4.3). member is the post-change membership list;
// left and joined are this change's deltas. A non-nil error is fatal —
// the caller must terminate the process (§6).
func (c *core) HandleConfChg(member, left, joined []wire.NodeID) error {
	if len(left) > 0 {
		if c.majorityThreshold == 0 {
			total := len(member) + len(left)
			if total > 2 {
				c.majorityThreshold = total/2 + 1
			}
		}
		if len(member) == 0 {
			return fmt.Errorf("%w: every node reported gone", ErrNICFailure)
		}
		if c.majorityThreshold > 0 && len(member) < c.majorityThreshold {
			return fmt.Errorf("%w: %d of %d members remain, need %d", ErrPartitionDetected, len(member), memberCount(member, left), c.majorityThreshold)
		}
	}

	for _, id := range left {
		if c.nonblockQ.Remove(matchKind(EventJoinRequest, id)) {
			// Left before ever completing its join: nothing was ever
			// added to the roster, so there is nothing to leave.
			continue
		}
		c.blockQ.Remove(matchKind(EventBlock, id))
		c.roster.MarkGoneIfMaster(id)
		c.nonblockQ.PushBack(&Event{Kind: EventLeave, Sender: wire.NodeInfo{ID: id}})
	}

	for _, id := range joined {
		c.nonblockQ.PushBack(&Event{Kind: EventJoinRequest, Sender: wire.NodeInfo{ID: id}})
	}

	if !c.joinFinished && !c.selfElect {
		c.selfElect = everyMemberHasPendingJoin(c.nonblockQ, member)
	}

	return nil
}

func memberCount(member, left []wire.NodeID) int { return len(member) + len(left) }

func everyMemberHasPendingJoin(q *queue, member []wire.NodeID) bool {
	for _, id := range member {
		if q.Find(matchKind(EventJoinRequest, id)) == nil {
			return false
		}
	}
	return true
}

// Dispatch drains the queues (SPEC_FULL.md §4.4–§4.5). morePending must
// report whether the transport already has further input queued up
// from this same batch; when true, Dispatch returns immediately without
// touching anything, mirroring a non-blocking poll on the GCS fd.
func (c *core) Dispatch(morePending bool) {
	if morePending {
		return
	}
	start := time.Now()
	defer func() {
		c.metrics.ObserveDispatch(time.Since(start))
		c.metrics.SetRosterState(c.roster.Len(), c.roster.IsMaster(c.thisNode))
		c.metrics.SetQueueDepths(c.blockQ.Len(), c.nonblockQ.Len())
	}()
	c.majorityThreshold = 0

	for {
		q := c.nonblockQ
		if q.Len() == 0 {
			q = c.blockQ
			if q.Len() == 0 {
				return
			}
		}
		ev := q.Front()

		if !c.joinFinished {
			switch ev.Kind {
			case EventJoinRequest:
				if c.selfElect {
					c.joinFinished = true
					c.roster.Clear()
				}
			case EventJoinResponse:
				if ev.Sender.ID.Equal(c.thisNode) {
					c.joinFinished = true
					c.roster.Reset(ev.RosterSnapshot)
				}
			}
			if !c.joinFinished {
				return
			}
		}

		if !c.dispatchOne(ev) {
			return
		}
		q.PopFront()
	}
}

// dispatchOne processes the head of whichever queue Dispatch picked.
// Its return value tells Dispatch whether to pop-and-continue (true) or
// stop draining and leave the event at the head for a later Dispatch
// call (false) — the latter for an event still waiting on something
// (a payload, a response, host acceptance of a block).
func (c *core) dispatchOne(ev *Event) bool {
	switch ev.Kind {
	case EventJoinRequest:
		if !c.roster.IsMaster(c.thisNode) || !ev.HasPayload || ev.Callbacked {
			return false
		}
		result := c.upcalls.CheckJoin(ev.Sender.ID, ev.Payload)
		if result == wire.JoinMasterTransfer {
			c.roster.Clear()
		}
		err := c.send(wire.Envelope{
			Sender:  ev.Sender,
			Type:    wire.MsgJoinResponse,
			Result:  result,
			Nodes:   c.roster.Entries(),
			Payload: ev.Payload,
		})
		ev.Callbacked = true
		if err != nil {
			c.log("join response to %s failed: %v", ev.Sender.ID, err)
		}
		if result == wire.JoinMasterTransfer {
			c.log("handing off mastership to %s, exiting: retry once the new master is up", ev.Sender.ID)
			c.exit(fmt.Errorf("%w: handing off to %s", ErrMasterTransfer, ev.Sender.ID))
		}
		return false

	case EventJoinResponse:
		if ev.JoinResult != wire.JoinFail {
			if err := c.roster.Add(ev.Sender); err != nil {
				c.log("adding %s to roster: %v", ev.Sender.ID, err)
			}
		}
		c.upcalls.JoinCompleted(ev.Sender.ID, c.roster.Entries(), ev.JoinResult, ev.Payload)
		c.metrics.IncJoin(ev.JoinResult.String())
		return true

	case EventLeave:
		if c.roster.Remove(ev.Sender.ID) {
			c.upcalls.LeaveCompleted(ev.Sender.ID, c.roster.Entries())
			c.metrics.IncLeave()
		}
		return true

	case EventBlock:
		if ev.Callbacked {
			return false
		}
		accepted := c.upcalls.BlockRequested(ev.Sender.ID)
		if accepted {
			c.metrics.IncBlock()
		}
		ev.Callbacked = accepted
		return false

	case EventNotify:
		c.upcalls.NotifyReceived(ev.Sender.ID, ev.Payload)
		c.metrics.IncNotify()
		return true

	default:
		return true
	}
}
