package cluster

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sheepdog/clusterdrv/metrics"
	"github.com/sheepdog/clusterdrv/wire"
)

// recordingSend captures every envelope core asks to have multicast and
// feeds it straight back through HandleDeliver, the way a LocalHub of
// one node would.
type recordingSend struct {
	c   *core
	log []wire.Envelope
}

func (r *recordingSend) send(env wire.Envelope) error {
	r.log = append(r.log, env)
	r.c.HandleDeliver(env)
	// A real driver loop observes its own multicast as a fresh Frame on
	// the next select iteration and dispatches again; recurse here to
	// get the same effect in a single-threaded test.
	r.c.Dispatch(false)
	return nil
}

func newTestCore(t *testing.T, thisNode wire.NodeID, upcalls Upcalls) (*core, *recordingSend) {
	t.Helper()
	rs := &recordingSend{}
	c := newCore(thisNode, 8, upcalls, nil, nil, func(error) { t.Fatal("unexpected fatal exit") }, nil)
	rs.c = c
	c.send = rs.send
	return c, rs
}

// TestSingleNodeBootstrap covers scenario 1: a lone node joins an empty
// cluster, self-elects, and answers its own JOIN_REQUEST.
func TestSingleNodeBootstrap(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl)
	self := nid(1)

	up.EXPECT().CheckJoin(self, []byte("hello")).Return(wire.JoinSuccess)
	up.EXPECT().JoinCompleted(self, gomock.Any(), wire.JoinSuccess, []byte("hello")).
		Do(func(_ wire.NodeID, roster []wire.NodeInfo, _ wire.JoinResult, _ []byte) {
			if len(roster) != 1 || !roster[0].ID.Equal(self) {
				t.Fatalf("roster after self-join = %+v, want just self", roster)
			}
		})

	c, _ := newTestCore(t, self, up)

	if err := c.HandleConfChg([]wire.NodeID{self}, nil, []wire.NodeID{self}); err != nil {
		t.Fatalf("HandleConfChg: %v", err)
	}
	c.Dispatch(false)
	if !c.selfElect {
		t.Fatal("selfElect should be true once the sole member has a pending join placeholder")
	}

	if err := c.send(wire.Envelope{
		Sender: wire.NodeInfo{ID: self, Descriptor: "127.0.0.1:1"},
		Type:   wire.MsgJoinRequest, Payload: []byte("hello"),
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	c.Dispatch(false)

	if !c.joinFinished {
		t.Fatal("joinFinished should be true after processing the self JOIN_RESPONSE")
	}
	if c.roster.Len() != 1 {
		t.Fatalf("roster len = %d, want 1", c.roster.Len())
	}
}

// TestSecondNodeJoinsExistingMaster covers scenario 2: node A is already
// master; node B's JOIN_REQUEST is answered by A and adopted by B.
func TestSecondNodeJoinsExistingMaster(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl)
	a := nid(1)
	b := nid(2)

	c, _ := newTestCore(t, a, up)
	// Fast-forward A to already being the sole, joined master.
	if err := c.HandleConfChg([]wire.NodeID{a}, nil, []wire.NodeID{a}); err != nil {
		t.Fatal(err)
	}
	c.selfElect = true
	c.Dispatch(false)
	up.EXPECT().CheckJoin(a, []byte("a-payload")).Return(wire.JoinSuccess)
	up.EXPECT().JoinCompleted(a, gomock.Any(), wire.JoinSuccess, []byte("a-payload"))
	c.HandleDeliver(wire.Envelope{Sender: wire.NodeInfo{ID: a}, Type: wire.MsgJoinRequest, Payload: []byte("a-payload")})
	c.Dispatch(false)
	if c.roster.Len() != 1 {
		t.Fatalf("setup: roster len = %d, want 1", c.roster.Len())
	}

	// B joins.
	up.EXPECT().CheckJoin(b, []byte("b-payload")).Return(wire.JoinSuccess)
	up.EXPECT().JoinCompleted(b, gomock.Any(), wire.JoinSuccess, []byte("b-payload")).Times(1)

	if err := c.HandleConfChg([]wire.NodeID{a, b}, nil, []wire.NodeID{b}); err != nil {
		t.Fatal(err)
	}
	c.Dispatch(false)
	c.HandleDeliver(wire.Envelope{
		Sender: wire.NodeInfo{ID: b, Descriptor: "b:2"}, Type: wire.MsgJoinRequest, Payload: []byte("b-payload"),
	})
	c.Dispatch(false)

	if c.roster.Len() != 2 {
		t.Fatalf("roster len = %d, want 2", c.roster.Len())
	}
}

// TestJoinCancelledByDepartureBeforePayloadArrives covers the boundary
// case of a node's JOIN_REQUEST cancelled by its own departure before a
// payload ever arrives — no upcall, no roster change.
func TestJoinCancelledByDepartureBeforePayloadArrives(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl) // expects nothing
	a := nid(1)
	b := nid(2)

	c, _ := newTestCore(t, a, up)
	if err := c.HandleConfChg([]wire.NodeID{a}, nil, []wire.NodeID{a}); err != nil {
		t.Fatal(err)
	}
	c.selfElect = true
	c.Dispatch(false)

	if err := c.HandleConfChg([]wire.NodeID{a, b}, nil, []wire.NodeID{b}); err != nil {
		t.Fatal(err)
	}
	if c.nonblockQ.Find(matchKind(EventJoinRequest, b)) == nil {
		t.Fatal("expected a pending JOIN_REQUEST placeholder for b")
	}

	// b leaves before its JOIN_REQUEST payload ever multicasts.
	if err := c.HandleConfChg([]wire.NodeID{a}, []wire.NodeID{b}, nil); err != nil {
		t.Fatal(err)
	}
	if c.nonblockQ.Find(matchKind(EventJoinRequest, b)) != nil {
		t.Fatal("b's cancelled join placeholder should be gone")
	}
	if c.nonblockQ.Find(matchKind(EventLeave, b)) != nil {
		t.Fatal("no LEAVE event should be queued for a node that never finished joining")
	}
	c.Dispatch(false) // ctrl would fail the test if any unexpected upcall fired
}

func TestPartitionBelowMajorityIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl)
	a := nid(1)

	c, _ := newTestCore(t, a, up)
	// 5-node cluster; 3 leave at once, leaving 2 of 5 — below majority (3).
	member := []wire.NodeID{nid(1), nid(2)}
	left := []wire.NodeID{nid(3), nid(4), nid(5)}
	err := c.HandleConfChg(member, left, nil)
	if !errors.Is(err, ErrPartitionDetected) {
		t.Fatalf("HandleConfChg = %v, want ErrPartitionDetected", err)
	}
}

func TestAllMembersGoneIsNICFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl)
	c, _ := newTestCore(t, nid(1), up)

	err := c.HandleConfChg(nil, []wire.NodeID{nid(1)}, nil)
	if !errors.Is(err, ErrNICFailure) {
		t.Fatalf("HandleConfChg = %v, want ErrNICFailure", err)
	}
}

// TestBlockAcceptedStaysQueuedWhileNotifyDrains covers part of scenario
// 5: an accepted BLOCK stays at the head of the block queue (awaiting
// its UNBLOCK), while a NOTIFY queued beside it is still delivered.
func TestBlockAcceptedStaysQueuedWhileNotifyDrains(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl)
	a := nid(1)
	c, _ := newTestCore(t, a, up)
	c.joinFinished = true

	up.EXPECT().BlockRequested(a).Return(true)
	up.EXPECT().NotifyReceived(a, []byte("after")).Times(1)

	c.HandleDeliver(wire.Envelope{Sender: wire.NodeInfo{ID: a}, Type: wire.MsgBlock})
	c.HandleDeliver(wire.Envelope{Sender: wire.NodeInfo{ID: a}, Type: wire.MsgNotify, Payload: []byte("after")})
	c.Dispatch(false)

	if c.blockQ.Len() != 1 {
		t.Fatalf("blockQ len = %d, want 1 (accepted block stays until UNBLOCK)", c.blockQ.Len())
	}
	if c.nonblockQ.Len() != 0 {
		t.Fatal("the NOTIFY queued alongside the block should still drain, since nonblockQ is served first")
	}
}

func TestBlockRetriedUntilAccepted(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl)
	a := nid(1)
	c, _ := newTestCore(t, a, up)
	c.joinFinished = true

	gomock.InOrder(
		up.EXPECT().BlockRequested(a).Return(false),
		up.EXPECT().BlockRequested(a).Return(true),
	)

	c.HandleDeliver(wire.Envelope{Sender: wire.NodeInfo{ID: a}, Type: wire.MsgBlock})
	c.Dispatch(false)
	if c.blockQ.Front().Callbacked {
		t.Fatal("a rejected block must not be marked callbacked")
	}
	c.Dispatch(false)
	if !c.blockQ.Front().Callbacked {
		t.Fatal("an accepted block must be marked callbacked")
	}
}

func TestUnblockCancelsUnansweredBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl) // BlockRequested must never be called
	a := nid(1)
	c, _ := newTestCore(t, a, up)
	c.joinFinished = true

	c.HandleDeliver(wire.Envelope{Sender: wire.NodeInfo{ID: a}, Type: wire.MsgBlock})
	c.HandleDeliver(wire.Envelope{Sender: wire.NodeInfo{ID: a}, Type: wire.MsgUnblock})
	c.Dispatch(false)

	if c.blockQ.Len() != 0 {
		t.Fatalf("blockQ len = %d, want 0 after UNBLOCK cancels the only BLOCK", c.blockQ.Len())
	}
}

// TestDispatchRecordsMetrics checks the review-mandated wiring: a core
// given a real Collector actually updates it instead of leaving it
// decorative.
func TestDispatchRecordsMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl)
	a := nid(1)

	collector := metrics.NewCollector("test")
	c := newCore(a, 8, up, func(wire.Envelope) error { return nil }, nil, func(error) { t.Fatal("unexpected fatal exit") }, collector)
	c.joinFinished = true

	up.EXPECT().NotifyReceived(a, []byte("x"))
	c.HandleDeliver(wire.Envelope{Sender: wire.NodeInfo{ID: a}, Type: wire.MsgNotify, Payload: []byte("x")})
	c.Dispatch(false)

	if got := testutil.ToFloat64(collector.Notifies); got != 1 {
		t.Fatalf("Notifies = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.NonblockQueue); got != 0 {
		t.Fatalf("NonblockQueue = %v, want 0 after drain", got)
	}
	if got := testutil.CollectAndCount(collector.DispatchLatency); got != 1 {
		t.Fatalf("DispatchLatency samples = %d, want 1", got)
	}

	up.EXPECT().BlockRequested(a).Return(true)
	c.HandleDeliver(wire.Envelope{Sender: wire.NodeInfo{ID: a}, Type: wire.MsgBlock})
	c.Dispatch(false)
	if got := testutil.ToFloat64(collector.Blocks); got != 1 {
		t.Fatalf("Blocks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.BlockQueue); got != 1 {
		t.Fatalf("BlockQueue = %v, want 1 (accepted block stays queued)", got)
	}
}

func TestMorePendingSkipsDispatchEntirely(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpcalls(ctrl) // nothing should fire
	a := nid(1)
	c, _ := newTestCore(t, a, up)
	c.joinFinished = true
	c.HandleDeliver(wire.Envelope{Sender: wire.NodeInfo{ID: a}, Type: wire.MsgNotify, Payload: []byte("x")})

	c.Dispatch(true)
	if c.nonblockQ.Len() != 1 {
		t.Fatal("Dispatch(true) must not touch the queue at all")
	}
}
