package cluster

import (
	"testing"

	"github.com/sheepdog/clusterdrv/wire"
)

func nid(n uint32) wire.NodeID { return wire.NodeID{NodeID: n, PID: n} }

func TestRosterAddRejectsDuplicateAndOverflow(t *testing.T) {
	r := NewRoster(2)
	if err := r.Add(wire.NodeInfo{ID: nid(1)}); err != nil {
		t.Fatalf("Add 1: %v", err)
	}
	if err := r.Add(wire.NodeInfo{ID: nid(1)}); err != ErrDuplicateNodeID {
		t.Fatalf("Add dup = %v, want ErrDuplicateNodeID", err)
	}
	if err := r.Add(wire.NodeInfo{ID: nid(2)}); err != nil {
		t.Fatalf("Add 2: %v", err)
	}
	if err := r.Add(wire.NodeInfo{ID: nid(3)}); err != ErrRosterFull {
		t.Fatalf("Add overflow = %v, want ErrRosterFull", err)
	}
}

// TestRosterRemoveShiftsExactlyOne resolves SPEC_FULL.md §10's del_cpg_node
// question: removing an entry must shrink Len() by exactly one, with no
// holes left behind for MasterIndex to trip over.
func TestRosterRemoveShiftsExactlyOne(t *testing.T) {
	r := NewRoster(4)
	for i := uint32(1); i <= 4; i++ {
		if err := r.Add(wire.NodeInfo{ID: nid(i)}); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	if !r.Remove(nid(2)) {
		t.Fatal("Remove(2) = false, want true")
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	entries := r.Entries()
	got := []uint32{entries[0].ID.NodeID, entries[1].ID.NodeID, entries[2].ID.NodeID}
	want := []uint32{1, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entries = %v, want %v", got, want)
		}
	}
	if r.Remove(nid(2)) {
		t.Fatal("Remove(2) again = true, want false")
	}
}

func TestRosterMasterIndexSkipsTombstones(t *testing.T) {
	r := NewRoster(4)
	r.Add(wire.NodeInfo{ID: nid(1)})
	r.Add(wire.NodeInfo{ID: nid(2)})
	if !r.IsMaster(nid(1)) {
		t.Fatal("node 1 should be master before any departures")
	}
	r.MarkGoneIfMaster(nid(1))
	if r.IsMaster(nid(1)) {
		t.Fatal("node 1 should no longer be master once tombstoned")
	}
	if !r.IsMaster(nid(2)) {
		t.Fatal("node 2 should be master once node 1 is tombstoned")
	}
}

func TestRosterIsMasterOnEmptyRosterIsUnconditionallyTrue(t *testing.T) {
	r := NewRoster(4)
	if !r.IsMaster(nid(7)) {
		t.Fatal("IsMaster on an empty roster must be true for any id (bootstrap case)")
	}
}

func TestRosterMarkGoneIfMasterIsNoOpForNonMaster(t *testing.T) {
	r := NewRoster(4)
	r.Add(wire.NodeInfo{ID: nid(1)})
	r.Add(wire.NodeInfo{ID: nid(2)})
	r.MarkGoneIfMaster(nid(2))
	if !r.IsMaster(nid(1)) {
		t.Fatal("marking a non-master gone must not disturb the real master")
	}
	if r.Find(nid(2)) < 0 {
		t.Fatal("node 2 should still be present, just not tombstoned")
	}
}
