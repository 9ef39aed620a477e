package cluster

import (
	"github.com/sheepdog/clusterdrv/wire"
)

// Roster is the ordered, bounded list of confirmed member nodes. Order is
// insertion order as observed in JOIN_RESPONSE events (SPEC_FULL.md §3).
// It is not safe for concurrent use; the driver loop owns it exclusively.
type Roster struct {
	maxNodes int
	entries  []wire.NodeInfo
}

// NewRoster returns an empty roster bounded at maxNodes.
func NewRoster(maxNodes int) *Roster {
	if maxNodes <= 0 {
		maxNodes = wire.DefaultMaxNodes
	}
	return &Roster{maxNodes: maxNodes}
}

// Len returns the number of entries, tombstoned or not.
func (r *Roster) Len() int { return len(r.entries) }

// Entries returns a copy of the roster, safe for the caller to retain.
func (r *Roster) Entries() []wire.NodeInfo {
	out := make([]wire.NodeInfo, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clear empties the roster. Used when this node seeds the cluster or when
// a JOIN_REQUEST is answered with MASTER_TRANSFER (SPEC_FULL.md §4.5).
func (r *Roster) Clear() {
	r.entries = r.entries[:0]
}

// Reset replaces the roster wholesale with a snapshot, e.g. the one this
// node adopts from its own JOIN_RESPONSE.
func (r *Roster) Reset(entries []wire.NodeInfo) {
	r.entries = append(r.entries[:0], entries...)
}

// Find returns the index of id in the roster, or -1.
func (r *Roster) Find(id wire.NodeID) int {
	for i, e := range r.entries {
		if e.ID.Equal(id) {
			return i
		}
	}
	return -1
}

// Add appends a node in insertion order. Fails if id is already present
// (roster never contains duplicate NodeIds) or the roster is at capacity.
func (r *Roster) Add(n wire.NodeInfo) error {
	if r.Find(n.ID) >= 0 {
		return ErrDuplicateNodeID
	}
	if len(r.entries) >= r.maxNodes {
		return ErrRosterFull
	}
	r.entries = append(r.entries, n)
	return nil
}

// Remove deletes the entry for id, shifting subsequent entries down by
// one so no holes remain. The shift length is (old length - idx - 1),
// resolving the off-by-one question flagged in SPEC_FULL.md §10.
func (r *Roster) Remove(id wire.NodeID) bool {
	idx := r.Find(id)
	if idx < 0 {
		return false
	}
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	return true
}

// MarkGone tombstones the entry for id, if present, returning whether it
// was found. A tombstoned entry is skipped by master selection but stays
// in the roster until a LEAVE event removes it.
func (r *Roster) MarkGone(id wire.NodeID) bool {
	idx := r.Find(id)
	if idx < 0 {
		return false
	}
	r.entries[idx].Gone = true
	return true
}

// MasterIndex returns the index of the first non-gone entry, or -1 if
// the roster is empty or every entry is tombstoned.
func (r *Roster) MasterIndex() int {
	for i, e := range r.entries {
		if !e.Gone {
			return i
		}
	}
	return -1
}

// IsMaster reports whether id is the first non-gone roster entry (the
// definition of "master" in SPEC_FULL.md §4.4). An empty roster has no
// entry to disagree with, so every id trivially counts as master —
// this is what lets a bootstrapping node answer its own JOIN_REQUEST
// the moment self-election clears the roster (original_source/corosync.c
// is_master(): "nr_cpg_nodes == 0 ... return 0" unconditionally).
func (r *Roster) IsMaster(id wire.NodeID) bool {
	if len(r.entries) == 0 {
		return true
	}
	idx := r.MasterIndex()
	return idx >= 0 && r.entries[idx].ID.Equal(id)
}

// MarkGoneIfMaster tombstones id's roster entry if id currently is the
// master. Used by intake the moment a LEAVE is observed, before the
// LEAVE event is processed by the dispatcher.
func (r *Roster) MarkGoneIfMaster(id wire.NodeID) {
	if r.IsMaster(id) {
		r.MarkGone(id)
	}
}
