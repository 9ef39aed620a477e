package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsRosterAndQueueState(t *testing.T) {
	c := NewCollector("node-1")

	c.SetRosterState(3, true)
	c.SetQueueDepths(2, 5)

	if got := testutil.ToFloat64(c.RosterSize); got != 3 {
		t.Fatalf("RosterSize = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.IsMaster); got != 1 {
		t.Fatalf("IsMaster = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.BlockQueue); got != 2 {
		t.Fatalf("BlockQueue = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.NonblockQueue); got != 5 {
		t.Fatalf("NonblockQueue = %v, want 5", got)
	}

	c.SetRosterState(3, false)
	if got := testutil.ToFloat64(c.IsMaster); got != 0 {
		t.Fatalf("IsMaster after losing mastership = %v, want 0", got)
	}
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector("node-1")

	c.IncJoin("success")
	c.IncJoin("success")
	c.IncJoin("fail")
	c.IncLeave()
	c.IncNotify()
	c.IncBlock()
	c.IncFatalExit("partition_detected")

	if got := testutil.ToFloat64(c.Joins.WithLabelValues("success")); got != 2 {
		t.Fatalf("Joins[success] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Joins.WithLabelValues("fail")); got != 1 {
		t.Fatalf("Joins[fail] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Leaves); got != 1 {
		t.Fatalf("Leaves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Notifies); got != 1 {
		t.Fatalf("Notifies = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Blocks); got != 1 {
		t.Fatalf("Blocks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.FatalExits.WithLabelValues("partition_detected")); got != 1 {
		t.Fatalf("FatalExits[partition_detected] = %v, want 1", got)
	}
}

func TestCollectorObserveDispatch(t *testing.T) {
	c := NewCollector("node-1")
	c.ObserveDispatch(10 * time.Millisecond)
	if got := testutil.CollectAndCount(c.DispatchLatency); got != 1 {
		t.Fatalf("DispatchLatency sample count = %d, want 1", got)
	}
}

// A nil *Collector must absorb every recording call silently: Driver and
// core hold an optional collector and must never guard each call site
// with its own nil check.
func TestNilCollectorIsANoOp(t *testing.T) {
	var c *Collector
	c.SetRosterState(1, true)
	c.SetQueueDepths(1, 1)
	c.IncJoin("success")
	c.IncLeave()
	c.IncNotify()
	c.IncBlock()
	c.IncFatalExit("nic_failure")
	c.ObserveDispatch(time.Millisecond)
}
