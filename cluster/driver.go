package cluster

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sheepdog/clusterdrv/gcs"
	"github.com/sheepdog/clusterdrv/metrics"
	"github.com/sheepdog/clusterdrv/wire"
)

// Driver is the GCS Adapter of SPEC_FULL.md §4.1: it owns one
// single-goroutine driver loop per node, translating Client frames and
// confchg notifications into Upcalls, and application requests
// (Join/Leave/Block/Unblock/Notify) into multicasts. Only Send-path
// methods may be called from outside the driver loop; everything that
// touches the roster or queues runs on the loop goroutine.
type Driver struct {
	opts      Options
	transport gcs.Client
	codec     *wire.Codec
	upcalls   Upcalls
	log       logFunc
	exitFunc  func(error)
	metrics   *metrics.Collector

	core            *core
	thisNode        wire.NodeID
	localDescriptor string

	stopCh     chan struct{}
	doneCh     chan struct{}
	snapshotCh chan chan Snapshot
}

// NewDriver constructs a Driver bound to transport. Call Start to join
// the transport group and begin the driver loop, then Join to attempt
// to join the cluster itself. collector may be nil, in which case every
// metric recorded by this driver is a no-op; pass the collector built
// by metrics.NewCollector to scrape real roster/queue/exit counters.
func NewDriver(opts Options, transport gcs.Client, upcalls Upcalls, log func(string, ...interface{}), collector *metrics.Collector) (*Driver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	return &Driver{
		opts:      opts,
		transport: transport,
		codec:     wire.NewCodec(opts.MaxNodes),
		upcalls:   upcalls,
		log:       log,
		exitFunc:   func(error) { os.Exit(1) },
		metrics:    collector,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		snapshotCh: make(chan chan Snapshot),
	}, nil
}

// Start joins the transport group, seeds the driver's view of its own
// arrival, and launches the driver loop. It does not attempt to join
// the cluster itself — call Join for that once Start returns.
func (d *Driver) Start(ctx context.Context) error {
	self, initial, err := d.initWithRetry(ctx)
	if err != nil {
		d.metrics.IncFatalExit("init_exhausted")
		return err
	}
	d.thisNode = self
	d.localDescriptor = d.transport.Descriptor()
	d.core = newCore(self, d.opts.MaxNodes, d.upcalls, d.sendEnvelope, d.log, d.fatalExit, d.metrics)

	if err := d.core.HandleConfChg(initial.Member, initial.Left, initial.Joined); err != nil {
		return err
	}
	go d.loop(ctx)
	return nil
}

// initWithRetry retries Client.Init at opts.InitRetryInterval until it
// succeeds, initRetryCount retries have failed (ErrGCSInitExhausted), or
// ctx is done, mirroring original_source/corosync.c's cdrv_init
// spin-and-sleep loop.
func (d *Driver) initWithRetry(ctx context.Context) (wire.NodeID, gcs.ConfChg, error) {
	const initRetryCount = 10
	for retries := 0; ; retries++ {
		self, initial, err := d.transport.Init(ctx, wire.GroupName)
		if err == nil {
			return self, initial, nil
		}
		if retries == initRetryCount {
			return wire.NodeID{}, gcs.ConfChg{}, errors.Join(ErrGCSInitExhausted, err)
		}
		d.log("gcs init failed, retrying in %s: %v", d.opts.InitRetryInterval, err)
		select {
		case <-ctx.Done():
			return wire.NodeID{}, gcs.ConfChg{}, ctx.Err()
		case <-time.After(d.opts.InitRetryInterval):
		}
	}
}

func (d *Driver) loop(ctx context.Context) {
	defer close(d.doneCh)
	frames := d.transport.Frames()
	confchg := d.transport.Confchg()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return

		case reply := <-d.snapshotCh:
			reply <- d.core.snapshot()

		case f, ok := <-frames:
			if !ok {
				d.fatalExit(errors.New("cluster: gcs frame channel closed"))
				return
			}
			env, err := d.codec.Decode(f.Data)
			if err != nil {
				d.log("dropping malformed frame: %v", err)
				continue
			}
			d.core.HandleDeliver(env)
			d.core.Dispatch(d.transport.Ready())

		case cc, ok := <-confchg:
			if !ok {
				d.fatalExit(errors.New("cluster: gcs confchg channel closed"))
				return
			}
			if err := d.core.HandleConfChg(cc.Member, cc.Left, cc.Joined); err != nil {
				d.fatalExit(err)
				return
			}
			d.core.Dispatch(d.transport.Ready())
		}
	}
}

// sendEnvelope encodes and multicasts env, retrying indefinitely at
// opts.SendRetryInterval while the transport reports ErrTryAgain
// (SPEC_FULL.md §4.1). It touches no core state and is safe to call
// concurrently with the driver loop.
func (d *Driver) sendEnvelope(env wire.Envelope) error {
	frame, err := d.codec.EncodeFrame(env)
	if err != nil {
		return err
	}
	for {
		err := d.transport.Send(context.Background(), frame)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gcs.ErrTryAgain) {
			return err
		}
		d.log("gcs busy, retrying send in %s", d.opts.SendRetryInterval)
		time.Sleep(d.opts.SendRetryInterval)
	}
}

func (d *Driver) fatalExit(err error) {
	d.log("fatal: %v", err)
	d.metrics.IncFatalExit(fatalReason(err))
	d.exitFunc(err)
}

// fatalReason buckets a fatal error into the small, bounded label set
// SPEC_FULL.md §6 enumerates as exit causes, so the fatal_exits_total
// counter doesn't fan out into one series per error string.
func fatalReason(err error) string {
	switch {
	case errors.Is(err, ErrPartitionDetected):
		return "partition_detected"
	case errors.Is(err, ErrNICFailure):
		return "nic_failure"
	case errors.Is(err, ErrMasterTransfer):
		return "master_transfer"
	default:
		return "transport_error"
	}
}

// Join multicasts a JOIN_REQUEST carrying payload. If this node is
// currently the sole transport-group member, the driver loop
// self-elects and answers its own request without any other node's
// involvement (SPEC_FULL.md §4.4).
func (d *Driver) Join(payload []byte) error {
	return d.sendEnvelope(wire.Envelope{
		Sender:  wire.NodeInfo{ID: d.thisNode, Descriptor: d.localDescriptor},
		Type:    wire.MsgJoinRequest,
		Payload: payload,
	})
}

// Leave multicasts a voluntary LEAVE.
func (d *Driver) Leave() error {
	return d.sendEnvelope(wire.Envelope{Sender: wire.NodeInfo{ID: d.thisNode}, Type: wire.MsgLeave})
}

// Block multicasts a BLOCK request. Upcalls.BlockRequested runs on
// every member, including this one.
func (d *Driver) Block() error {
	return d.sendEnvelope(wire.Envelope{Sender: wire.NodeInfo{ID: d.thisNode}, Type: wire.MsgBlock})
}

// Unblock multicasts an UNBLOCK, removing this node's outstanding BLOCK
// on every member: an accepted BLOCK is released, one not yet accepted
// is cancelled before any further BlockRequested call.
func (d *Driver) Unblock() error {
	return d.sendEnvelope(wire.Envelope{Sender: wire.NodeInfo{ID: d.thisNode}, Type: wire.MsgUnblock})
}

// Notify multicasts an application payload delivered to every member's
// Upcalls.NotifyReceived.
func (d *Driver) Notify(payload []byte) error {
	return d.sendEnvelope(wire.Envelope{Sender: wire.NodeInfo{ID: d.thisNode}, Type: wire.MsgNotify, Payload: payload})
}

// LocalAddr returns this node's group identity, assigned during Start.
func (d *Driver) LocalAddr() wire.NodeID { return d.thisNode }

// Snapshot asks the driver loop for a point-in-time read of its roster
// and queue state, for display by the interactive dashboard. It blocks
// until the loop services the request or ctx is done.
func (d *Driver) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case d.snapshotCh <- reply:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-d.doneCh:
		return Snapshot{}, ErrNotInitialized
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Stop halts the driver loop and waits for it to exit. It does not
// leave the transport group; call transport.Leave separately if wanted.
func (d *Driver) Stop() {
	close(d.stopCh)
	<-d.doneCh
}
