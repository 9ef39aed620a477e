package cmd

import (
	"github.com/sheepdog/clusterdrv/cluster"
	"github.com/sheepdog/clusterdrv/logger"
	"github.com/sheepdog/clusterdrv/wire"
)

// logUpcalls is the CLI's Upcalls implementation: it accepts every join
// and block request unconditionally and logs every callback, standing in
// for whatever host daemon would otherwise own these decisions.
type logUpcalls struct {
	name string
}

func newLogUpcalls(name string) cluster.Upcalls { return &logUpcalls{name: name} }

func (u *logUpcalls) CheckJoin(sender wire.NodeID, payload []byte) wire.JoinResult {
	logger.Infof("[%s] CheckJoin: admitting %s", u.name, sender)
	return wire.JoinSuccess
}

func (u *logUpcalls) JoinCompleted(sender wire.NodeID, roster []wire.NodeInfo, result wire.JoinResult, payload []byte) {
	logger.Infof("[%s] JoinCompleted: %s result=%s roster_size=%d", u.name, sender, result, len(roster))
}

func (u *logUpcalls) LeaveCompleted(sender wire.NodeID, roster []wire.NodeInfo) {
	logger.Infof("[%s] LeaveCompleted: %s roster_size=%d", u.name, sender, len(roster))
}

func (u *logUpcalls) BlockRequested(sender wire.NodeID) bool {
	logger.Infof("[%s] BlockRequested: accepting %s", u.name, sender)
	return true
}

func (u *logUpcalls) NotifyReceived(sender wire.NodeID, payload []byte) {
	logger.Infof("[%s] NotifyReceived: %s (%d bytes)", u.name, sender, len(payload))
}
