package cluster

import "errors"

var (
	ErrNodeIDRequired     = errors.New("cluster: node id is required")
	ErrMaxNodesInvalid    = errors.New("cluster: max nodes must not be negative")
	ErrRosterFull         = errors.New("cluster: roster is at max_nodes capacity")
	ErrDuplicateNodeID    = errors.New("cluster: node id already present in roster")
	ErrPermissionDenied   = errors.New("cluster: gcs send permission denied")
	ErrSendFailed         = errors.New("cluster: gcs send failed")
	ErrGCSInitExhausted   = errors.New("cluster: gcs init retry budget exhausted")
	ErrPartitionDetected  = errors.New("cluster: network partition detected")
	ErrNICFailure         = errors.New("cluster: all members reported gone, possible NIC failure")
	ErrNotInitialized     = errors.New("cluster: driver not initialized")
	ErrMasterTransfer     = errors.New("cluster: master transfer")
)
