// Package discovery is an optional bootstrap helper: it resolves the
// network address of the gRPC hub a node should dial, using etcd as a
// rendezvous point. It never stores cluster membership, roster, or
// master-election state — that is entirely the job of the in-memory
// roster the driver loop owns (cluster.Roster). Grounded on zephyrcache's
// discovery/etcd.go lease-and-keepalive pattern for client_v3.
package discovery

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const defaultLeaseTTL = 10 * time.Second

// NewClient returns an etcd client connected to endpoints.
func NewClient(endpoints []string) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: connect to etcd: %w", err)
	}
	return cli, nil
}

// RegisterHub publishes addr as the hub's current address under key,
// refreshing a lease every ttl/3 until ctx is cancelled. This is the
// only state discovery ever writes: an address string, not a roster.
func RegisterHub(ctx context.Context, cli *clientv3.Client, key, addr string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	lease, err := cli.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("discovery: grant lease: %w", err)
	}
	if _, err := cli.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("discovery: put %s: %w", key, err)
	}
	keepAlive, err := cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("discovery: keepalive: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-keepAlive:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// LookupHub resolves the hub's current address from key. It is a plain
// one-shot Get, not a watch: a node bootstraps once at startup and then
// relies on the GCS transport itself (HandleConfChg) for membership,
// never on etcd, so there is nothing to keep watching afterward.
func LookupHub(ctx context.Context, cli *clientv3.Client, key string) (string, error) {
	resp, err := cli.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("discovery: get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("discovery: no hub registered under %s", key)
	}
	return string(resp.Kvs[0].Value), nil
}

// WatchHub streams hub-address changes onto the returned channel until
// ctx is cancelled, for a long-lived client that wants to follow the hub
// if it migrates. Closed when ctx is done.
func WatchHub(ctx context.Context, cli *clientv3.Client, key string) <-chan string {
	out := make(chan string, 1)
	go func() {
		defer close(out)
		for resp := range cli.Watch(ctx, key) {
			for _, ev := range resp.Events {
				if ev.Type == clientv3.EventTypePut {
					select {
					case out <- string(ev.Kv.Value):
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}
