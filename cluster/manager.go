package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/sheepdog/clusterdrv/gcs"
)

// Manager runs multiple simulated cluster members against a shared
// gcs.Hub, each with its own Driver and driver loop goroutine. It is
// what the interactive CLI mode (SPEC_FULL.md §4.8) drives to let an
// operator grow and shrink a cluster in one process.
type Manager struct {
	mu      sync.RWMutex
	hub     *gcs.Hub
	drivers []*Driver
	names   map[string]int
	nextID  int
	log     func(string, ...interface{})
}

// NewManager returns a Manager whose simulated members share hub.
func NewManager(hub *gcs.Hub, log func(string, ...interface{})) *Manager {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	return &Manager{hub: hub, names: make(map[string]int), nextID: 1, log: log}
}

// AddNode creates a new Driver, starts its loop, and has it attempt to
// join the cluster with joinPayload. newUpcalls is called once per node
// so each gets its own Upcalls implementation (e.g. one log prefix per
// simulated node).
func (m *Manager) AddNode(ctx context.Context, newUpcalls func(name string) Upcalls, joinPayload []byte) (name string, drv *Driver, err error) {
	m.mu.Lock()
	name = fmt.Sprintf("node-%d", m.nextID)
	m.nextID++
	m.mu.Unlock()

	addr := fmt.Sprintf("local:%s", name)
	drv, err = NewDriver(DefaultOptions(), m.hub.NewClient(addr), newUpcalls(name), m.log, nil)
	if err != nil {
		return "", nil, fmt.Errorf("cluster: creating driver for %s: %w", name, err)
	}
	if err := drv.Start(ctx); err != nil {
		return "", nil, fmt.Errorf("cluster: starting driver for %s: %w", name, err)
	}
	if err := drv.Join(joinPayload); err != nil {
		return "", nil, fmt.Errorf("cluster: %s joining: %w", name, err)
	}

	m.mu.Lock()
	m.names[name] = len(m.drivers)
	m.drivers = append(m.drivers, drv)
	m.mu.Unlock()
	return name, drv, nil
}

// RemoveNode has the named node leave the cluster, stops its driver
// loop, and forgets it.
func (m *Manager) RemoveNode(name string) error {
	m.mu.Lock()
	idx, ok := m.names[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("cluster: no such node %q", name)
	}
	drv := m.drivers[idx]
	m.drivers = append(m.drivers[:idx], m.drivers[idx+1:]...)
	delete(m.names, name)
	for n, i := range m.names {
		if i > idx {
			m.names[n] = i - 1
		}
	}
	m.mu.Unlock()

	if err := drv.Leave(); err != nil {
		m.log("node %s: leave multicast failed: %v", name, err)
	}
	drv.Stop()
	return nil
}

// Nodes returns the current node names, in creation order; use Driver
// to look up a name's Driver.
func (m *Manager) Nodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.drivers))
	for name, idx := range m.names {
		names[idx] = name
	}
	return names
}

// Driver returns the named node's Driver, or nil if it doesn't exist.
func (m *Manager) Driver(name string) *Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.names[name]
	if !ok {
		return nil
	}
	return m.drivers[idx]
}

// StopAll stops every node's driver loop without sending LEAVE, for
// process shutdown.
func (m *Manager) StopAll() {
	m.mu.RLock()
	drivers := make([]*Driver, len(m.drivers))
	copy(drivers, m.drivers)
	m.mu.RUnlock()

	for _, drv := range drivers {
		drv.Stop()
	}
}
