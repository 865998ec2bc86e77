// Package neighbor implements the DSR node's one-hop neighbor table
// (spec §3, §4.3).
//
// A neighbor is admitted from an inbound HELLO whose RSSI clears the QoS
// threshold. The table is cleared immediately before every outgoing HELLO,
// forcing periodic re-discovery: a neighbor that has gone out of range
// disappears within one HELLO period, at the cost of a short window in
// which the table is under-populated.
package neighbor

import (
	"sync"

	"github.com/dsrmesh/dsrnode/core"
)

// DefaultQoSThreshold is the RSSI (dBm) a HELLO must clear to admit its
// sender as a neighbor.
const DefaultQoSThreshold = -80

// Table is the set of node identities heard recently above the configured
// RSSI threshold.
type Table struct {
	threshold int

	mu      sync.RWMutex
	members map[core.NodeID]struct{}
}

// New creates a neighbor Table gated at threshold dBm. A threshold of 0
// falls back to DefaultQoSThreshold.
func New(threshold int) *Table {
	if threshold == 0 {
		threshold = DefaultQoSThreshold
	}
	return &Table{
		threshold: threshold,
		members:   make(map[core.NodeID]struct{}),
	}
}

// Observe admits id as a neighbor if rssi clears the configured threshold.
// It reports whether id was newly admitted.
func (t *Table) Observe(id core.NodeID, rssi int) bool {
	if rssi <= t.threshold {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.members[id]; ok {
		return false
	}
	t.members[id] = struct{}{}
	return true
}

// Has reports whether id is currently a known neighbor.
func (t *Table) Has(id core.NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.members[id]
	return ok
}

// Clear empties the table. Called immediately before every outgoing HELLO
// (spec §4.3).
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.members)
}

// Len returns the number of known neighbors.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members)
}

// Snapshot returns a copy of the current neighbor set, for inspection and
// tests.
func (t *Table) Snapshot() []core.NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.NodeID, 0, len(t.members))
	for id := range t.members {
		out = append(out, id)
	}
	return out
}
