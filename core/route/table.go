// Package route implements the DSR node's route table: a mapping from
// destination node to the ordered source-route used to reach it (spec §3,
// §4.4, §4.5).
package route

import (
	"errors"
	"sync"

	"github.com/dsrmesh/dsrnode/core"
)

// ErrContainsSelf and ErrContainsDestination report invariant P1
// violations: a route must never contain the local node or the
// destination it leads to.
var (
	ErrContainsSelf        = errors.New("route: contains local node")
	ErrContainsDestination = errors.New("route: contains destination")
)

// Table maps a destination node to the source-route this node currently
// believes leads there.
type Table struct {
	mu     sync.RWMutex
	routes map[core.NodeID]core.Route
}

// New creates an empty route table.
func New() *Table {
	return &Table{routes: make(map[core.NodeID]core.Route)}
}

// Install records route as the path to dest, replacing any prior route.
// It enforces invariant P1: route must not contain self or dest.
func (t *Table) Install(self, dest core.NodeID, r core.Route) error {
	if r.Contains(self) {
		return ErrContainsSelf
	}
	if r.Contains(dest) {
		return ErrContainsDestination
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[dest] = r.Clone()
	return nil
}

// Lookup returns the current route to dest, if any.
func (t *Table) Lookup(dest core.NodeID) (core.Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.routes[dest]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Has reports whether a route to dest is currently installed.
func (t *Table) Has(dest core.NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.routes[dest]
	return ok
}

// Evict removes the route to dest, if any. Called on transaction
// hard-deadline expiry (spec §4.5).
func (t *Table) Evict(dest core.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.routes, dest)
}

// Len returns the number of destinations with an installed route.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}
