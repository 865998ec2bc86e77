// Package seencache implements the DSR node's per-kind duplicate
// suppression and aging cache (spec §3, §4.7).
//
// Each of RREQ, RREP, DATA, and RESP gets its own unordered set of
// (stamp, source, destination) records — modeled here as its own map so
// that no mutable state is shared between kinds, per the rearchitecture
// guidance in spec §9. A record's stamp doubles as both its identity (for
// duplicate detection) and its age (for eviction), so one lookup resolves
// both concerns, matching the data model in spec §3.
package seencache

import (
	"sync"

	"github.com/dsrmesh/dsrnode/core"
	"github.com/dsrmesh/dsrnode/core/codec"
)

// DefaultTTL is the number of stamp-seconds a record survives before
// eviction (spec §6).
const DefaultTTL = 180

type key struct {
	Stamp       uint32
	Source      core.NodeID
	Destination core.NodeID
}

// Cache holds the four per-kind seen tables (RREQ, RREP, DATA, RESP).
type Cache struct {
	ttl uint32

	mu     sync.Mutex
	tables map[codec.Kind]map[key]struct{}
}

// New creates a Cache with the given TTL in stamp-seconds. A ttl of 0
// falls back to DefaultTTL.
func New(ttl uint32) *Cache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl: ttl,
		tables: map[codec.Kind]map[key]struct{}{
			codec.KindRREQ: {},
			codec.KindRREP: {},
			codec.KindData: {},
			codec.KindResp: {},
		},
	}
}

// HasSeen reports whether (stamp, source, destination) was already recorded
// for kind. If not, it records the tuple and returns false — the same
// check-and-insert contract as the teacher's packet deduplicator.
func (c *Cache) HasSeen(kind codec.Kind, stamp uint32, source, destination core.NodeID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.tables[kind]
	if m == nil {
		return false
	}
	k := key{Stamp: stamp, Source: source, Destination: destination}
	if _, ok := m[k]; ok {
		return true
	}
	m[k] = struct{}{}
	return false
}

// Refresh replaces a record's stamp in place: this is how the transaction
// layer re-stamps a retried DATA send (spec §4.5) so that relay caches
// along the route don't drop the retransmission as a duplicate of the
// original stamp.
func (c *Cache) Refresh(kind codec.Kind, oldStamp, newStamp uint32, source, destination core.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.tables[kind]
	if m == nil {
		return
	}
	delete(m, key{Stamp: oldStamp, Source: source, Destination: destination})
	m[key{Stamp: newStamp, Source: source, Destination: destination}] = struct{}{}
}

// Forget removes a single record ahead of its natural TTL expiry. Used
// when a transaction's route is evicted on hard-deadline timeout, so the
// dead transaction's DATA record doesn't linger for the rest of the TTL.
func (c *Cache) Forget(kind codec.Kind, stamp uint32, source, destination core.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.tables[kind]
	if m == nil {
		return
	}
	delete(m, key{Stamp: stamp, Source: source, Destination: destination})
}

// Evict removes every record whose age (now - stamp) has reached the
// configured TTL, across all four kinds. Called once per maintenance tick
// (spec §4.7). Invariant P2 holds immediately after Evict returns.
//
// A record whose stamp is ahead of now (clock.Clock.Stamp can run ahead of
// Now() when the wall clock goes backward or two stamps are issued within
// the same second) is never treated as aged out: the now-k.Stamp
// subtraction only runs once now >= k.Stamp, avoiding a uint32 underflow
// that would otherwise wrap to a huge value and evict a fresh record.
func (c *Cache) Evict(now uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.tables {
		for k := range m {
			if now >= k.Stamp && now-k.Stamp >= c.ttl {
				delete(m, k)
			}
		}
	}
}

// Len returns the number of live records for kind, for tests and metrics.
func (c *Cache) Len(kind codec.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables[kind])
}
