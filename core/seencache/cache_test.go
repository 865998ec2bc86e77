package seencache

import (
	"testing"

	"github.com/dsrmesh/dsrnode/core/codec"
)

func TestHasSeenFirstTimeFalse(t *testing.T) {
	c := New(180)
	if c.HasSeen(codec.KindRREQ, 100, "A", "C") {
		t.Error("HasSeen() = true for a fresh record, want false")
	}
}

func TestHasSeenRecordsAfterFirstCheck(t *testing.T) {
	c := New(180)
	c.HasSeen(codec.KindRREQ, 100, "A", "C")
	if !c.HasSeen(codec.KindRREQ, 100, "A", "C") {
		t.Error("HasSeen() = false for a repeated record, want true")
	}
}

func TestHasSeenDistinguishesKind(t *testing.T) {
	c := New(180)
	c.HasSeen(codec.KindRREQ, 100, "A", "C")
	if c.HasSeen(codec.KindRREP, 100, "A", "C") {
		t.Error("HasSeen() = true across different kinds, want false")
	}
}

func TestHasSeenDistinguishesSourceAndDestination(t *testing.T) {
	c := New(180)
	c.HasSeen(codec.KindData, 100, "A", "C")
	if c.HasSeen(codec.KindData, 100, "A", "D") {
		t.Error("HasSeen() = true for a different destination, want false")
	}
	if c.HasSeen(codec.KindData, 100, "B", "C") {
		t.Error("HasSeen() = true for a different source, want false")
	}
}

func TestRefreshMovesRecordToNewStamp(t *testing.T) {
	c := New(180)
	c.HasSeen(codec.KindData, 100, "A", "C")

	c.Refresh(codec.KindData, 100, 150, "A", "C")

	if c.HasSeen(codec.KindData, 100, "A", "C") {
		t.Error("old stamp still recorded after Refresh")
	}
	if !c.HasSeen(codec.KindData, 150, "A", "C") {
		t.Error("new stamp not recorded after Refresh")
	}
}

func TestForgetRemovesRecord(t *testing.T) {
	c := New(180)
	c.HasSeen(codec.KindData, 100, "A", "C")
	c.Forget(codec.KindData, 100, "A", "C")

	if c.HasSeen(codec.KindData, 100, "A", "C") {
		t.Error("HasSeen() = true after Forget, want false")
	}
}

// TestEvict is law P2: after Evict, no record is older than the TTL. It
// also covers the stamp-ahead-of-now case (clock.Clock.Stamp can run ahead
// of the wall-clock Now() passed to Evict): a future-stamped record must
// survive rather than underflow to a huge age and be evicted immediately.
func TestEvict(t *testing.T) {
	c := New(180)
	c.HasSeen(codec.KindRREQ, 100, "A", "C") // 280-100=180 >= ttl: ages out
	c.HasSeen(codec.KindRREQ, 300, "A", "D") // stamp ahead of now: must survive

	c.Evict(280)

	if c.Len(codec.KindRREQ) != 1 {
		t.Fatalf("Len() = %d after Evict, want 1", c.Len(codec.KindRREQ))
	}
	if !c.HasSeen(codec.KindRREQ, 300, "A", "D") {
		t.Error("future-stamped record was evicted, want it to survive")
	}
}

func TestEvictLeavesFreshRecords(t *testing.T) {
	c := New(180)
	c.HasSeen(codec.KindRREQ, 100, "A", "C")
	c.Evict(200)
	if c.Len(codec.KindRREQ) != 1 {
		t.Errorf("Len() = %d, want 1 (record younger than TTL)", c.Len(codec.KindRREQ))
	}
}

func TestNewDefaultTTL(t *testing.T) {
	c := New(0)
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %d, want %d", c.ttl, DefaultTTL)
	}
}
