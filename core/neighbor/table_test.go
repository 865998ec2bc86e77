package neighbor

import "testing"

func TestObserveAboveThreshold(t *testing.T) {
	tb := New(-80)
	if !tb.Observe("B", -70) {
		t.Error("Observe() = false for RSSI above threshold, want true")
	}
	if !tb.Has("B") {
		t.Error("Has(B) = false after Observe, want true")
	}
}

func TestObserveAtOrBelowThreshold(t *testing.T) {
	tb := New(-80)
	if tb.Observe("B", -80) {
		t.Error("Observe() = true at threshold boundary, want false (strictly greater required)")
	}
	if tb.Observe("B", -90) {
		t.Error("Observe() = true below threshold, want false")
	}
	if tb.Has("B") {
		t.Error("Has(B) = true, want false")
	}
}

func TestObserveDuplicateReturnsFalse(t *testing.T) {
	tb := New(-80)
	if !tb.Observe("B", -70) {
		t.Fatal("first Observe() = false, want true")
	}
	if tb.Observe("B", -70) {
		t.Error("second Observe() = true for already-known neighbor, want false")
	}
	if tb.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tb.Len())
	}
}

func TestDefaultThreshold(t *testing.T) {
	tb := New(0)
	if tb.threshold != DefaultQoSThreshold {
		t.Errorf("threshold = %d, want %d", tb.threshold, DefaultQoSThreshold)
	}
}

// TestClearBeforeHello is law L3: processing a HELLO, then send_hello, then
// the same HELLO again leaves the neighbor set containing exactly the
// sender.
func TestClearBeforeHello(t *testing.T) {
	tb := New(-80)
	tb.Observe("B", -70)
	tb.Observe("D", -70)

	tb.Clear() // simulates the clear-before-emit step of send_hello

	tb.Observe("B", -70)

	snap := tb.Snapshot()
	if len(snap) != 1 || snap[0] != "B" {
		t.Errorf("Snapshot() = %v, want exactly [B]", snap)
	}
}

func TestClearEmptiesTable(t *testing.T) {
	tb := New(-80)
	tb.Observe("B", -70)
	tb.Clear()
	if tb.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", tb.Len())
	}
}
