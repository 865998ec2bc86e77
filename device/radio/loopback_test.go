package radio

import "testing"

func TestLoopbackDeliversToConnectedPeer(t *testing.T) {
	bus := NewBus()
	a := bus.NewLink("A")
	b := bus.NewLink("B")
	bus.Connect("A", "B", -60)

	if err := a.Send([]byte("HELLO:A")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !b.IsPacketReady() {
		t.Fatal("IsPacketReady() = false on connected peer, want true")
	}
	payload, rssi, ok := b.TakePacket()
	if !ok || string(payload) != "HELLO:A" || rssi != -60 {
		t.Errorf("TakePacket() = %q, %d, %v, want HELLO:A, -60, true", payload, rssi, ok)
	}
}

func TestLoopbackDoesNotDeliverToUnconnectedPeer(t *testing.T) {
	bus := NewBus()
	a := bus.NewLink("A")
	c := bus.NewLink("C")
	// No Connect call between A and C.

	a.Send([]byte("HELLO:A"))
	if c.IsPacketReady() {
		t.Error("IsPacketReady() = true for an unconnected peer, want false")
	}
}

func TestLoopbackDoesNotEchoToSender(t *testing.T) {
	bus := NewBus()
	a := bus.NewLink("A")
	bus.NewLink("B")
	bus.Connect("A", "B", -60)

	a.Send([]byte("HELLO:A"))
	if a.IsPacketReady() {
		t.Error("sender received its own broadcast")
	}
}

func TestLoopbackThreeNodeTopology(t *testing.T) {
	// A and C are both adjacent to B, but not to each other.
	bus := NewBus()
	a := bus.NewLink("A")
	b := bus.NewLink("B")
	c := bus.NewLink("C")
	bus.Connect("A", "B", -60)
	bus.Connect("B", "C", -60)

	a.Send([]byte("RREQ:A:C:1:"))

	if !b.IsPacketReady() {
		t.Fatal("B did not receive A's broadcast")
	}
	if c.IsPacketReady() {
		t.Error("C received A's broadcast directly, want only via B")
	}
}
