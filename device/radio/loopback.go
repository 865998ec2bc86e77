package radio

import "sync"

// Bus is an in-memory shared medium connecting any number of Loopback
// links, for tests that exercise the multi-hop scenarios in spec §8. Two
// links only hear each other if explicitly Connected, so a bus can model
// a partial-mesh topology (e.g. A and C both adjacent to B but not to
// each other).
type Bus struct {
	mu    sync.Mutex
	links map[string]*Loopback
	edges map[[2]string]int
}

// NewBus creates an empty shared medium.
func NewBus() *Bus {
	return &Bus{
		links: make(map[string]*Loopback),
		edges: make(map[[2]string]int),
	}
}

// NewLink creates a Loopback endpoint named name attached to the bus.
func (b *Bus) NewLink(name string) *Loopback {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := &Loopback{name: name, bus: b}
	b.links[name] = l
	return l
}

// Connect makes a and b mutually audible at the given RSSI (dBm). Call
// again to change the RSSI of an existing edge.
func (b *Bus) Connect(a, bb string, rssi int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edges[[2]string{a, bb}] = rssi
	b.edges[[2]string{bb, a}] = rssi
}

func (b *Bus) broadcast(from string, frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, link := range b.links {
		if name == from {
			continue
		}
		rssi, ok := b.edges[[2]string{from, name}]
		if !ok {
			continue
		}
		cp := append([]byte(nil), frame...)
		link.deliver(cp, rssi)
	}
}

type packet struct {
	payload []byte
	rssi    int
}

// Loopback is one node's endpoint on a Bus. It implements Link.
type Loopback struct {
	name string
	bus  *Bus

	mu    sync.Mutex
	inbox []packet
}

// Send broadcasts frame to every Loopback connected to this one.
func (l *Loopback) Send(frame []byte) error {
	l.bus.broadcast(l.name, frame)
	return nil
}

// IsPacketReady reports whether a frame is queued for this endpoint.
func (l *Loopback) IsPacketReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inbox) > 0
}

// TakePacket dequeues the oldest pending frame.
func (l *Loopback) TakePacket() ([]byte, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbox) == 0 {
		return nil, 0, false
	}
	p := l.inbox[0]
	l.inbox = l.inbox[1:]
	return p.payload, p.rssi, true
}

func (l *Loopback) deliver(payload []byte, rssi int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbox = append(l.inbox, packet{payload: payload, rssi: rssi})
}
