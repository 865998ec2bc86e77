package poller

import (
	"testing"
	"time"

	"github.com/dsrmesh/dsrnode/core"
	"github.com/dsrmesh/dsrnode/core/transaction"
)

// fakeEngine is a minimal Requester whose state a test can drive by hand.
type fakeEngine struct {
	state     transaction.State
	requested []core.NodeID
}

func (f *fakeEngine) RequestData(dest core.NodeID) {
	f.requested = append(f.requested, dest)
	f.state = transaction.Waiting
}

func (f *fakeEngine) TransactionState() transaction.State {
	return f.state
}

func newTestPoller(eng Requester, dests []core.NodeID) *Poller {
	p := New(eng, Config{Destinations: dests, Interval: 10 * time.Second})
	p.nowFn = func() time.Time { return time.Time{} } // frozen at the zero time: lastPoll stays zero, so the interval check never gates a tick
	return p
}

func TestTickIssuesFirstRequestImmediately(t *testing.T) {
	eng := &fakeEngine{state: transaction.Idle}
	p := newTestPoller(eng, []core.NodeID{"B", "C"})

	p.tick()

	if len(eng.requested) != 1 || eng.requested[0] != "B" {
		t.Fatalf("requested = %v, want [B]", eng.requested)
	}
}

func TestTickWaitsWhileInFlight(t *testing.T) {
	eng := &fakeEngine{state: transaction.Idle}
	p := newTestPoller(eng, []core.NodeID{"B", "C"})

	p.tick() // issues request to B, state goes Waiting
	p.tick() // still waiting; must not advance or re-request

	if len(eng.requested) != 1 {
		t.Fatalf("requested = %v, want exactly one request while in flight", eng.requested)
	}
}

func TestTickAdvancesAfterResolution(t *testing.T) {
	eng := &fakeEngine{state: transaction.Idle}
	p := newTestPoller(eng, []core.NodeID{"B", "C"})
	p.cfg.Interval = 0 // do not gate the second request on elapsed time

	p.tick() // B requested, now Waiting
	eng.state = transaction.Done
	p.tick() // resolved: advance to C and issue its request

	if len(eng.requested) != 2 || eng.requested[1] != "C" {
		t.Fatalf("requested = %v, want [B C]", eng.requested)
	}
}

func TestTickWrapsAroundDestinationList(t *testing.T) {
	eng := &fakeEngine{state: transaction.Idle}
	p := newTestPoller(eng, []core.NodeID{"B", "C"})
	p.cfg.Interval = 0

	p.tick()
	eng.state = transaction.Done
	p.tick() // -> C
	eng.state = transaction.Idle
	p.tick() // timed out / went idle without Done -> wraps back to B

	if len(eng.requested) != 3 || eng.requested[2] != "B" {
		t.Fatalf("requested = %v, want [B C B]", eng.requested)
	}
}

func TestTickNoDestinationsIsNoop(t *testing.T) {
	eng := &fakeEngine{state: transaction.Idle}
	p := newTestPoller(eng, nil)

	p.tick()

	if len(eng.requested) != 0 {
		t.Errorf("requested = %v, want none with an empty destination list", eng.requested)
	}
}
