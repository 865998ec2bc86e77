// Package transaction implements the DSR node's single in-flight
// request/response transaction (spec §3, §4.5, §4.8).
//
// At most one transaction is tracked per node: a new request silently
// replaces whatever was in flight (spec §5, "Cancellation"). The state
// that would otherwise live in a map keyed by stamp is flattened into one
// struct, per the "tagged option" guidance in spec §9.
package transaction

import (
	"sync"

	"github.com/dsrmesh/dsrnode/core"
	"github.com/dsrmesh/dsrnode/core/codec"
)

// State is a transaction's position in the IDLE -> DISCOVERING -> WAITING
// -> {DONE, DEAD} state machine (spec §4.8).
type State int

const (
	Idle State = iota
	Discovering
	Waiting
	Done
	Dead
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Discovering:
		return "DISCOVERING"
	case Waiting:
		return "WAITING"
	case Done:
		return "DONE"
	case Dead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Defaults for the tunables named in spec §6.
const (
	DefaultMaxAttempts   = 2
	DefaultRetryInterval = uint32(30)
	DefaultTimeout       = uint32(62)
)

// Transaction is a snapshot of the node's single in-flight request.
type Transaction struct {
	Destination   core.NodeID
	Stamp         uint32
	RetryCount    int
	RetryDeadline uint32
	HardDeadline  uint32
	LastFrame     codec.Frame
	State         State
	Payload       []byte
}

// Action reports what a Tick call requires the engine to do.
type Action int

const (
	// ActionNone means no transition occurred; nothing to send.
	ActionNone Action = iota
	// ActionRetry means the engine must re-stamp and resend LastFrame.
	ActionRetry
	// ActionTimeout means the route has died; the engine must evict it.
	ActionTimeout
)

// Manager holds the single active transaction and the tunables that
// govern its retry and timeout behavior.
type Manager struct {
	maxAttempts   int
	retryInterval uint32
	timeout       uint32

	mu      sync.Mutex
	current Transaction
}

// New creates a Manager with explicit tunables. MAX_ATTEMPTS = 0 is a
// valid configuration (B3): it disables retry entirely.
func New(maxAttempts int, retryInterval, timeout uint32) *Manager {
	return &Manager{
		maxAttempts:   maxAttempts,
		retryInterval: retryInterval,
		timeout:       timeout,
	}
}

// NewDefault creates a Manager using the spec's default tunables.
func NewDefault() *Manager {
	return New(DefaultMaxAttempts, DefaultRetryInterval, DefaultTimeout)
}

// BeginDiscovery marks the transaction as awaiting a route to dest; no
// retry/timeout deadlines are armed in this state (spec §4.8).
func (m *Manager) BeginDiscovery(dest core.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Transaction{Destination: dest, State: Discovering}
}

// Arm starts the WAITING state for a freshly emitted DATA frame.
func (m *Manager) Arm(dest core.NodeID, stamp uint32, frame codec.Frame, now uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Transaction{
		Destination:   dest,
		Stamp:         stamp,
		RetryCount:    1,
		RetryDeadline: now + m.retryInterval,
		HardDeadline:  now + m.timeout,
		LastFrame:     frame,
		State:         Waiting,
	}
}

// State returns the current transaction's state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.State
}

// Snapshot returns a copy of the current transaction.
func (m *Manager) Snapshot() Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Tick evaluates the transaction tick rules (spec §4.5) against now. It
// returns ActionRetry when the caller must re-stamp and resend LastFrame
// (the caller must then call Restamp with the new stamp/frame), and
// ActionTimeout when the caller must evict the route and clear state.
func (m *Manager) Tick(now uint32) Action {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.State != Waiting {
		return ActionNone
	}
	if now >= m.current.HardDeadline {
		m.current.State = Dead
		return ActionTimeout
	}
	if now >= m.current.RetryDeadline && m.current.RetryCount < m.maxAttempts {
		m.current.RetryCount++
		m.current.RetryDeadline = now + m.retryInterval
		return ActionRetry
	}
	return ActionNone
}

// Restamp updates the stamp and last-sent frame of the transaction
// currently being retried, so the cache entry and wire frame stay in sync
// with the returned ActionRetry (spec §4.5: "update the cache entry's
// stamp in place").
func (m *Manager) Restamp(stamp uint32, frame codec.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Stamp = stamp
	m.current.LastFrame = frame
}

// Complete delivers payload if stamp matches the armed transaction's
// stamp and it is still WAITING (spec P5). It reports whether the
// delivery was accepted.
func (m *Manager) Complete(stamp uint32, payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.State != Waiting || m.current.Stamp != stamp {
		return false
	}
	m.current.State = Done
	m.current.Payload = payload
	return true
}

// TakeCompleted returns the payload of a DONE transaction and resets to
// IDLE. It reports false if no transaction is currently DONE.
func (m *Manager) TakeCompleted() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.State != Done {
		return nil, false
	}
	payload := m.current.Payload
	m.current = Transaction{State: Idle}
	return payload, true
}

// Clear resets the transaction to IDLE, discarding whatever was in
// flight. Used when a route is installed from a DISCOVERING state, and
// after a Dead transaction has been handled by the engine.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Transaction{State: Idle}
}
