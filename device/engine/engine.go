// Package engine implements the DSR protocol engine: frame dispatch,
// route discovery, the request/response transaction, and the
// application façade described in spec §2 item 7 and §6.
//
// The engine is single-threaded and cooperative (spec §5): on_frame,
// on_tick, and request_data are the only entry points, each serialized
// by one mutex, and none of them block.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dsrmesh/dsrnode/core"
	"github.com/dsrmesh/dsrnode/core/clock"
	"github.com/dsrmesh/dsrnode/core/codec"
	"github.com/dsrmesh/dsrnode/core/metrics"
	"github.com/dsrmesh/dsrnode/core/neighbor"
	"github.com/dsrmesh/dsrnode/core/route"
	"github.com/dsrmesh/dsrnode/core/seencache"
	"github.com/dsrmesh/dsrnode/core/transaction"
	"github.com/dsrmesh/dsrnode/device/radio"
	"github.com/rs/xid"
)

// ErrNoSelf and ErrNoLink are returned by New when a required Config
// field is missing.
var (
	ErrNoSelf = errors.New("engine: Config.Self is required")
	ErrNoLink = errors.New("engine: Config.Link is required")
)

// Responder supplies the application payload for a RESP sent to
// requester. The engine treats the payload as opaque (spec §4.6).
type Responder func(requester core.NodeID) []byte

// Config configures an Engine. Zero-valued tunables fall back to the
// defaults named in spec §6. This includes MaxAttempts: zero means
// transaction.DefaultMaxAttempts here, not "disable retries" (spec B3);
// the zero-disables behavior belongs to a core/transaction.Manager
// constructed directly with maxAttempts 0.
type Config struct {
	Self core.NodeID
	Link radio.Link

	// Clock supplies both the message stamp and the monotonic "now" used
	// for deadlines. Defaults to clock.New() if nil.
	Clock *clock.Clock

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Respond produces the payload for an outgoing RESP. If nil, an
	// empty payload is sent and a warning is logged.
	Respond Responder

	QoSThreshold  int
	CacheTTL      uint32
	MaxAttempts   int
	RetryInterval uint32
	Timeout       uint32

	// HelloPeriod and TickPeriod govern Run's two internal timers: how
	// often it emits a HELLO and how often it fires the maintenance tick.
	// Defaults: 10s and 1s (spec §6). Irrelevant if the host drives
	// SendHello/OnTick itself instead of calling Run.
	HelloPeriod time.Duration
	TickPeriod  time.Duration
}

// Defaults for the Run-loop tunables named in spec §6.
const (
	DefaultHelloPeriod = 10 * time.Second
	DefaultTickPeriod  = 1 * time.Second
)

// Engine is one node's DSR protocol state machine.
type Engine struct {
	self    core.NodeID
	link    radio.Link
	clock   *clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
	respond Responder

	helloPeriod time.Duration
	tickPeriod  time.Duration

	mu        sync.Mutex
	neighbors *neighbor.Table
	cache     *seencache.Cache
	routes    *route.Table
	txn       *transaction.Manager

	// corrID is a log-only correlation ID for the in-flight transaction, so
	// a retry and its eventual completion or timeout can be followed in the
	// logs without cross-referencing stamps by hand. It never appears on
	// the wire.
	corrID string
}

// New creates an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Self == "" {
		return nil, ErrNoSelf
	}
	if cfg.Link == nil {
		return nil, ErrNoLink
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = transaction.DefaultMaxAttempts
	}
	retryInterval := cfg.RetryInterval
	if retryInterval == 0 {
		retryInterval = transaction.DefaultRetryInterval
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = transaction.DefaultTimeout
	}
	helloPeriod := cfg.HelloPeriod
	if helloPeriod == 0 {
		helloPeriod = DefaultHelloPeriod
	}
	tickPeriod := cfg.TickPeriod
	if tickPeriod == 0 {
		tickPeriod = DefaultTickPeriod
	}

	return &Engine{
		self:        cfg.Self,
		link:        cfg.Link,
		clock:       cfg.Clock,
		log:         logger.WithGroup("engine").With("node", string(cfg.Self)),
		metrics:     cfg.Metrics,
		respond:     cfg.Respond,
		helloPeriod: helloPeriod,
		tickPeriod:  tickPeriod,
		neighbors:   neighbor.New(cfg.QoSThreshold),
		cache:       seencache.New(cfg.CacheTTL),
		routes:      route.New(),
		txn:         transaction.New(maxAttempts, retryInterval, timeout),
	}, nil
}

// SendHello clears the neighbor set and emits one HELLO (spec §4.3, P4).
func (e *Engine) SendHello() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.neighbors.Clear()
	e.send(codec.HelloFrame{Self: e.self})
}

// RequestData initiates a transaction to dest if a route is known, or
// falls back to route discovery otherwise (spec §4.5).
func (e *Engine) RequestData(dest core.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.routes.Lookup(dest)
	if !ok {
		e.txn.BeginDiscovery(dest)
		stamp := e.clock.Stamp()
		e.cache.HasSeen(codec.KindRREQ, stamp, e.self, dest)
		e.send(codec.RREQFrame{Source: e.self, Destination: dest, Stamp: stamp, Route: nil})
		return
	}

	stamp := e.clock.Stamp()
	frame := codec.DataFrame{Source: e.self, Destination: dest, Stamp: stamp, Route: r}
	e.cache.HasSeen(codec.KindData, stamp, e.self, dest)
	e.corrID = xid.New().String()
	e.send(frame)
	e.txn.Arm(dest, stamp, frame, e.clock.Now())
	e.log.Info("transaction armed", "destination", dest, "stamp", stamp, "corr_id", e.corrID)
}

// OnFrame processes one frame taken off the radio link, along with its
// received signal strength (spec §6).
func (e *Engine) OnFrame(raw []byte, rssi int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	line := string(raw)
	f, err := codec.Parse(line)
	if err != nil {
		e.metrics.IncMalformed()
		e.log.Debug("dropped malformed frame", "raw", line, "error", err)
		return
	}

	switch v := f.(type) {
	case codec.HelloFrame:
		e.handleHello(v, rssi)
	case codec.RREQFrame:
		e.handleRREQ(v)
	case codec.RREPFrame:
		e.handleRREP(v)
	case codec.DataFrame:
		e.handleData(v)
	case codec.RespFrame:
		e.handleResp(v)
	}

	if e.txn.State() == transaction.Waiting {
		e.tickTransaction(e.clock.Now())
	}
}

// OnTick advances time: it refreshes the cache-eviction horizon, evicts
// stale seen-cache entries, and drives the transaction tick (spec §4.7).
func (e *Engine) OnTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.cache.Evict(now)
	e.tickTransaction(now)

	e.metrics.SetNeighborCount(e.neighbors.Len())
	e.metrics.SetRouteCount(e.routes.Len())
}

// TakeCompleted returns the payload of the most recently completed
// transaction, if any.
func (e *Engine) TakeCompleted() ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	payload, ok := e.txn.TakeCompleted()
	if ok {
		e.corrID = ""
	}
	return payload, ok
}

// RouteTo returns the currently known route to dest, if any.
func (e *Engine) RouteTo(dest core.NodeID) (core.Route, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.routes.Lookup(dest)
}

// TransactionState returns the current transaction's state.
func (e *Engine) TransactionState() transaction.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txn.State()
}

// IsNeighbor reports whether id is currently in the neighbor table.
func (e *Engine) IsNeighbor(id core.NodeID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.neighbors.Has(id)
}

// Run drains the radio link and fires the HELLO and maintenance-tick
// timers, at the periods given by Config.HelloPeriod/TickPeriod, until ctx
// is cancelled. It is a convenience for hosts that don't want to wire
// their own polling loop; per spec §5 the engine itself does no I/O and
// blocks on nothing internal (per spec §9: drive on_tick "from a timer
// task or a single loop's select, not from a hardware timer callback").
func (e *Engine) Run(ctx context.Context) {
	tickTicker := time.NewTicker(e.tickPeriod)
	defer tickTicker.Stop()

	helloTicker := time.NewTicker(e.helloPeriod)
	defer helloTicker.Stop()

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tickTicker.C:
			e.OnTick()
		case <-helloTicker.C:
			e.SendHello()
		case <-pollTicker.C:
			for e.link.IsPacketReady() {
				payload, rssi, ok := e.link.TakePacket()
				if !ok {
					break
				}
				e.OnFrame(payload, rssi)
			}
		}
	}
}

// pollInterval is the radio-drain resolution used by Run.
const pollInterval = 50 * time.Millisecond

// tickTransaction evaluates the retry/timeout rules in spec §4.5 against
// now. The caller must already hold e.mu.
func (e *Engine) tickTransaction(now uint32) {
	switch e.txn.Tick(now) {
	case transaction.ActionRetry:
		snap := e.txn.Snapshot()
		r, _ := e.routes.Lookup(snap.Destination)
		newStamp := e.clock.Stamp()
		frame := codec.DataFrame{Source: e.self, Destination: snap.Destination, Stamp: newStamp, Route: r}
		e.cache.Refresh(codec.KindData, snap.Stamp, newStamp, e.self, snap.Destination)
		e.send(frame)
		e.txn.Restamp(newStamp, frame)
		e.log.Info("retrying DATA", "destination", snap.Destination, "stamp", newStamp, "corr_id", e.corrID)
	case transaction.ActionTimeout:
		snap := e.txn.Snapshot()
		e.routes.Evict(snap.Destination)
		e.cache.Forget(codec.KindData, snap.Stamp, e.self, snap.Destination)
		e.txn.Clear()
		e.log.Info("transaction timed out, route evicted", "destination", snap.Destination, "corr_id", e.corrID)
		e.corrID = ""
	}
}

func (e *Engine) handleHello(f codec.HelloFrame, rssi int) {
	if f.Self == e.self {
		return
	}
	e.neighbors.Observe(f.Self, rssi)
}

func (e *Engine) handleRREQ(f codec.RREQFrame) {
	lastHop := f.Source
	if len(f.Route) > 0 {
		lastHop = f.Route[len(f.Route)-1]
	}
	if !e.neighbors.Has(lastHop) {
		e.metrics.IncGated()
		return
	}
	if e.cache.HasSeen(codec.KindRREQ, f.Stamp, f.Source, f.Destination) {
		return
	}

	if f.Destination == e.self {
		e.send(codec.RREPFrame{
			Source:      e.self,
			Destination: f.Source,
			Stamp:       f.Stamp,
			Route:       f.Route.Reversed(),
		})
		return
	}

	// Defensive loop prevention beyond the duplicate cache (spec §9): never
	// extend a route that already passed through this node.
	if f.Route.Contains(e.self) {
		return
	}

	extended := append(f.Route.Clone(), e.self)
	e.send(codec.RREQFrame{Source: f.Source, Destination: f.Destination, Stamp: f.Stamp, Route: extended})
}

func (e *Engine) handleRREP(f codec.RREPFrame) {
	if f.Destination == e.self {
		if e.cache.HasSeen(codec.KindRREP, f.Stamp, f.Source, f.Destination) {
			return
		}
		if err := e.routes.Install(e.self, f.Source, f.Route.Reversed()); err != nil {
			e.log.Warn("refusing to install invalid route from RREP", "source", f.Source, "error", err)
			return
		}
		if e.txn.State() == transaction.Discovering {
			e.txn.Clear()
		}
		return
	}

	if !f.Route.Contains(e.self) {
		e.metrics.IncGated()
		return
	}
	if e.cache.HasSeen(codec.KindRREP, f.Stamp, f.Source, f.Destination) {
		return
	}
	e.send(f)
}

func (e *Engine) handleData(f codec.DataFrame) {
	if f.Destination == e.self {
		if e.cache.HasSeen(codec.KindData, f.Stamp, f.Source, f.Destination) {
			return
		}
		if err := e.routes.Install(e.self, f.Source, f.Route.Reversed()); err != nil {
			e.log.Warn("refusing to install invalid route from DATA", "source", f.Source, "error", err)
			return
		}
		var payload []byte
		if e.respond != nil {
			payload = e.respond(f.Source)
		} else {
			e.log.Warn("no Responder configured, sending empty payload")
		}
		resp := codec.BuildResp(e.self, f.Source, f.Stamp, f.Route.Reversed(), payload)
		e.cache.HasSeen(codec.KindResp, f.Stamp, e.self, f.Source)
		e.send(resp)
		return
	}

	if !f.Route.Contains(e.self) {
		return
	}
	if e.cache.HasSeen(codec.KindData, f.Stamp, f.Source, f.Destination) {
		return
	}
	e.send(f)
}

func (e *Engine) handleResp(f codec.RespFrame) {
	if f.Destination == e.self {
		if !codec.VerifyChecksum([]byte(codec.RespBody(f)), f.Check) {
			e.metrics.IncCheckFailed()
			e.log.Debug("dropped RESP with bad checksum", "source", f.Source, "stamp", f.Stamp)
			return
		}
		if e.cache.HasSeen(codec.KindResp, f.Stamp, f.Source, f.Destination) {
			return
		}
		if !e.txn.Complete(f.Stamp, f.Payload) {
			e.metrics.IncOrphanResp()
			e.log.Debug("dropped orphan RESP", "source", f.Source, "stamp", f.Stamp)
			return
		}
		e.log.Info("transaction completed", "source", f.Source, "stamp", f.Stamp, "corr_id", e.corrID)
		return
	}

	if !f.Route.Contains(e.self) {
		return
	}
	if e.cache.HasSeen(codec.KindResp, f.Stamp, f.Source, f.Destination) {
		return
	}
	e.send(f)
}

// send encodes f and hands it to the radio link, counting and logging any
// transmission error (spec §4.9: "Radio error on send").
func (e *Engine) send(f codec.Frame) {
	line := codec.Encode(f)
	if err := e.link.Send([]byte(line)); err != nil {
		e.metrics.IncRadioSendError()
		e.log.Error("radio send failed", "frame", line, "error", err)
	}
}
