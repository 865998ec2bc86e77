// Package poller drives periodic RequestData calls against a round-robin
// list of destinations.
//
// This extends the original firmware's manual, single-destination request
// trigger into an automatic rotation (see DESIGN.md): a master node
// polling a fixed list of slave node IDs in turn, one request at a time.
// Poller is grounded on the teacher's device/advert.Scheduler ticker loop.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dsrmesh/dsrnode/core"
	"github.com/dsrmesh/dsrnode/core/transaction"
)

// Requester is the subset of device/engine.Engine the poller depends on.
type Requester interface {
	RequestData(dest core.NodeID)
	TransactionState() transaction.State
}

// tickInterval is the resolution of the poller's timer check loop,
// matching the teacher's advert.Scheduler.
const tickInterval = time.Second

// Config configures a Poller.
type Config struct {
	// Destinations is the ordered list of node IDs to poll in rotation.
	Destinations []core.NodeID
	// Interval is the minimum time between successive requests once the
	// current one has resolved.
	Interval time.Duration
	// Logger for poller events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Poller calls RequestData against each configured destination in turn,
// never starting the next request until the engine's single in-flight
// transaction (P3) has resolved — completed or gone dead.
type Poller struct {
	cfg Config
	eng Requester
	log *slog.Logger

	mu       sync.Mutex
	index    int
	pending  bool
	lastPoll time.Time
	cancel   context.CancelFunc

	nowFn func() time.Time
}

// New creates a Poller over the given engine and destination list.
func New(eng Requester, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:   cfg,
		eng:   eng,
		log:   logger.WithGroup("poller"),
		nowFn: time.Now,
	}
}

// Start begins the polling loop. It blocks until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// Stop cancels the polling loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// tick advances the rotation if the in-flight transaction has resolved
// and the configured interval has elapsed, then issues the next request.
func (p *Poller) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.cfg.Destinations) == 0 {
		return
	}

	if p.pending {
		switch p.eng.TransactionState() {
		case transaction.Discovering, transaction.Waiting:
			return // still in flight; do not start a new one (P3)
		}
		p.pending = false
		p.index = (p.index + 1) % len(p.cfg.Destinations)
	}

	now := p.nowFn()
	if !p.lastPoll.IsZero() && now.Sub(p.lastPoll) < p.cfg.Interval {
		return
	}

	dest := p.cfg.Destinations[p.index]
	p.eng.RequestData(dest)
	p.pending = true
	p.lastPoll = now
	p.log.Debug("polled destination", "destination", dest)
}
