// Package poller implements the Poller (spec §4.4): one independent
// instance per currency, driving the Walker on a timer and forwarding
// its output to the Publisher, advancing an in-memory cursor only on
// full success so delivery stays at-least-once (spec §5(d)).
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"chaingateway/internal/model"
	"chaingateway/internal/walker"
)

// State is one of the Poller's state-machine states (spec §4.4).
type State string

const (
	StateIdle       State = "idle"
	StateTicking    State = "ticking"
	StateWalking    State = "walking"
	StatePublishing State = "publishing"
	StateError      State = "error"
)

// Publisher is the narrow interface the Poller needs from C5; see
// internal/publisher for the concrete implementation.
type Publisher interface {
	Publish(ctx context.Context, tx model.BlockchainTransaction) error
}

// Config configures a single Poller.
type Config struct {
	TickInterval      time.Duration
	ConfirmationDepth uint64
	StartBlock        uint64
	MaxBatchSize      uint64
}

// Poller drives one currency's Walker on a timer.
type Poller struct {
	currency  model.Currency
	walker    *walker.Walker
	tipSource TipSource
	publisher Publisher
	cursor    *model.Cursor
	cfg       Config
	log       log.Logger

	mu        sync.Mutex
	state     State
	lastError error
	lastTick  time.Time
}

// TipSource reports the current chain tip; satisfied by *rpc.Client's
// BlockNumber method.
type TipSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// New builds a Poller for currency.
func New(currency model.Currency, w *walker.Walker, tipSource TipSource, publisher Publisher, cfg Config) *Poller {
	return &Poller{
		currency:  currency,
		walker:    w,
		tipSource: tipSource,
		publisher: publisher,
		cursor:    model.NewCursor(cfg.StartBlock),
		cfg:       cfg,
		log:       log.New("component", "poller", "currency", currency),
		state:     StateIdle,
	}
}

// Cursor exposes the poller's cursor for status reporting and tests.
func (p *Poller) Cursor() *model.Cursor { return p.cursor }

// Snapshot reports the poller's current state, cursor, last tick time
// and last error.
type Snapshot struct {
	Currency  model.Currency
	State     State
	Cursor    uint64
	LastTick  time.Time
	LastError error
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Currency:  p.currency,
		State:     p.state,
		Cursor:    p.cursor.Get(),
		LastTick:  p.lastTick,
		LastError: p.lastError,
	}
}

func (p *Poller) setState(s State, err error) {
	p.mu.Lock()
	p.state = s
	p.lastError = err
	if s == StateTicking {
		p.lastTick = time.Now()
	}
	p.mu.Unlock()
}

// Run drives the tick loop until ctx is cancelled. A running atomic
// flag plus the fact that each tick fully completes before the next
// time.Ticker receive means ticks structurally never overlap; a tick
// that is still in flight when the interval elapses is simply skipped,
// not queued (spec §4.4's "Overlap" rule).
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	var running atomic.Bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !running.CompareAndSwap(false, true) {
				continue
			}
			p.tick(ctx)
			// Discard a tick that fell due while this one was running, so
			// it is skipped instead of firing right after.
			select {
			case <-ticker.C:
			default:
			}
			running.Store(false)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.setState(StateTicking, nil)

	tip, err := p.tipSource.BlockNumber(ctx)
	if err != nil {
		p.handleError(err)
		return
	}

	safeTip := saturatingSub(tip, p.cfg.ConfirmationDepth)
	cursor := p.cursor.Get()
	if safeTip <= cursor {
		p.setState(StateIdle, nil)
		return
	}

	from := cursor + 1
	to := safeTip
	if p.cfg.MaxBatchSize > 0 && to-from+1 > p.cfg.MaxBatchSize {
		to = from + p.cfg.MaxBatchSize - 1
	}

	p.setState(StateWalking, nil)
	var txs []model.BlockchainTransaction
	switch p.currency {
	case model.Eth:
		txs, err = p.walker.WalkETH(ctx, from, to, tip)
	case model.Stq:
		txs, err = p.walker.WalkSTQ(ctx, from, to, tip)
	default:
		p.handleError(nil)
		return
	}
	if err != nil {
		p.handleError(err)
		return
	}

	p.setState(StatePublishing, nil)
	for _, tx := range txs {
		if err := p.publisher.Publish(ctx, tx); err != nil {
			p.handleError(err)
			return
		}
	}

	// Full success: advance the cursor. Any error above returned before
	// this point, so the cursor is left untouched and the next tick
	// rewalks the same range (at-least-once delivery, spec §5(d)).
	p.cursor.Advance(to)
	p.setState(StateIdle, nil)
}

func (p *Poller) handleError(err error) {
	p.log.Error("tick failed, cursor not advanced", "err", err)
	p.setState(StateError, err)
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
