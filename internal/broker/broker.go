// Package broker manages a fixed-size pool of AMQP channels over a
// single connection (spec §4.6, component C6), grounded on the
// original service's RabbitConnectionManager (original_source's
// client/rabbit/r2d2.rs): one dial under a connection timeout, one
// heartbeat, many short-lived channel borrows.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/streadway/amqp"

	"chaingateway/internal/apperrors"
)

// Pool hands out *amqp.Channel values borrowed from one shared
// *amqp.Connection. It is safe for concurrent use.
type Pool struct {
	url               string
	size              int
	connectionTimeout time.Duration
	acquireTimeout    time.Duration
	heartbeat         time.Duration
	log               log.Logger

	mu          sync.Mutex
	conn        *amqp.Connection
	channels    chan *amqp.Channel
	closeNotify chan *amqp.Error
}

// Config configures a Pool; field names mirror config.BrokerConfig so
// callers can pass that struct's values directly.
type Config struct {
	URL               string
	PoolSize          int
	ConnectionTimeout time.Duration
	AcquireTimeout    time.Duration
	Heartbeat         time.Duration
}

// NewPool builds a Pool. The underlying connection is established
// lazily, on the first Acquire, so construction itself cannot fail.
func NewPool(cfg Config) *Pool {
	size := cfg.PoolSize
	if size <= 0 {
		size = 10
	}
	return &Pool{
		url:               cfg.URL,
		size:              size,
		connectionTimeout: cfg.ConnectionTimeout,
		acquireTimeout:    cfg.AcquireTimeout,
		heartbeat:         cfg.Heartbeat,
		log:               log.New("component", "broker"),
	}
}

// ensureConnection dials the broker if no live connection exists yet,
// installs the NotifyClose watcher (spec §4.6's "reconnect on next
// borrow" rule), and (re)fills the channel pool.
func (p *Pool) ensureConnection() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), p.connectionTimeout)
	defer cancel()

	type dialResult struct {
		conn *amqp.Connection
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := amqp.DialConfig(p.url, amqp.Config{Heartbeat: p.heartbeat})
		resultCh <- dialResult{conn, err}
	}()

	select {
	case <-dialCtx.Done():
		return apperrors.Wrap(dialCtx.Err(), apperrors.KindTimeout, "dialing amqp broker timed out")
	case r := <-resultCh:
		if r.err != nil {
			return apperrors.Wrap(r.err, apperrors.KindBroker, "dialing amqp broker")
		}
		p.conn = r.conn
		p.closeNotify = r.conn.NotifyClose(make(chan *amqp.Error, 1))
		go p.watchClose(p.closeNotify)
	}

	channels := make(chan *amqp.Channel, p.size)
	for i := 0; i < p.size; i++ {
		ch, err := p.conn.Channel()
		if err != nil {
			return apperrors.Wrap(err, apperrors.KindBroker, "opening amqp channel")
		}
		channels <- ch
	}
	p.channels = channels
	return nil
}

// watchClose logs unexpected connection loss; the next Acquire call
// observes conn.IsClosed() and redials.
func (p *Pool) watchClose(notify chan *amqp.Error) {
	if reason, ok := <-notify; ok && reason != nil {
		p.log.Warn("amqp connection closed", "code", reason.Code, "reason", reason.Reason)
	}
}

// Acquire borrows a channel from the pool, blocking up to
// acquireTimeout (or until ctx is cancelled, whichever is sooner).
// Release must be called on the returned channel when done with it.
func (p *Pool) Acquire(ctx context.Context) (*amqp.Channel, error) {
	if err := p.ensureConnection(); err != nil {
		return nil, err
	}

	acquireCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	select {
	case ch := <-p.channels:
		if ch.IsClosed() {
			// has_broken: this channel died (e.g. from a broker-side nack
			// or connection blip); the connection may still be fine.
			// Replace it rather than handing back a dead channel.
			fresh, err := p.conn.Channel()
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindBroker, "reopening broken amqp channel")
			}
			return fresh, nil
		}
		return ch, nil
	case <-acquireCtx.Done():
		return nil, apperrors.Wrap(acquireCtx.Err(), apperrors.KindTimeout, "acquiring amqp channel timed out")
	}
}

// Release returns a channel to the pool. A channel left closed or
// broken is dropped rather than recycled, and a fresh channel from the
// live connection takes its place; if the connection itself is gone,
// the next Acquire's ensureConnection redials and refills the pool.
func (p *Pool) Release(ch *amqp.Channel) {
	if ch == nil {
		return
	}
	if ch.IsClosed() {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil || conn.IsClosed() {
			return
		}
		fresh, err := conn.Channel()
		if err != nil {
			return
		}
		ch = fresh
	}
	select {
	case p.channels <- ch:
	default:
		// Pool is full (shouldn't normally happen); close the surplus.
		_ = ch.Close()
	}
}

// Close tears down every channel and the underlying connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	close(p.channels)
	for ch := range p.channels {
		_ = ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
