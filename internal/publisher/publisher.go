// Package publisher implements the Publisher (spec §4.5, component
// C5): it serializes a finalized BlockchainTransaction to JSON and
// publishes it, with a persistent delivery mode, to the durable direct
// exchange named by its currency. Exchange declaration happens once
// per currency, idempotently, the same way the original service's
// rabbit client declared exchanges before its first publish.
package publisher

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/streadway/amqp"

	"chaingateway/internal/apperrors"
	"chaingateway/internal/audit"
	"chaingateway/internal/broker"
	"chaingateway/internal/model"
)

// Publisher publishes finalized transactions to the broker pool and,
// best-effort, to the local audit ledger.
type Publisher struct {
	pool  *broker.Pool
	audit *audit.Store
	log   log.Logger

	declareOnce sync.Map // model.Currency -> *sync.Once
}

// New builds a Publisher over pool. auditStore may be nil, in which
// case audit writes are skipped entirely (spec §8's audit trail is
// diagnostic-only and never gates publish success).
func New(pool *broker.Pool, auditStore *audit.Store) *Publisher {
	return &Publisher{
		pool:  pool,
		audit: auditStore,
		log:   log.New("component", "publisher"),
	}
}

// Publish implements spec §4.5: declare-if-needed, marshal, publish
// with persistent delivery mode, then best-effort audit.
func (p *Publisher) Publish(ctx context.Context, tx model.BlockchainTransaction) error {
	exchange, err := tx.Currency.Exchange()
	if err != nil {
		return err
	}

	ch, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Release(ch)

	if err := p.declareExchange(ch, tx.Currency, exchange); err != nil {
		return err
	}

	body, err := json.Marshal(tx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "marshaling transaction for publish")
	}

	err = ch.Publish(
		exchange,
		exchange, // routing key equals exchange name, spec §4.5
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindBroker, "publishing transaction")
	}

	if p.audit != nil {
		if err := p.audit.Record(ctx, tx); err != nil {
			// Diagnostic-only (spec §8): never fail the publish over this.
			p.log.Warn("audit write failed", "hash", tx.Hash, "err", err)
		}
	}
	return nil
}

func (p *Publisher) declareExchange(ch *amqp.Channel, currency model.Currency, exchange string) error {
	onceIface, _ := p.declareOnce.LoadOrStore(currency, &sync.Once{})
	once := onceIface.(*sync.Once)

	var declareErr error
	once.Do(func() {
		declareErr = ch.ExchangeDeclare(
			exchange,
			"direct",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
	})
	if declareErr != nil {
		// Allow a retry on the next publish: this attempt failed, so the
		// currency isn't actually declared yet.
		p.declareOnce.Delete(currency)
		return apperrors.Wrap(declareErr, apperrors.KindBroker, "declaring exchange")
	}
	return nil
}
