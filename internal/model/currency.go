package model

import "chaingateway/internal/apperrors"

// Currency is the closed set of chains this gateway tracks.
type Currency string

const (
	Btc Currency = "btc"
	Eth Currency = "eth"
	Stq Currency = "stq"
)

// Exchange returns the durable AMQP exchange (and routing key, which
// is always equal to the exchange name) this currency publishes to.
func (c Currency) Exchange() (string, error) {
	switch c {
	case Btc:
		return "btc_transactions", nil
	case Eth:
		return "eth_transactions", nil
	case Stq:
		return "stq_transactions", nil
	default:
		return "", apperrors.Newf(apperrors.KindInternal, "unknown currency %q", c)
	}
}

// Valid reports whether c is one of the closed set of currencies.
func (c Currency) Valid() bool {
	switch c {
	case Btc, Eth, Stq:
		return true
	default:
		return false
	}
}
