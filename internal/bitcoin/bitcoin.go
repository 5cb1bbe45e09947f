// Package bitcoin is a thin client over blockchain.info's UTXO lookup
// and a raw-transaction broadcaster, grounded on the original
// service's BitcoinClient trait (original_source's
// client/bitcoin/mod.rs). Unlike the Ethereum-family RPC client, this
// talks to a plain REST API, not JSON-RPC, so it gets its own small
// transport rather than reusing internal/rpc.
package bitcoin

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"chaingateway/internal/apperrors"
)

// Utxo is one unspent transaction output, shaped after
// blockchain.info's /unspent response.
type Utxo struct {
	TxHash        string `json:"tx_hash"`
	TxOutputN     int    `json:"tx_output_n"`
	Script        string `json:"script"`
	Value         uint64 `json:"value"`
	Confirmations uint64 `json:"confirmations"`
}

type utxosResponse struct {
	UnspentOutputs []Utxo `json:"unspent_outputs"`
}

const defaultPushURL = "https://api.blockcypher.com/v1/btc/main/txs/push"

// Client is a Bitcoin REST client bound to one blockchain.info-shaped
// base URL (production or testnet, per config.Mode.BitcoinEndpoint).
type Client struct {
	http             *resty.Client
	baseURL          string
	pushURL          string
	blockcypherToken string
}

// New builds a Client against baseURL, using blockcypherToken for raw
// transaction submission via BlockCypher's pushtx endpoint (spec §6
// supplemental feature).
func New(baseURL, blockcypherToken string) *Client {
	return &Client{
		http:             resty.New(),
		baseURL:          baseURL,
		pushURL:          defaultPushURL,
		blockcypherToken: blockcypherToken,
	}
}

// GetUTXOs implements spec §6's Bitcoin UTXO listing via
// GET /unspent?active=<address>.
func (c *Client) GetUTXOs(ctx context.Context, address string) ([]Utxo, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.baseURL + "/unspent?active=" + address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.KindTimeout, "bitcoin utxo request timed out")
		}
		return nil, apperrors.Wrap(err, apperrors.KindTransport, "bitcoin utxo request failed")
	}
	if resp.IsError() {
		// blockchain.info returns "No free outputs to spend" with a
		// non-2xx status for addresses with no UTXOs; treat that as an
		// empty result rather than a transport failure.
		if resp.StatusCode() == 500 {
			return nil, nil
		}
		return nil, apperrors.Newf(apperrors.KindTransport, "bitcoin utxo request status %d", resp.StatusCode())
	}

	body := resp.Body()
	if !utf8.Valid(body) {
		return nil, apperrors.New(apperrors.KindDecode, "bitcoin utxo response is not valid utf-8")
	}
	var parsed utxosResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDecode, "decoding bitcoin utxo response")
	}
	return parsed.UnspentOutputs, nil
}

type pushTxRequest struct {
	Tx string `json:"tx"`
}

type pushTxResponse struct {
	Tx struct {
		Hash string `json:"hash"`
	} `json:"tx"`
}

// SendRawTransaction broadcasts a raw signed Bitcoin transaction via
// BlockCypher's pushtx endpoint, returning the resulting transaction
// hash.
func (c *Client) SendRawTransaction(ctx context.Context, rawTxHex string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("token", c.blockcypherToken).
		SetBody(pushTxRequest{Tx: rawTxHex}).
		Post(c.pushURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Wrap(ctx.Err(), apperrors.KindTimeout, "bitcoin push transaction timed out")
		}
		return "", apperrors.Wrap(err, apperrors.KindTransport, "bitcoin push transaction failed")
	}
	if resp.IsError() {
		return "", apperrors.Newf(apperrors.KindTransport, "bitcoin push transaction status %d", resp.StatusCode())
	}

	var parsed pushTxResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", apperrors.Wrap(err, apperrors.KindDecode, "decoding bitcoin push transaction response")
	}
	return parsed.Tx.Hash, nil
}
