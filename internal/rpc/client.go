// Package rpc is a typed façade over a single Ethereum-family JSON-RPC
// endpoint (spec §4.1). It performs, for every call: (a) request
// serialization, (b) HTTP send via an injected transport, (c) body
// read, (d) UTF-8 validation, (e) JSON decode into the response type —
// each stage failure mapping to a distinct apperrors.Kind. The client
// is stateless; concurrent calls are independent, mirroring the design
// note in spec §9 about sharing clients by reference.
package rpc

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"chaingateway/internal/apperrors"
)

// Transport is the seam the Client sends requests through. Production
// code uses restyTransport; tests inject a fake to exercise the
// Transport/Decode/Hex error paths spec §7 names without a network.
type Transport interface {
	Post(ctx context.Context, url string, body []byte) ([]byte, error)
}

// restyTransport adapts *resty.Client to Transport. A call is bounded
// only by the deadline its caller's context carries; the resty client
// is built without a timeout of its own.
type restyTransport struct {
	client *resty.Client
}

// NewRestyTransport builds a Transport backed by go-resty, the same
// HTTP client family the pack's firefly-signer client uses.
func NewRestyTransport() Transport {
	return &restyTransport{client: resty.New()}
}

func (t *restyTransport) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.KindTimeout, "rpc request timed out")
		}
		return nil, apperrors.Wrap(err, apperrors.KindTransport, "rpc http request failed")
	}
	if resp.IsError() {
		return nil, apperrors.Newf(apperrors.KindTransport, "rpc http status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// Client is a typed façade over one JSON-RPC endpoint.
type Client struct {
	transport Transport
	endpoint  string
}

// New builds a Client against endpoint using transport.
func New(endpoint string, transport Transport) *Client {
	return &Client{transport: transport, endpoint: endpoint}
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := request{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "serializing rpc request")
	}

	raw, err := c.transport.Post(ctx, c.endpoint, body)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(raw) {
		return nil, apperrors.New(apperrors.KindDecode, "rpc response is not valid utf-8")
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindDecode, "decoding rpc response for %s", method)
	}
	if resp.Error != nil {
		return nil, apperrors.Newf(apperrors.KindTransport, "rpc error %d for %s: %s", resp.Error.Code, method, resp.Error.Message)
	}
	return resp.Result, nil
}

// BlockNumber implements eth_blockNumber.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, apperrors.Wrap(err, apperrors.KindDecode, "decoding eth_blockNumber result")
	}
	return parseHexUint64(hex)
}

// GetBlockByNumber implements eth_getBlockByNumber(n, full).
func (c *Client) GetBlockByNumber(ctx context.Context, n uint64, full bool) (*Block, error) {
	raw, err := c.call(ctx, "eth_getBlockByNumber", []interface{}{formatHexUint64(n), full})
	if err != nil {
		return nil, err
	}
	var block Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindDecode, "decoding block %d", n)
	}
	return &block, nil
}

// GetBlockByHash implements eth_getBlockByHash(h, false); spec §4.1
// only ever needs the resolved block number back out of it.
func (c *Client) GetBlockByHash(ctx context.Context, hash string) (*ShortBlock, error) {
	raw, err := c.call(ctx, "eth_getBlockByHash", []interface{}{"0x" + hash, false})
	if err != nil {
		return nil, err
	}
	var block ShortBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindDecode, "decoding block by hash %s", hash)
	}
	return &block, nil
}

// GetTransactionByHash implements eth_getTransactionByHash.
func (c *Client) GetTransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	raw, err := c.call(ctx, "eth_getTransactionByHash", []interface{}{"0x" + hash})
	if err != nil {
		return nil, err
	}
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindDecode, "decoding transaction %s", hash)
	}
	return &tx, nil
}

// GetTransactionReceipt implements eth_getTransactionReceipt.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	raw, err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{"0x" + hash})
	if err != nil {
		return nil, err
	}
	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindDecode, "decoding receipt %s", hash)
	}
	return &receipt, nil
}

// GetLogs implements eth_getLogs over either a block range or a single
// transaction hash, per spec §4.1.
func (c *Client) GetLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	q := map[string]interface{}{
		"address": filter.Address,
		"topics":  filter.Topics,
	}
	if filter.TransactionHash != nil {
		q["transactionHash"] = "0x" + *filter.TransactionHash
	} else {
		if filter.FromBlock == nil || filter.ToBlock == nil {
			return nil, apperrors.New(apperrors.KindInternal, "getLogs requires both fromBlock and toBlock when no transactionHash is given")
		}
		q["fromBlock"] = formatHexUint64(*filter.FromBlock)
		q["toBlock"] = formatHexUint64(*filter.ToBlock)
	}

	raw, err := c.call(ctx, "eth_getLogs", []interface{}{q})
	if err != nil {
		return nil, err
	}
	var logs []Log
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindDecode, "decoding logs")
	}
	return logs, nil
}

// GetTransactionCount implements eth_getTransactionCount(address, "latest"),
// the nonce lookup the original service's EthereumClient trait exposes
// (SPEC_FULL §6 supplemental feature).
func (c *Client) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	raw, err := c.call(ctx, "eth_getTransactionCount", []interface{}{"0x" + address, "latest"})
	if err != nil {
		return 0, err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, apperrors.Wrap(err, apperrors.KindDecode, "decoding nonce")
	}
	return parseHexUint64(hex)
}

// SendRawTransaction implements eth_sendRawTransaction, returning the
// transaction hash without its 0x prefix (spec §3 canonical form).
func (c *Client) SendRawTransaction(ctx context.Context, rawTxHex string) (string, error) {
	raw, err := c.call(ctx, "eth_sendRawTransaction", []interface{}{"0x" + rawTxHex})
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", apperrors.Wrap(err, apperrors.KindDecode, "decoding sendRawTransaction result")
	}
	return stripHexPrefix(hash), nil
}
