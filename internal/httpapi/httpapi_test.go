package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaingateway/internal/apperrors"
	"chaingateway/internal/bitcoin"
	"chaingateway/internal/model"
)

type fakeSubmitter struct {
	hash string
	err  error
}

func (f *fakeSubmitter) SendRawTransaction(ctx context.Context, rawTxHex string) (string, error) {
	return f.hash, f.err
}

type fakeUTXOLister struct {
	utxos []bitcoin.Utxo
	err   error
}

func (f *fakeUTXOLister) GetUTXOs(ctx context.Context, address string) ([]bitcoin.Utxo, error) {
	return f.utxos, f.err
}

type fakeLookup struct {
	tx  *model.BlockchainTransaction
	err error
}

func (f *fakeLookup) NormalizeByHash(ctx context.Context, hash string) (*model.BlockchainTransaction, error) {
	return f.tx, f.err
}

func TestSubmitBitcoin_Success(t *testing.T) {
	s := New(&fakeSubmitter{hash: "abc123"}, nil, nil, nil)
	body, _ := json.Marshal(submitRequest{Raw: "deadbeef"})
	req := httptest.NewRequest(http.MethodPost, "/v1/bitcoin/transactions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp.TxHash)
}

func TestSubmitBitcoin_MissingRawIsBadRequest(t *testing.T) {
	s := New(&fakeSubmitter{hash: "abc123"}, nil, nil, nil)
	body, _ := json.Marshal(submitRequest{})
	req := httptest.NewRequest(http.MethodPost, "/v1/bitcoin/transactions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitBitcoin_NotConfigured(t *testing.T) {
	s := New(nil, nil, nil, nil)
	body, _ := json.Marshal(submitRequest{Raw: "deadbeef"})
	req := httptest.NewRequest(http.MethodPost, "/v1/bitcoin/transactions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSubmitEthereum_TransportErrorMapsToBadGateway(t *testing.T) {
	s := New(nil, &fakeSubmitter{err: apperrors.New(apperrors.KindTransport, "rpc down")}, nil, nil)
	body, _ := json.Marshal(submitRequest{Raw: "deadbeef"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ethereum/transactions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestListUTXOs_Success(t *testing.T) {
	s := New(nil, nil, &fakeUTXOLister{utxos: []bitcoin.Utxo{{TxHash: "aa", Value: 100}}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/bitcoin/utxos/1address", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var utxos []bitcoin.Utxo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &utxos))
	require.Len(t, utxos, 1)
	assert.Equal(t, "aa", utxos[0].TxHash)
}

func TestLookupTransaction_NotYetConfirmed(t *testing.T) {
	s := New(nil, nil, nil, &fakeLookup{tx: nil})
	req := httptest.NewRequest(http.MethodGet, "/v1/ethereum/transactions/deadbeef", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLookupTransaction_Found(t *testing.T) {
	tx := &model.BlockchainTransaction{Hash: "deadbeef", Currency: model.Eth}
	s := New(nil, nil, nil, &fakeLookup{tx: tx})
	req := httptest.NewRequest(http.MethodGet, "/v1/ethereum/transactions/deadbeef", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got model.BlockchainTransaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "deadbeef", got.Hash)
}

func TestRouter_UnknownRouteReturnsNotFoundEnvelope(t *testing.T) {
	s := New(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "not found", env.Error)
}
