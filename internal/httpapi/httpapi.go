// Package httpapi is the inbound submission surface (spec §6): two
// raw-transaction submission endpoints, routed with gorilla/mux the
// same way the pack's fab3 and firefly-signer examples route their
// JSON-RPC-shaped HTTP APIs.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"

	"chaingateway/internal/apperrors"
	"chaingateway/internal/bitcoin"
	"chaingateway/internal/model"
)

// BitcoinSubmitter sends a raw Bitcoin transaction and returns its hash.
type BitcoinSubmitter interface {
	SendRawTransaction(ctx context.Context, rawTxHex string) (string, error)
}

// EthereumSubmitter sends a raw Ethereum transaction and returns its hash.
type EthereumSubmitter interface {
	SendRawTransaction(ctx context.Context, rawTxHex string) (string, error)
}

// UTXOLister lists unspent outputs for a Bitcoin address.
type UTXOLister interface {
	GetUTXOs(ctx context.Context, address string) ([]bitcoin.Utxo, error)
}

// TransactionLookup normalizes a single already-known native ETH
// transaction by hash (SPEC_FULL §6's single-tx lookup); STQ log
// transfers are not looked up this way.
type TransactionLookup interface {
	NormalizeByHash(ctx context.Context, hash string) (*model.BlockchainTransaction, error)
}

// Server is the HTTP submission API.
type Server struct {
	bitcoin  BitcoinSubmitter
	ethereum EthereumSubmitter
	utxos    UTXOLister
	lookup   TransactionLookup
	log      log.Logger
}

// New builds a Server. Any collaborator may be nil, in which case the
// endpoints that need it always respond 500 (configuration incomplete).
func New(bitcoin BitcoinSubmitter, ethereum EthereumSubmitter, utxos UTXOLister, lookup TransactionLookup) *Server {
	return &Server{
		bitcoin:  bitcoin,
		ethereum: ethereum,
		utxos:    utxos,
		lookup:   lookup,
		log:      log.New("component", "httpapi"),
	}
}

// Router builds the mux.Router for this server: the two submission
// routes from spec §6, plus the supplemental UTXO-listing and
// single-transaction lookup routes from SPEC_FULL §6, and a uniform
// 404 envelope for everything else.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/bitcoin/transactions", s.submitBitcoin).Methods(http.MethodPost)
	r.HandleFunc("/v1/ethereum/transactions", s.submitEthereum).Methods(http.MethodPost)
	r.HandleFunc("/v1/bitcoin/utxos/{address}", s.listUTXOs).Methods(http.MethodGet)
	r.HandleFunc("/v1/ethereum/transactions/{hash}", s.lookupTransaction).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	return r
}

type submitRequest struct {
	Raw string `json:"raw"`
}

type submitResponse struct {
	TxHash string `json:"txHash"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func (s *Server) submitBitcoin(w http.ResponseWriter, r *http.Request) {
	if s.bitcoin == nil {
		writeError(w, apperrors.New(apperrors.KindInternal, "bitcoin submission is not configured"))
		return
	}
	s.submit(w, r, s.bitcoin.SendRawTransaction)
}

func (s *Server) submitEthereum(w http.ResponseWriter, r *http.Request) {
	if s.ethereum == nil {
		writeError(w, apperrors.New(apperrors.KindInternal, "ethereum submission is not configured"))
		return
	}
	s.submit(w, r, s.ethereum.SendRawTransaction)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, send func(context.Context, string) (string, error)) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.KindBadRequest, "decoding submission body"))
		return
	}
	if req.Raw == "" {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "raw transaction hex is required"))
		return
	}

	txHash, err := send(r.Context(), req.Raw)
	if err != nil {
		s.log.Error("submission failed", "err", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{TxHash: txHash})
}

func (s *Server) listUTXOs(w http.ResponseWriter, r *http.Request) {
	if s.utxos == nil {
		writeError(w, apperrors.New(apperrors.KindInternal, "bitcoin utxo listing is not configured"))
		return
	}
	address := mux.Vars(r)["address"]
	utxos, err := s.utxos.GetUTXOs(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, utxos)
}

func (s *Server) lookupTransaction(w http.ResponseWriter, r *http.Request) {
	if s.lookup == nil {
		writeError(w, apperrors.New(apperrors.KindInternal, "transaction lookup is not configured"))
		return
	}
	hash := mux.Vars(r)["hash"]
	tx, err := s.lookup.NormalizeByHash(r.Context(), hash)
	if err != nil {
		writeError(w, err)
		return
	}
	if tx == nil {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: "transaction not yet confirmed"})
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorEnvelope{Error: "not found"})
}

// writeError maps an apperrors.Kind to an HTTP status per spec §7's
// propagation policy and writes the uniform error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindBadRequest:
		status = http.StatusBadRequest
	case apperrors.KindTransport, apperrors.KindTimeout, apperrors.KindBroker:
		status = http.StatusBadGateway
	case apperrors.KindInternal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorEnvelope{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
