// Package normalizer turns raw JSON-RPC payloads into the uniform
// transaction records spec §4.2 describes. FromETHTransaction and
// FromSTQLog are pure and total over well-formed inputs: given the
// same RPC payload they always produce the same
// PartialBlockchainTransaction (spec §8's "normalization is pure"
// law). Finalize is not pure: it fetches the receipt over RPC.
package normalizer

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"chaingateway/internal/apperrors"
	"chaingateway/internal/model"
	"chaingateway/internal/rpc"
)

// addressLength is the length, in hex characters, of an unpadded
// 20-byte Ethereum address.
const addressLength = 40

// paddedTopicLength is "0x" + 64 hex characters: a 32-byte log topic.
const paddedTopicLength = 66

const canonicalTransferSignature = "Transfer(address,address,uint256)"

var erc20TransferEventABI = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}]`

// Normalizer holds the ERC-20 contract/topic configuration needed to
// recognize STQ transfers.
type Normalizer struct {
	stqContractAddress string
	stqTransferTopic   string
	log                log.Logger
}

// New builds a Normalizer and, as a one-time sanity check, validates
// the configured stq_transfer_topic against the canonical
// Transfer(address,address,uint256) event signature — grounded on
// geth-17-indexer's ABI-driven topic derivation. A mismatch is logged,
// not fatal: operators may legitimately track a differently-shaped
// Transfer-like event.
func New(stqContractAddress, stqTransferTopic string) *Normalizer {
	n := &Normalizer{
		stqContractAddress: strings.ToLower(stqContractAddress),
		stqTransferTopic:   strings.ToLower(stqTransferTopic),
		log:                log.New("component", "normalizer"),
	}
	if !common.IsHexAddress(n.stqContractAddress) {
		n.log.Warn("configured stq_contract_address is not a well-formed address",
			"configured", n.stqContractAddress)
	}
	if parsed, err := abi.JSON(strings.NewReader(erc20TransferEventABI)); err == nil {
		canonical := parsed.Events["Transfer"].ID.Hex()
		if !strings.EqualFold(canonical, n.stqTransferTopic) {
			n.log.Warn("configured stq_transfer_topic does not match canonical Transfer signature",
				"configured", n.stqTransferTopic, "canonical", canonical, "signature", canonicalTransferSignature)
		}
	}
	return n
}

// FromETHTransaction implements spec §4.2's "ETH native → Partial":
// `to` may be absent (contract creation), substituted with "0".
func FromETHTransaction(tx *rpc.Transaction) (*model.PartialBlockchainTransaction, error) {
	blockNumber, err := parseHexUint64(tx.BlockNumber)
	if err != nil {
		return nil, err
	}
	value, err := model.ParseHexAmount(tx.Value)
	if err != nil {
		return nil, err
	}
	gasPrice, err := model.ParseHexAmount(tx.GasPrice)
	if err != nil {
		return nil, err
	}

	toAddress := "0"
	if tx.To != nil {
		toAddress = stripHexPrefix(*tx.To)
	}

	partial := &model.PartialBlockchainTransaction{
		Hash:        stripHexPrefix(tx.Hash),
		From:        []string{stripHexPrefix(tx.From)},
		To:          []model.BlockchainTransactionEntry{{Address: toAddress, Value: value}},
		BlockNumber: blockNumber,
		Currency:    model.Eth,
		GasPrice:    gasPrice,
	}
	if err := partial.Validate(); err != nil {
		return nil, err
	}
	return partial, nil
}

// FromSTQLog implements spec §4.2's "ERC-20 log → Partial". gasPrice is
// not present on the log and MUST be supplied by the caller (fetched
// via GetTransactionByHash) — the Walker is the natural place to do
// that fetch (spec §9's "backref from ERC-20 log" design note).
func FromSTQLog(entry *rpc.Log, gasPrice model.Amount) (*model.PartialBlockchainTransaction, error) {
	if len(entry.Topics) < 3 {
		return nil, apperrors.New(apperrors.KindTopics, "stq log missing from/to topics")
	}
	fromTopic := entry.Topics[1]
	toTopic := entry.Topics[2]
	if fromTopic == "" || toTopic == "" {
		return nil, apperrors.New(apperrors.KindTopics, "stq log has empty from/to topic")
	}
	from, err := addressFromTopic(fromTopic)
	if err != nil {
		return nil, err
	}
	to, err := addressFromTopic(toTopic)
	if err != nil {
		return nil, err
	}

	blockNumber, err := parseHexUint64(entry.BlockNumber)
	if err != nil {
		return nil, err
	}
	value, err := model.ParseHexAmount(entry.Data)
	if err != nil {
		return nil, err
	}
	logIndex, err := parseHexUint64(entry.LogIndex)
	if err != nil {
		return nil, err
	}

	hash := stripHexPrefix(entry.TransactionHash) + ":" + uintToString(logIndex)
	if !model.ValidSTQHash(hash) {
		return nil, apperrors.Newf(apperrors.KindInternal, "synthesized stq hash %q does not match expected format", hash)
	}

	partial := &model.PartialBlockchainTransaction{
		Hash:        hash,
		From:        []string{from},
		To:          []model.BlockchainTransactionEntry{{Address: to, Value: value}},
		BlockNumber: blockNumber,
		Currency:    model.Stq,
		GasPrice:    gasPrice,
	}
	if err := partial.Validate(); err != nil {
		return nil, err
	}
	return partial, nil
}

// Finalize implements spec §4.2's Partial → Final step: fetch the
// receipt, compute fee = gas_used * gas_price with checked
// multiplication, compute confirmations = current_tip - block_number.
// Finalize itself does not filter on confirmation depth — that is a
// poller-level decision (spec §4.2).
func Finalize(ctx context.Context, client *rpc.Client, partial *model.PartialBlockchainTransaction, currentTip uint64) (*model.BlockchainTransaction, error) {
	receipt, err := client.GetTransactionReceipt(ctx, rawTxHashForReceipt(partial))
	if err != nil {
		return nil, err
	}

	gasUsed, err := model.ParseHexAmount(receipt.GasUsed)
	if err != nil {
		return nil, err
	}
	receiptBlockNumber, err := parseHexUint64(receipt.BlockNumber)
	if err != nil {
		return nil, err
	}

	fee, err := gasUsed.Mul(partial.GasPrice)
	if err != nil {
		return nil, err
	}

	if currentTip < receiptBlockNumber {
		// The tip moved backward relative to the block we're finalizing
		// (a reorg window race, per spec §9's open question decision):
		// drop, don't publish.
		return nil, nil
	}
	confirmations := currentTip - receiptBlockNumber

	return &model.BlockchainTransaction{
		Hash:          partial.Hash,
		From:          partial.From,
		To:            partial.To,
		BlockNumber:   partial.BlockNumber,
		Currency:      partial.Currency,
		Fee:           fee,
		Confirmations: confirmations,
	}, nil
}

// rawTxHashForReceipt strips the STQ ":<log_index>" suffix (if any) to
// recover the containing ETH transaction hash the receipt call needs.
func rawTxHashForReceipt(partial *model.PartialBlockchainTransaction) string {
	if partial.Currency != model.Stq {
		return partial.Hash
	}
	if idx := strings.IndexByte(partial.Hash, ':'); idx >= 0 {
		return partial.Hash[:idx]
	}
	return partial.Hash
}

// addressFromTopic extracts a 20-byte address from a 32-byte padded
// log topic by taking its last 40 hex characters, after enforcing the
// topic is a well-formed "0x" + 64 hex characters (spec §9's open
// question decision: enforce length before slicing).
func addressFromTopic(topic string) (string, error) {
	if len(topic) != paddedTopicLength {
		return "", apperrors.Newf(apperrors.KindTopics, "topic %q is not a well-formed 32-byte hex value", topic)
	}
	address := topic[len(topic)-addressLength:]
	if !common.IsHexAddress(address) {
		return "", apperrors.Newf(apperrors.KindTopics, "address %q extracted from topic %q is not a well-formed address", address, topic)
	}
	return strings.ToLower(address), nil
}
