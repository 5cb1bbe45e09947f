package rpc

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"chaingateway/internal/apperrors"
)

// parseHexUint64 implements the hex parsing rule of spec §4.1 for
// plain block numbers / indices (as opposed to Amount, which carries
// the full 128-bit checked arithmetic in internal/model), using the
// same hexutil decoder the pack's arcSignv2 RPC adapter uses for
// blockNumber/gas/nonce fields.
func parseHexUint64(s string) (uint64, error) {
	n, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.KindHex, "parsing hex uint64 %q", s)
	}
	return n, nil
}

// formatHexUint64 renders n the way eth_getBlockByNumber et al. expect
// their block-number parameter: a "0x"-prefixed lowercase hex string.
func formatHexUint64(n uint64) string {
	return hexutil.EncodeUint64(n)
}

// stripHexPrefix removes a leading "0x", used for address/hash fields
// that are stored canonically without it (spec §3).
func stripHexPrefix(s string) string {
	return strings.TrimPrefix(s, "0x")
}
