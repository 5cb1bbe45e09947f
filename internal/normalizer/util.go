package normalizer

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"chaingateway/internal/apperrors"
)

func parseHexUint64(s string) (uint64, error) {
	n, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.KindHex, "parsing hex uint64 %q", s)
	}
	return n, nil
}

func stripHexPrefix(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "0x"))
}

func uintToString(n uint64) string {
	return strconv.FormatUint(n, 10)
}
