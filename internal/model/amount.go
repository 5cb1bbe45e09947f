package model

import (
	"encoding/json"
	"strings"

	"github.com/holiman/uint256"

	"chaingateway/internal/apperrors"
)

// maxAmountBits is the domain width of Amount: the chain carries u128
// quantities (satoshi / wei), even though the backing word is 256 bits
// wide so that intermediate products (gas_used * gas_price) can be
// checked against it before being rejected.
const maxAmountBits = 128

// Amount is an unsigned 128-bit quantity in the smallest denomination
// of its currency. All arithmetic is checked: overflow is an error,
// never a silent wrap.
type Amount struct {
	v uint256.Int
}

// ZeroAmount is the additive identity.
func ZeroAmount() Amount {
	return Amount{}
}

// AmountFromUint64 builds an Amount from a plain unsigned integer.
func AmountFromUint64(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseHexAmount implements the hex parsing rule of spec §4.1: strip a
// leading "0x" then parse as unsigned hexadecimal. Anything else,
// including an out-of-range value, is a Hex error.
func ParseHexAmount(s string) (Amount, error) {
	if !strings.HasPrefix(s, "0x") {
		return Amount{}, apperrors.Newf(apperrors.KindHex, "amount %q missing 0x prefix", s)
	}
	val, err := uint256.FromHex(s)
	if err != nil {
		return Amount{}, apperrors.Wrapf(err, apperrors.KindHex, "parsing hex amount %q", s)
	}
	if val.BitLen() > maxAmountBits {
		return Amount{}, apperrors.Newf(apperrors.KindHex, "amount %q exceeds 128 bits", s)
	}
	return Amount{v: *val}, nil
}

// FormatHex is the inverse of ParseHexAmount for values this process
// produced itself (used by tests asserting the parse/format law).
func (a Amount) FormatHex() string {
	return a.v.Hex()
}

// Mul computes a checked product, failing with an Overflow error if the
// 256-bit word overflows or if the true product exceeds the 128-bit
// domain (spec §8 scenario 4: gas_used=2^100, gas_price=2^100).
func (a Amount) Mul(b Amount) (Amount, error) {
	var result uint256.Int
	_, overflowed := result.MulOverflow(&a.v, &b.v)
	if overflowed || result.BitLen() > maxAmountBits {
		return Amount{}, apperrors.Newf(apperrors.KindOverflow, "amount overflow: %s * %s", a.v.Dec(), b.v.Dec())
	}
	return Amount{v: result}, nil
}

// Add computes a checked sum.
func (a Amount) Add(b Amount) (Amount, error) {
	var result uint256.Int
	_, overflowed := result.AddOverflow(&a.v, &b.v)
	if overflowed || result.BitLen() > maxAmountBits {
		return Amount{}, apperrors.Newf(apperrors.KindOverflow, "amount overflow: %s + %s", a.v.Dec(), b.v.Dec())
	}
	return Amount{v: result}, nil
}

// SaturatingSub computes a - b, saturating to zero instead of wrapping
// when b > a, so an input with b > a never yields a huge wrapped value.
func (a Amount) SaturatingSub(b Amount) Amount {
	if a.v.Cmp(&b.v) < 0 {
		return Amount{}
	}
	var result uint256.Int
	result.Sub(&a.v, &b.v)
	return Amount{v: result}
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp compares two amounts the way big.Int.Cmp does.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalJSON encodes the amount as a decimal string so downstream
// consumers never lose precision to a JSON number's float64 round-trip.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := uint256.FromDecimal(s)
		if err != nil {
			return apperrors.Wrapf(err, apperrors.KindDecode, "decoding amount %q", s)
		}
		a.v = *v
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return apperrors.Wrapf(err, apperrors.KindDecode, "decoding amount")
	}
	a.v.SetUint64(n)
	return nil
}
