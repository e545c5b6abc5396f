// Package units converts between display token amounts, durations and the
// integer smallest-unit values the registry contract works with.
package units

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// Decimals is the number of fractional digits of the settlement token.
const Decimals = 18

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDuration = errors.New("invalid duration")
)

// Unit is one display token expressed in smallest units (10^18).
var Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ParseAmount converts a non-negative decimal string such as "0.0001" into
// smallest units. Fractional digits beyond Decimals are truncated.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return nil, fmt.Errorf("%w: %q is not a non-negative decimal", ErrInvalidAmount, s)
	}

	if len(fracPart) > Decimals {
		fracPart = fracPart[:Decimals]
	}
	fracPart += strings.Repeat("0", Decimals-len(fracPart))

	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// ParseAmountFloat converts a float display amount into smallest units using
// its shortest decimal representation.
func ParseAmountFloat(f float64) (*big.Int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, f)
	}
	return ParseAmount(strconv.FormatFloat(f, 'f', -1, 64))
}

// MustParseAmount is ParseAmount for constants; it panics on bad input.
func MustParseAmount(s string) *big.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatAmount renders smallest units as a decimal display amount with
// trailing fractional zeros removed.
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}

	sign := ""
	abs := new(big.Int).Set(v)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	digits := abs.String()
	if len(digits) <= Decimals {
		digits = strings.Repeat("0", Decimals-len(digits)+1) + digits
	}

	intPart := digits[:len(digits)-Decimals]
	fracPart := strings.TrimRight(digits[len(digits)-Decimals:], "0")
	if fracPart == "" {
		return sign + intPart
	}
	return sign + intPart + "." + fracPart
}

// FitsUint256 reports whether v can be encoded as a contract uint256.
func FitsUint256(v *big.Int) bool {
	if v == nil || v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
