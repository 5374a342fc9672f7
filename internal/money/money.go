package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Money represents a monetary amount in atomic units for a specific asset.
// All arithmetic is performed on int64 to avoid floating-point precision
// issues.
//
// Examples:
//   - NGN 10,000.00 = Money{Asset: NGN, Atomic: 1000000} // kobo
//   - $10.50 USD    = Money{Asset: USD, Atomic: 1050}    // cents
type Money struct {
	Asset  Asset
	Atomic int64
}

var (
	// ErrOverflow occurs when an operation would exceed int64 capacity.
	ErrOverflow = errors.New("money: arithmetic overflow")

	// ErrAssetMismatch occurs when operating on different assets.
	ErrAssetMismatch = errors.New("money: asset mismatch")

	// ErrInvalidFormat occurs when parsing fails.
	ErrInvalidFormat = errors.New("money: invalid format")
)

// Zero returns a zero amount for the given asset.
func Zero(asset Asset) Money {
	return Money{Asset: asset, Atomic: 0}
}

// New creates a Money from atomic units.
func New(asset Asset, atomic int64) Money {
	return Money{Asset: asset, Atomic: atomic}
}

// FromMajor creates Money from a major unit string (e.g. "10000.00").
// Uses half-up rounding for fractional digits beyond the asset's decimals.
func FromMajor(asset Asset, major string) (Money, error) {
	parts := strings.Split(strings.TrimSpace(major), ".")
	if len(parts) > 2 {
		return Money{}, fmt.Errorf("%w: too many decimal points", ErrInvalidFormat)
	}

	integerPart := parts[0]
	fractionalPart := ""
	if len(parts) == 2 {
		fractionalPart = parts[1]
	}

	integerVal, err := strconv.ParseInt(integerPart, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var atomicFromFraction int64
	if fractionalPart != "" {
		if len(fractionalPart) > int(asset.Decimals) {
			// Truncate and round half-up on the first dropped digit.
			roundDigit := fractionalPart[asset.Decimals] - '0'
			fractionalPart = fractionalPart[:asset.Decimals]

			parsed, _ := strconv.ParseInt(fractionalPart, 10, 64)
			atomicFromFraction = parsed
			if roundDigit >= 5 {
				atomicFromFraction++
			}
		} else {
			for len(fractionalPart) < int(asset.Decimals) {
				fractionalPart += "0"
			}
			atomicFromFraction, _ = strconv.ParseInt(fractionalPart, 10, 64)
		}
	}

	multiplier := int64(math.Pow10(int(asset.Decimals)))
	if integerVal > 0 && multiplier > math.MaxInt64/integerVal {
		return Money{}, ErrOverflow
	}
	if integerVal < 0 && multiplier > math.MaxInt64/(-integerVal) {
		return Money{}, ErrOverflow
	}

	atomicFromInteger := integerVal * multiplier
	if integerVal < 0 {
		atomicFromFraction = -atomicFromFraction
	}

	return Money{Asset: asset, Atomic: atomicFromInteger + atomicFromFraction}, nil
}

// FromFloat creates Money from a major-unit float, the representation payment
// gateways use in JSON payloads. The float is formatted with minimal digits
// before parsing, so gateway amounts like 10000 or 10000.5 convert exactly.
func FromFloat(asset Asset, amount float64) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, fmt.Errorf("%w: non-finite amount", ErrInvalidFormat)
	}
	return FromMajor(asset, strconv.FormatFloat(amount, 'f', -1, 64))
}

// ToMajor converts Money to a major-unit string with the asset's decimal places.
func (m Money) ToMajor() string {
	if m.Asset.Decimals == 0 {
		return strconv.FormatInt(m.Atomic, 10)
	}

	divisor := int64(math.Pow10(int(m.Asset.Decimals)))
	integerPart := m.Atomic / divisor
	fractionalPart := m.Atomic % divisor
	if fractionalPart < 0 {
		fractionalPart = -fractionalPart
	}

	var buf strings.Builder
	if m.Atomic < 0 && integerPart == 0 {
		buf.WriteByte('-')
	}
	buf.WriteString(strconv.FormatInt(integerPart, 10))
	buf.WriteByte('.')

	fractionalStr := strconv.FormatInt(fractionalPart, 10)
	for i := len(fractionalStr); i < int(m.Asset.Decimals); i++ {
		buf.WriteByte('0')
	}
	buf.WriteString(fractionalStr)

	return buf.String()
}

// ToAtomic returns the atomic units as a string.
func (m Money) ToAtomic() string {
	return strconv.FormatInt(m.Atomic, 10)
}

// String renders the amount with its currency code, e.g. "10000.00 NGN".
func (m Money) String() string {
	return m.ToMajor() + " " + m.Asset.Code
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Atomic > 0
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Atomic == 0
}

// Equal reports whether two amounts have the same asset and value.
func (m Money) Equal(other Money) bool {
	return m.Asset.Code == other.Asset.Code && m.Atomic == other.Atomic
}

// Add returns the sum of two Money values.
// Returns an error if assets don't match or overflow occurs.
func (m Money) Add(other Money) (Money, error) {
	if m.Asset.Code != other.Asset.Code {
		return Money{}, fmt.Errorf("%w: cannot add %s and %s", ErrAssetMismatch, m.Asset.Code, other.Asset.Code)
	}

	result := m.Atomic + other.Atomic
	if (result > m.Atomic) != (other.Atomic > 0) {
		return Money{}, ErrOverflow
	}

	return Money{Asset: m.Asset, Atomic: result}, nil
}

// Sub returns the difference of two Money values.
func (m Money) Sub(other Money) (Money, error) {
	if m.Asset.Code != other.Asset.Code {
		return Money{}, fmt.Errorf("%w: cannot subtract %s and %s", ErrAssetMismatch, m.Asset.Code, other.Asset.Code)
	}

	result := m.Atomic - other.Atomic
	if (result < m.Atomic) != (other.Atomic > 0) {
		return Money{}, ErrOverflow
	}

	return Money{Asset: m.Asset, Atomic: result}, nil
}

// MulBasisPoints multiplies Money by basis points (1/100th of a percent)
// with half-up rounding. Example: amount.MulBasisPoints(1500) applies a 15%
// rate. Intermediate math uses big.Int so large amounts cannot overflow.
func (m Money) MulBasisPoints(basisPoints int64) (Money, error) {
	if basisPoints == 0 {
		return Zero(m.Asset), nil
	}

	bigAtomic := big.NewInt(m.Atomic)
	bigBP := big.NewInt(basisPoints)
	bigDivisor := big.NewInt(10000)

	product := new(big.Int).Mul(bigAtomic, bigBP)

	quotient, remainder := new(big.Int).QuoRem(product, bigDivisor, new(big.Int))

	// Half-up: round away from zero when |remainder|*2 >= divisor.
	doubled := new(big.Int).Abs(new(big.Int).Mul(remainder, big.NewInt(2)))
	if doubled.Cmp(bigDivisor) >= 0 {
		if product.Sign() >= 0 {
			quotient.Add(quotient, big.NewInt(1))
		} else {
			quotient.Sub(quotient, big.NewInt(1))
		}
	}

	if !quotient.IsInt64() {
		return Money{}, ErrOverflow
	}

	return Money{Asset: m.Asset, Atomic: quotient.Int64()}, nil
}
