// Package convert turns numeric token spans into Go numbers.
//
// A result equal to its type's saturating minimum or maximum is reported as
// ErrRange even when the input spelled that exact value, so the boundary
// values themselves cannot be loaded.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	ErrSyntax   = errors.New("not a number")
	ErrRange    = errors.New("value out of range")
	ErrNegative = errors.New("negative value for unsigned type")
)

// U64 parses span as an unsigned decimal integer.
func U64(span []byte) (uint64, error) {
	return unsigned(span, math.MaxUint64)
}

// U32 parses span as an unsigned decimal integer that fits in 32 bits.
func U32(span []byte) (uint32, error) {
	v, err := unsigned(span, math.MaxUint32)
	return uint32(v), err
}

// S64 parses span as a signed decimal integer.
func S64(span []byte) (int64, error) {
	return signed(span, math.MinInt64, math.MaxInt64)
}

// S32 parses span as a signed decimal integer that fits in 32 bits.
func S32(span []byte) (int32, error) {
	v, err := signed(span, math.MinInt32, math.MaxInt32)
	return int32(v), err
}

// F64 parses span as a decimal floating point number.
func F64(span []byte) (float64, error) {
	return float(span, 64)
}

// F32 parses span as a decimal floating point number in single precision.
func F32(span []byte) (float32, error) {
	v, err := float(span, 32)
	return float32(v), err
}

func unsigned(span []byte, limit uint64) (uint64, error) {
	if len(span) > 0 && span[0] == '-' {
		return 0, fmt.Errorf("%w: %q", ErrNegative, span)
	}
	v, err := strconv.ParseUint(string(bytes.TrimPrefix(span, []byte("+"))), 10, 64)
	if err != nil {
		return 0, numError(span, err)
	}
	if err := checkZero(span, v == 0); err != nil {
		return 0, err
	}
	if v >= limit {
		return 0, fmt.Errorf("%w: %q", ErrRange, span)
	}
	return v, nil
}

func signed(span []byte, lo, hi int64) (int64, error) {
	v, err := strconv.ParseInt(string(span), 10, 64)
	if err != nil {
		return 0, numError(span, err)
	}
	if err := checkZero(span, v == 0); err != nil {
		return 0, err
	}
	if v <= lo || v >= hi {
		return 0, fmt.Errorf("%w: %q", ErrRange, span)
	}
	return v, nil
}

func float(span []byte, bitSize int) (float64, error) {
	v, err := strconv.ParseFloat(string(span), bitSize)
	if err != nil {
		return 0, numError(span, err)
	}
	if err := checkZero(span, v == 0); err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %q", ErrRange, span)
	}
	return v, nil
}

// checkZero rejects a zero result unless the first digit of span is '0'.
func checkZero(span []byte, zero bool) error {
	if !zero {
		return nil
	}
	if i := bytes.IndexFunc(span, isDigit); i < 0 || span[i] != '0' {
		return fmt.Errorf("%w: %q", ErrSyntax, span)
	}
	return nil
}

func numError(span []byte, err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%w: %q", ErrRange, span)
	}
	return fmt.Errorf("%w: %q", ErrSyntax, span)
}

func isDigit(r rune) bool { return '0' <= r && r <= '9' }
