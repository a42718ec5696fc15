// Package safemath provides overflow-checked arithmetic for native-currency
// amounts. Amounts are unsigned integers; every accounting sum and interest
// computation must go through these helpers so a wrap surfaces as an error
// instead of corrupting balances.
package safemath

import (
	"errors"
	"math/bits"
)

// ErrOverflow is returned when an addition or multiplication would exceed
// the range of uint64.
var ErrOverflow = errors.New("arithmetic overflow")

// ErrUnderflow is returned when a subtraction would go below zero.
var ErrUnderflow = errors.New("arithmetic underflow")

// Add returns a+b, or ErrOverflow when the sum does not fit in uint64.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, or ErrUnderflow when b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// Mul returns a*b, or ErrOverflow when the product does not fit in uint64.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}
