// Package fixedpoint provides overflow-checked integer arithmetic for the
// engine's fixed-point amounts. All amounts are non-negative uint64 values;
// intermediate products are carried at 128 bits so a*b/c never truncates
// before the division.
package fixedpoint

import (
	"errors"
	"math/bits"
)

var (
	// ErrOverflow is returned when a result does not fit in a uint64.
	ErrOverflow = errors.New("fixedpoint: overflow")

	// ErrDivideByZero is returned when a divisor is zero.
	ErrDivideByZero = errors.New("fixedpoint: divide by zero")
)

// MulDiv returns a*b/den, truncating toward zero, with a full 128-bit
// intermediate product.
func MulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrDivideByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, den)
	return q, nil
}

// Add returns a+b, failing on wraparound.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing when b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// Mul returns a*b, failing on overflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}
