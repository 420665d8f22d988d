// Package fixedpoint implements the scaled integer arithmetic shared with the
// staking contract. All division truncates toward zero and no rounding
// correction is applied.
package fixedpoint

import (
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// PrecisionDecimals is the number of decimal places carried by scaled values.
const PrecisionDecimals = 12

// Precision is the scale factor applied to reward rates and reward-per-token values.
var Precision = uint256.NewInt(1_000_000_000_000)

var (
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
	ErrOverflow       = errors.New("fixedpoint: result overflows 256 bits")
)

// ScaleMulDiv returns a*b/denom computed with a 512-bit intermediate product.
func ScaleMulDiv(a, b, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ErrDivisionByZero
	}

	result, overflow := new(uint256.Int).MulDivOverflow(a, b, denom)
	if overflow {
		return nil, errors.Wrapf(ErrOverflow, "%s * %s / %s", a.Dec(), b.Dec(), denom.Dec())
	}

	return result, nil
}

// Unscale divides x by Precision, truncating.
func Unscale(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(x, Precision)
}

// Format renders a scaled value as a decimal number with PrecisionDecimals places.
func Format(x *uint256.Int) string {
	fraction := new(uint256.Int).Mod(x, Precision).Dec()
	return Unscale(x).Dec() + "." + strings.Repeat("0", PrecisionDecimals-len(fraction)) + fraction
}

// AbsDiff returns |a - b|.
func AbsDiff(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Sub(b, a)
	}

	return new(uint256.Int).Sub(a, b)
}
