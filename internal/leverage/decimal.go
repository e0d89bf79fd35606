package leverage

import (
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// WADDecimals is the number of fractional digits carried by Decimal.
const WADDecimals = 18

var wad = uint256.NewInt(1_000_000_000_000_000_000)

// Decimal is an unsigned fixed-point number scaled by 10^18.
// Every operation is checked and reports MathOverflow instead of wrapping.
type Decimal struct {
	v uint256.Int
}

func Zero() Decimal {
	return Decimal{}
}

// FromU64 converts an integer to fixed point.
func FromU64(x uint64) Decimal {
	var d Decimal
	d.v.Mul(uint256.NewInt(x), wad)
	return d
}

// FromScaled converts mantissa * 10^expo, with expo in [-18, 18], to fixed point.
func FromScaled(mantissa uint64, expo int32) (Decimal, error) {
	if expo < -WADDecimals || expo > WADDecimals {
		return Decimal{}, apperrors.MathOverflow()
	}
	var d Decimal
	m := uint256.NewInt(mantissa)
	shift := WADDecimals + int(expo)
	scale := pow10(shift)
	if _, overflow := d.v.MulOverflow(m, scale); overflow {
		return Decimal{}, apperrors.MathOverflow()
	}
	return d, nil
}

func pow10(n int) *uint256.Int {
	out := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := 0; i < n; i++ {
		out.Mul(out, ten)
	}
	return out
}

func (d Decimal) IsZero() bool {
	return d.v.IsZero()
}

func (d Decimal) Cmp(o Decimal) int {
	return d.v.Cmp(&o.v)
}

func (d Decimal) TryMulU64(x uint64) (Decimal, error) {
	var out Decimal
	if _, overflow := out.v.MulOverflow(&d.v, uint256.NewInt(x)); overflow {
		return Decimal{}, apperrors.MathOverflow()
	}
	return out, nil
}

func (d Decimal) TryDivU64(x uint64) (Decimal, error) {
	if x == 0 {
		return Decimal{}, apperrors.MathOverflow()
	}
	var out Decimal
	out.v.Div(&d.v, uint256.NewInt(x))
	return out, nil
}

func (d Decimal) TryAdd(o Decimal) (Decimal, error) {
	var out Decimal
	if _, overflow := out.v.AddOverflow(&d.v, &o.v); overflow {
		return Decimal{}, apperrors.MathOverflow()
	}
	return out, nil
}

// TryDiv divides two fixed-point numbers keeping 18 fractional digits.
func (d Decimal) TryDiv(o Decimal) (Decimal, error) {
	if o.v.IsZero() {
		return Decimal{}, apperrors.MathOverflow()
	}
	var scaled uint256.Int
	if _, overflow := scaled.MulOverflow(&d.v, wad); overflow {
		return Decimal{}, apperrors.MathOverflow()
	}
	var out Decimal
	out.v.Div(&scaled, &o.v)
	return out, nil
}

// TryFloorU64 drops the fraction and fails if the integer part exceeds uint64.
func (d Decimal) TryFloorU64() (uint64, error) {
	var whole uint256.Int
	whole.Div(&d.v, wad)
	if !whole.IsUint64() {
		return 0, apperrors.MathOverflow()
	}
	return whole.Uint64(), nil
}

// Decimal renders the value for logs and API responses.
func (d Decimal) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(d.v.ToBig(), -WADDecimals)
}

func (d Decimal) String() string {
	return d.Decimal().String()
}
