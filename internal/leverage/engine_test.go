package leverage

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goldenPrices() Prices {
	return Prices{Base: FromU64(100), Quote: FromU64(1)}
}

func TestPlanGoldenValues(t *testing.T) {
	plan, err := NewEngine().Plan(2_500_000_000, 100_000_000, goldenPrices())
	require.NoError(t, err)
	require.Len(t, plan.Legs, 2)

	a, b := plan.Legs[0], plan.Legs[1]
	assert.Equal(t, Leg{
		Index: 0, SelfBase: 625_000_000, SelfQuote: 25_000_000,
		BorrowBase: 0, BorrowQuote: 175_000_000, MaxValue: FromU64(175),
	}, a)
	assert.Equal(t, Leg{
		Index: 1, SelfBase: 1_875_000_000, SelfQuote: 75_000_000,
		BorrowBase: 5_250_000_000, BorrowQuote: 0, MaxValue: FromU64(525),
	}, b)
	assert.Equal(t, "175", a.MaxValue.String())
}

func TestPlanConservesDeposit(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	e := NewEngine()
	for i := 0; i < 500; i++ {
		base := uint64(r.Int63n(1 << 40))
		quote := uint64(r.Int63n(1 << 40))
		if i%10 == 0 {
			base = 0
		}
		if i%15 == 0 {
			quote = 3
		}
		prices := Prices{
			Base:  FromU64(uint64(r.Int63n(10_000) + 1)),
			Quote: FromU64(uint64(r.Int63n(10) + 1)),
		}
		plan, err := e.Plan(base, quote, prices)
		require.NoError(t, err)
		gotBase, gotQuote := plan.SelfFunded()
		assert.Equal(t, base, gotBase)
		assert.Equal(t, quote, gotQuote)
		assert.Equal(t, uint64(0), plan.Legs[0].BorrowBase)
		assert.Equal(t, uint64(0), plan.Legs[1].BorrowQuote)
	}
}

func TestPlanZeroDeposit(t *testing.T) {
	plan, err := NewEngine().Plan(0, 0, Prices{})
	require.NoError(t, err)
	for _, l := range plan.Legs {
		assert.Zero(t, l.SelfBase+l.SelfQuote+l.BorrowBase+l.BorrowQuote)
		assert.True(t, l.MaxValue.IsZero())
	}
}

func TestPlanSmallAmountsGoToRemainder(t *testing.T) {
	plan, err := NewEngine().Plan(3, 3, goldenPrices())
	require.NoError(t, err)
	assert.Zero(t, plan.Legs[0].SelfBase)
	assert.Equal(t, uint64(3), plan.Legs[1].SelfBase)
	assert.Equal(t, uint64(3), plan.Legs[1].SelfQuote)
}

func TestPlanOverflow(t *testing.T) {
	tiny, err := FromScaled(1, -18)
	require.NoError(t, err)
	_, err = NewEngine().Plan(0, 4_000_000_000_000, Prices{Base: tiny, Quote: FromU64(1)})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMathOverflow))
}

func TestPlanZeroBorrowPrice(t *testing.T) {
	_, err := NewEngine().Plan(1_000_000_000, 0, Prices{Base: FromU64(100)})
	assert.True(t, apperrors.Is(err, apperrors.ErrMathOverflow))
}

func TestWithLegsValidation(t *testing.T) {
	_, err := NewEngine().withLegs(nil)
	assert.Error(t, err)
	_, err = NewEngine().withLegs([]LegSpec{{Index: 0}, {Index: 1, ShareDivisor: 2}})
	assert.Error(t, err)

	e, err := NewEngine().withLegs([]LegSpec{
		{Index: 0, ShareDivisor: 2, Borrow: SideQuote},
		{Index: 1, Borrow: SideBase},
	})
	require.NoError(t, err)
	plan, err := e.Plan(10, 10, goldenPrices())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), plan.Legs[0].SelfBase)
	assert.Len(t, plan.View(), 2)
}

func TestDecimalChecked(t *testing.T) {
	huge, err := FromScaled(math.MaxUint64, 18)
	require.NoError(t, err)
	step, err := huge.TryMulU64(math.MaxUint64)
	require.NoError(t, err)
	_, err = step.TryMulU64(math.MaxUint64)
	assert.True(t, apperrors.Is(err, apperrors.ErrMathOverflow))

	_, err = FromU64(1).TryDivU64(0)
	assert.True(t, apperrors.Is(err, apperrors.ErrMathOverflow))
	_, err = FromU64(1).TryDiv(Zero())
	assert.True(t, apperrors.Is(err, apperrors.ErrMathOverflow))
	_, err = huge.TryFloorU64()
	assert.True(t, apperrors.Is(err, apperrors.ErrMathOverflow))

	_, err = FromScaled(1, 19)
	assert.Error(t, err)

	half, err := FromScaled(5, -1)
	require.NoError(t, err)
	floor, err := half.TryFloorU64()
	require.NoError(t, err)
	assert.Zero(t, floor)
	assert.Equal(t, "0.5", half.String())
	assert.Equal(t, 1, FromU64(1).Cmp(half))
}
