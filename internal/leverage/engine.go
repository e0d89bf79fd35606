package leverage

import (
	"fmt"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
)

// Side selects which asset a leg borrows.
type Side uint8

const (
	SideBase Side = iota
	SideQuote
)

func (s Side) String() string {
	if s == SideBase {
		return "base"
	}
	return "quote"
}

// TargetLeverage is the multiplier applied to a leg's self-funded value.
const TargetLeverage = 2

// Asset decimal scales are fixed rather than read from mint metadata.
// Mints with other decimals are sized incorrectly.
const (
	BaseScale  uint64 = 1_000_000_000
	QuoteScale uint64 = 1_000_000
)

// LegSpec describes how one leg takes its share of a deposit.
// ShareDivisor 0 means the leg receives whatever the other legs left.
type LegSpec struct {
	Index        uint8
	ShareDivisor uint64
	Borrow       Side
}

// DefaultLegs: leg 0 takes a quarter of each side and borrows quote,
// leg 1 takes the remainder and borrows base.
var DefaultLegs = []LegSpec{
	{Index: 0, ShareDivisor: 4, Borrow: SideQuote},
	{Index: 1, ShareDivisor: 0, Borrow: SideBase},
}

// Prices are oracle prices of one whole unit of each asset.
type Prices struct {
	Base  Decimal
	Quote Decimal
}

// Leg is the sized funding of one external obligation.
type Leg struct {
	Index       uint8
	SelfBase    uint64
	SelfQuote   uint64
	BorrowBase  uint64
	BorrowQuote uint64
	// MaxValue is the leveraged value the borrow targets.
	MaxValue Decimal
}

type Plan struct {
	Legs []Leg
}

// SelfFunded sums the depositor-funded amounts across legs.
func (p *Plan) SelfFunded() (base, quote uint64) {
	for _, l := range p.Legs {
		base += l.SelfBase
		quote += l.SelfQuote
	}
	return base, quote
}

// View converts the plan for API responses.
func (p *Plan) View() []model.LegPlan {
	out := make([]model.LegPlan, 0, len(p.Legs))
	for _, l := range p.Legs {
		out = append(out, model.LegPlan{
			Index:       l.Index,
			SelfBase:    l.SelfBase,
			SelfQuote:   l.SelfQuote,
			BorrowBase:  l.BorrowBase,
			BorrowQuote: l.BorrowQuote,
			Value:       l.MaxValue.String(),
		})
	}
	return out
}

type Engine struct {
	legs       []LegSpec
	leverage   uint64
	baseScale  uint64
	quoteScale uint64
}

func NewEngine() *Engine {
	return &Engine{
		legs:       DefaultLegs,
		leverage:   TargetLeverage,
		baseScale:  BaseScale,
		quoteScale: QuoteScale,
	}
}

// withLegs replaces the leg layout. Exactly one leg must take the remainder, and it must be last.
func (e *Engine) withLegs(legs []LegSpec) (*Engine, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("at least one leg is required")
	}
	for i, l := range legs {
		last := i == len(legs)-1
		if (l.ShareDivisor == 0) != last {
			return nil, fmt.Errorf("leg %d: only the last leg takes the remainder", l.Index)
		}
	}
	out := *e
	out.legs = legs
	return &out, nil
}

// Plan splits a deposit into legs and sizes each leg's borrow.
func (e *Engine) Plan(base, quote uint64, prices Prices) (*Plan, error) {
	plan := &Plan{Legs: make([]Leg, 0, len(e.legs))}
	restBase, restQuote := base, quote

	for _, spec := range e.legs {
		selfBase, selfQuote := restBase, restQuote
		if spec.ShareDivisor > 0 {
			selfBase = share(base, spec.ShareDivisor)
			selfQuote = share(quote, spec.ShareDivisor)
			if selfBase > restBase || selfQuote > restQuote {
				return nil, apperrors.MathOverflow()
			}
		}
		restBase -= selfBase
		restQuote -= selfQuote

		leg, err := e.size(spec, selfBase, selfQuote, prices)
		if err != nil {
			return nil, fmt.Errorf("size leg %d: %w", spec.Index, err)
		}
		plan.Legs = append(plan.Legs, leg)
	}

	if b, q := plan.SelfFunded(); b != base || q != quote {
		return nil, fmt.Errorf("leg split lost funds: %d/%d of %d/%d", b, q, base, quote)
	}
	return plan, nil
}

func share(amount, divisor uint64) uint64 {
	if amount == 0 {
		return 0
	}
	return amount / divisor
}

func (e *Engine) size(spec LegSpec, selfBase, selfQuote uint64, prices Prices) (Leg, error) {
	leg := Leg{Index: spec.Index, SelfBase: selfBase, SelfQuote: selfQuote}

	baseValue, err := value(prices.Base, selfBase, e.baseScale)
	if err != nil {
		return leg, err
	}
	quoteValue, err := value(prices.Quote, selfQuote, e.quoteScale)
	if err != nil {
		return leg, err
	}
	total, err := baseValue.TryAdd(quoteValue)
	if err != nil {
		return leg, err
	}
	if leg.MaxValue, err = total.TryMulU64(e.leverage); err != nil {
		return leg, err
	}
	if leg.MaxValue.IsZero() {
		return leg, nil
	}

	switch spec.Borrow {
	case SideQuote:
		leg.BorrowQuote, err = borrowAmount(leg.MaxValue, prices.Quote, e.quoteScale)
	case SideBase:
		leg.BorrowBase, err = borrowAmount(leg.MaxValue, prices.Base, e.baseScale)
	}
	return leg, err
}

// value is price * amount / scale, or zero without touching the price when amount is zero.
func value(price Decimal, amount, scale uint64) (Decimal, error) {
	if amount == 0 {
		return Zero(), nil
	}
	v, err := price.TryMulU64(amount)
	if err != nil {
		return Decimal{}, err
	}
	return v.TryDivU64(scale)
}

// borrowAmount is floor(maxValue / price * scale).
func borrowAmount(maxValue, price Decimal, scale uint64) (uint64, error) {
	units, err := maxValue.TryDiv(price)
	if err != nil {
		return 0, err
	}
	scaled, err := units.TryMulU64(scale)
	if err != nil {
		return 0, err
	}
	return scaled.TryFloorU64()
}
