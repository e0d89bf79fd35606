package oracle

import (
	"context"
	"fmt"

	"github.com/cetra-finance/chamber/internal/leverage"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/gagliardetto/solana-go"
)

// AccountReader reads raw account data and the current ledger slot.
type AccountReader interface {
	Account(ctx context.Context, key solana.PublicKey) ([]byte, error)
	Slot(ctx context.Context) (uint64, error)
}

type Reader struct {
	src           AccountReader
	maxStaleSlots uint64
}

// NewReader returns a reader rejecting prices older than maxStaleSlots. Zero disables the check.
func NewReader(src AccountReader, maxStaleSlots uint64) *Reader {
	return &Reader{src: src, maxStaleSlots: maxStaleSlots}
}

// Validate checks the account is a live, positive price feed.
func (a *PriceAccount) Validate() error {
	if a.Magic != Magic {
		return apperrors.NewInvalidRequest(fmt.Sprintf("not a price account: magic %#x", a.Magic))
	}
	if a.PriceType != PriceTypePrice {
		return apperrors.NewInvalidRequest(fmt.Sprintf("unexpected price type %d", a.PriceType))
	}
	if a.Agg.Status != StatusTrading {
		return apperrors.New(apperrors.ErrStaleOracle, fmt.Sprintf("price status %d is not trading", a.Agg.Status), nil)
	}
	if a.Agg.Price <= 0 {
		return apperrors.NewInvalidRequest(fmt.Sprintf("non-positive price %d", a.Agg.Price))
	}
	return nil
}

// Price converts the aggregate price to fixed point.
func (a *PriceAccount) Price() (leverage.Decimal, error) {
	if a.Agg.Price <= 0 {
		return leverage.Decimal{}, apperrors.NewInvalidRequest(fmt.Sprintf("non-positive price %d", a.Agg.Price))
	}
	return leverage.FromScaled(uint64(a.Agg.Price), a.Expo)
}

func (r *Reader) Price(ctx context.Context, key solana.PublicKey) (leverage.Decimal, error) {
	data, err := r.src.Account(ctx, key)
	if err != nil {
		return leverage.Decimal{}, apperrors.New(apperrors.ErrUpstream, fmt.Sprintf("read oracle %s", key), err)
	}
	acc, err := Decode(data)
	if err != nil {
		return leverage.Decimal{}, apperrors.New(apperrors.ErrInvalidRequest, fmt.Sprintf("oracle %s", key), err)
	}
	if err := acc.Validate(); err != nil {
		return leverage.Decimal{}, err
	}
	if r.maxStaleSlots > 0 {
		slot, err := r.src.Slot(ctx)
		if err != nil {
			return leverage.Decimal{}, apperrors.New(apperrors.ErrUpstream, "read slot", err)
		}
		if slot > acc.ValidSlot && slot-acc.ValidSlot > r.maxStaleSlots {
			return leverage.Decimal{}, apperrors.New(apperrors.ErrStaleOracle,
				fmt.Sprintf("oracle %s valid at slot %d, ledger at %d", key, acc.ValidSlot, slot), nil)
		}
	}
	return acc.Price()
}

// Prices reads both sides of a farm.
func (r *Reader) Prices(ctx context.Context, base, quote solana.PublicKey) (leverage.Prices, error) {
	bp, err := r.Price(ctx, base)
	if err != nil {
		return leverage.Prices{}, err
	}
	qp, err := r.Price(ctx, quote)
	if err != nil {
		return leverage.Prices{}, err
	}
	return leverage.Prices{Base: bp, Quote: qp}, nil
}
