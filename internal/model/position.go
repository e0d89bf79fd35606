package model

import (
	"math/bits"

	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/gagliardetto/solana-go"
)

// UserPosition is one depositor's not-yet-deployed balance inside a chamber.
type UserPosition struct {
	Address     solana.PublicKey `json:"address"`
	Owner       solana.PublicKey `json:"owner"`
	Chamber     solana.PublicKey `json:"chamber"`
	BaseAmount  uint64           `json:"base_amount"`
	QuoteAmount uint64           `json:"quote_amount"`
	Bump        uint8            `json:"bump"`
}

func (p *UserPosition) Init(address, owner, chamber solana.PublicKey, bump uint8) {
	p.Address = address
	p.Owner = owner
	p.Chamber = chamber
	p.BaseAmount = 0
	p.QuoteAmount = 0
	p.Bump = bump
}

func (p *UserPosition) DepositBase(amount uint64) error {
	v, err := checkedAdd(p.BaseAmount, amount)
	if err != nil {
		return err
	}
	p.BaseAmount = v
	return nil
}

func (p *UserPosition) WithdrawBase(amount uint64) error {
	v, err := checkedSub(p.BaseAmount, amount)
	if err != nil {
		return err
	}
	p.BaseAmount = v
	return nil
}

func (p *UserPosition) DepositQuote(amount uint64) error {
	v, err := checkedAdd(p.QuoteAmount, amount)
	if err != nil {
		return err
	}
	p.QuoteAmount = v
	return nil
}

func (p *UserPosition) WithdrawQuote(amount uint64) error {
	v, err := checkedSub(p.QuoteAmount, amount)
	if err != nil {
		return err
	}
	p.QuoteAmount = v
	return nil
}

// Covers reports whether both balances are at least the requested amounts.
func (p *UserPosition) Covers(base, quote uint64) bool {
	return base <= p.BaseAmount && quote <= p.QuoteAmount
}

// Apply credits then debits both sides. On error the position is unchanged.
func (p *UserPosition) Apply(creditBase, creditQuote, debitBase, debitQuote uint64) error {
	next := *p
	if err := next.DepositBase(creditBase); err != nil {
		return err
	}
	if err := next.DepositQuote(creditQuote); err != nil {
		return err
	}
	if err := next.WithdrawBase(debitBase); err != nil {
		return err
	}
	if err := next.WithdrawQuote(debitQuote); err != nil {
		return err
	}
	*p = next
	return nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, apperrors.MathOverflow()
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, apperrors.InsufficientUserPositionFunds()
	}
	return a - b, nil
}
