package model

import (
	"math"
	"testing"

	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPosition(t *testing.T) *UserPosition {
	t.Helper()
	p := &UserPosition{}
	p.Init(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), 254)
	return p
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	p := newPosition(t)
	require.NoError(t, p.DepositBase(1_000))
	require.NoError(t, p.DepositQuote(500))

	require.NoError(t, p.DepositBase(2_500_000_000))
	require.NoError(t, p.WithdrawBase(2_500_000_000))
	assert.Equal(t, uint64(1_000), p.BaseAmount)

	require.NoError(t, p.DepositQuote(42))
	require.NoError(t, p.WithdrawQuote(42))
	assert.Equal(t, uint64(500), p.QuoteAmount)
}

func TestWithdrawBeyondBalance(t *testing.T) {
	p := newPosition(t)
	require.NoError(t, p.DepositBase(10))
	require.NoError(t, p.DepositQuote(20))

	err := p.WithdrawBase(11)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientUserPositionFunds))
	assert.Equal(t, uint64(10), p.BaseAmount)

	err = p.WithdrawQuote(21)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientUserPositionFunds))
	assert.Equal(t, uint64(20), p.QuoteAmount)
}

func TestDepositOverflow(t *testing.T) {
	p := newPosition(t)
	require.NoError(t, p.DepositBase(math.MaxUint64))
	err := p.DepositBase(1)
	assert.True(t, apperrors.Is(err, apperrors.ErrMathOverflow))
	assert.Equal(t, uint64(math.MaxUint64), p.BaseAmount)
}

func TestApplyIsAllOrNothing(t *testing.T) {
	p := newPosition(t)
	require.NoError(t, p.Apply(100, 100, 0, 0))

	err := p.Apply(5, 5, 50, 200)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientUserPositionFunds))
	assert.Equal(t, uint64(100), p.BaseAmount)
	assert.Equal(t, uint64(100), p.QuoteAmount)

	require.NoError(t, p.Apply(0, 0, 40, 60))
	assert.True(t, p.Covers(60, 40))
	assert.False(t, p.Covers(61, 0))
}
