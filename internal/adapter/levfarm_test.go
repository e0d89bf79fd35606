package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cetra-finance/chamber/internal/ledger"
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/cetra-finance/chamber/internal/signer"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUnit struct {
	calls []ledger.Call
	err   error
}

func (u *recordingUnit) ID() string                   { return "test" }
func (u *recordingUnit) Calls() []ledger.Call         { return u.calls }
func (u *recordingUnit) Commit(context.Context) error { return nil }
func (u *recordingUnit) Abort()                       {}

func (u *recordingUnit) Invoke(_ context.Context, call ledger.Call) error {
	if u.err != nil {
		return u.err
	}
	u.calls = append(u.calls, call)
	return nil
}

func key() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

// testScope returns a scope for a fresh chamber and the program its authority is derived under.
func testScope(t *testing.T) (*Scope, solana.PublicKey) {
	t.Helper()
	program := key()
	d := signer.NewDeriver(program)

	farm := &model.Farm{
		LeveragedFarm: key(),
		BaseMint:      key(),
		QuoteMint:     key(),
		LPMint:        key(),
		RewardMint:    key(),
	}
	farm.Lending.LevfarmProgram = key()
	farm.Lending.FarmBaseAccount = key()
	farm.Lending.FarmQuoteAccount = key()
	farm.Lending.BaseReserveSupply = key()
	farm.Lending.QuoteReserveSupply = key()
	farm.AMM.ID = key()
	farm.Vault.Program = key()
	farm.Vault.Info = key()
	farm.Vault.PoolLPAccount = key()

	address, bump, err := d.Chamber(farm.LeveragedFarm)
	require.NoError(t, err)
	authority, authorityBump, err := d.Authority(address)
	require.NoError(t, err)
	baseATA, err := signer.HoldingAccount(authority, farm.BaseMint)
	require.NoError(t, err)
	quoteATA, err := signer.HoldingAccount(authority, farm.QuoteMint)
	require.NoError(t, err)

	c := &model.Chamber{}
	require.NoError(t, c.Init(model.ChamberSeeds{
		Address:       address,
		LeveragedFarm: farm.LeveragedFarm,
		Authority:     authority,
		BaseATA:       baseATA,
		QuoteATA:      quoteATA,
		BaseMint:      farm.BaseMint,
		QuoteMint:     farm.QuoteMint,
		Bump:          bump,
		AuthorityBump: authorityBump,
	}, time.Now()))

	accounts, err := d.Accounts(c, farm)
	require.NoError(t, err)
	return &Scope{Chamber: c, Farm: farm, Accounts: accounts, Payer: key()}, program
}

func roles(call ledger.Call) map[string]ledger.AccountMeta {
	out := make(map[string]ledger.AccountMeta, len(call.Accounts))
	for _, a := range call.Accounts {
		out[a.Role] = a
	}
	return out
}

func TestStrategyRentBudget(t *testing.T) {
	assert.Equal(t, uint64(50_877_600), StrategyRentBudget)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Supports(model.ProtocolTulip))
	assert.False(t, r.Supports(model.ProtocolFrancium))

	_, err := r.For(model.ProtocolFrancium)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnsupportedProtocol))

	r.Register(model.ProtocolFrancium, NewLevfarm())
	s, err := r.For(model.ProtocolFrancium)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestAuthorityCallsCarrySeeds(t *testing.T) {
	s, program := testScope(t)
	l := NewLevfarm()
	u := &recordingUnit{}
	ctx := context.Background()

	require.NoError(t, l.CreateFarm(ctx, u, s))
	require.NoError(t, l.CreateObligation(ctx, u, s, 1))
	require.NoError(t, l.DepositBorrow(ctx, u, s, 1, DepositBorrow{CoinAmount: 10, PcBorrowAmount: 7}))
	require.NoError(t, l.Swap(ctx, u, s, 0))
	require.NoError(t, l.AddLiquidity(ctx, u, s, 0))
	require.NoError(t, l.VaultDeposit(ctx, u, s, 1, 254, 253))
	require.Len(t, u.calls, 6)

	for _, call := range u.calls {
		derived, err := solana.CreateProgramAddress(call.SignerSeeds, program)
		require.NoError(t, err, call.Name)
		assert.Equal(t, s.Chamber.Authority, derived, call.Name)

		auth, ok := roles(call)[ledger.RoleAuthority]
		require.True(t, ok, call.Name)
		assert.True(t, auth.Signer, call.Name)
		assert.Equal(t, s.Chamber.Authority, auth.Key)
		require.NotNil(t, call.Leg, call.Name)
	}
}

func TestCallsBindLegAccounts(t *testing.T) {
	s, _ := testScope(t)
	l := NewLevfarm()
	u := &recordingUnit{}
	ctx := context.Background()
	leg := s.Accounts.Legs[1]

	require.NoError(t, l.DepositBorrow(ctx, u, s, 1, DepositBorrow{CoinAmount: 10, PcAmount: 2, CoinBorrowAmount: 30}))
	call := u.calls[0]
	assert.Equal(t, ledger.ServiceLending, call.Service)
	assert.Equal(t, s.Farm.Lending.LevfarmProgram, call.Program)
	assert.Equal(t, ledger.DepositBorrowArgs{
		CoinAmount:       10,
		PcAmount:         2,
		CoinBorrowAmount: 30,
		ObligationIndex:  1,
	}, call.Args)

	m := roles(call)
	assert.Equal(t, leg.Obligation, m[ledger.RoleObligation].Key)
	assert.True(t, m[ledger.RoleObligation].Writable)
	assert.Equal(t, s.Chamber.BaseATA, m[ledger.RoleCoinSource].Key)
	assert.Equal(t, s.Chamber.QuoteATA, m[ledger.RolePcSource].Key)
	assert.Equal(t, s.Farm.Lending.BaseReserveSupply, m[ledger.RoleCoinReserveSupply].Key)
	assert.Equal(t, leg.PositionInfo, m["position_info"].Key)

	require.NoError(t, l.Swap(ctx, u, s, 1))
	m = roles(u.calls[1])
	assert.Equal(t, s.Farm.AMM.ID, m[ledger.RoleAMM].Key)
	assert.Equal(t, leg.Obligation, m[ledger.RoleObligation].Key)

	require.NoError(t, l.VaultDeposit(ctx, u, s, 1, leg.VaultBalanceBump, leg.VaultMetaBump))
	call = u.calls[2]
	assert.Equal(t, ledger.ServiceVault, call.Service)
	assert.Equal(t, s.Farm.Vault.Program, call.Program)
	m = roles(call)
	assert.Equal(t, leg.VaultBalance, m[ledger.RoleVaultBalance].Key)
	assert.Equal(t, leg.VaultMeta, m[ledger.RoleVaultBalanceMeta].Key)
	assert.Equal(t, leg.LPAccount, m[ledger.RoleLPAccount].Key)
	assert.Equal(t, s.Farm.Vault.PoolLPAccount, m[ledger.RolePoolLPAccount].Key)
}

func TestPayerCallsHaveNoSeeds(t *testing.T) {
	s, _ := testScope(t)
	l := NewLevfarm()
	u := &recordingUnit{}
	ctx := context.Background()

	require.NoError(t, l.TransferNative(ctx, u, s.Payer, s.Chamber.Authority, StrategyRentBudget))
	account, err := l.CreateHoldingAccount(ctx, u, s.Payer, s.Chamber.Authority, s.Farm.BaseMint, nil)
	require.NoError(t, err)
	assert.Equal(t, s.Chamber.BaseATA, account)

	for _, call := range u.calls {
		assert.Empty(t, call.SignerSeeds, call.Name)
		assert.Nil(t, call.Leg, call.Name)
	}
	m := roles(u.calls[0])
	assert.True(t, m[ledger.RoleFrom].Signer)
	assert.Equal(t, s.Chamber.Authority, m[ledger.RoleTo].Key)
	assert.Equal(t, ledger.TransferNativeArgs{Lamports: StrategyRentBudget}, u.calls[0].Args)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, u.calls[1].Program)
}

func TestCreateObligationRejectsLegZero(t *testing.T) {
	s, _ := testScope(t)
	u := &recordingUnit{}
	err := NewLevfarm().CreateObligation(context.Background(), u, s, 0)
	assert.Error(t, err)
	assert.Empty(t, u.calls)

	err = NewLevfarm().Swap(context.Background(), u, s, model.LegCount)
	assert.ErrorContains(t, err, "out of range")
}

func TestInvokeErrorNamesCallAndLeg(t *testing.T) {
	s, _ := testScope(t)
	cause := errors.New("pool paused")
	u := &recordingUnit{err: cause}

	err := NewLevfarm().AddLiquidity(context.Background(), u, s, 1)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "add_liquidity leg 1: pool paused")
}
