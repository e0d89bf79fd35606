package service

import (
	"context"
	"sync"
	"testing"

	"github.com/cetra-finance/chamber/internal/config"
	"github.com/cetra-finance/chamber/internal/ledger"
	"github.com/cetra-finance/chamber/internal/manager"
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/oracle"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/cetra-finance/chamber/internal/signer"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	depositBase  uint64 = 2_500_000_000
	depositQuote uint64 = 100_000_000
)

type recorder struct {
	mu     sync.Mutex
	units  []*model.UnitRecord
	events []model.Event
}

func (r *recorder) Record(rec *model.UnitRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = append(r.units, rec)
}

func (r *recorder) Publish(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) unitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.units)
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	mem     *ledger.Memory
	svc     *ChamberService
	store   *MemoryChamberStore
	locks   *manager.ChamberLocks
	rec     *recorder
	deriver *signer.Deriver
	farm    *model.Farm
	payer   solana.PublicKey
	owner   solana.PublicKey
}

func testFarmConfig() config.FarmConfig {
	accounts := make(map[string]string)
	for _, key := range FarmAccountKeys() {
		accounts[key] = solana.NewWallet().PublicKey().String()
	}
	return config.FarmConfig{
		Name:          "RAY-USDC",
		LeveragedFarm: solana.NewWallet().PublicKey().String(),
		Accounts:      accounts,
	}
}

func setOracle(t *testing.T, mem *ledger.Memory, key solana.PublicKey, price int64, slot uint64) {
	t.Helper()
	data, err := oracle.Encode(oracle.NewPriceAccount(price, -8, slot))
	require.NoError(t, err)
	mem.SetAccountData(key, data)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	program := solana.NewWallet().PublicKey()
	mem := ledger.NewMemory(program)
	registry, err := NewFarmRegistry([]config.FarmConfig{testFarmConfig()})
	require.NoError(t, err)
	farm := registry.List()[0]

	h := &harness{
		t:       t,
		ctx:     context.Background(),
		mem:     mem,
		store:   NewMemoryChamberStore(),
		locks:   manager.NewChamberLocks(),
		rec:     &recorder{},
		deriver: signer.NewDeriver(program),
		farm:    farm,
		payer:   solana.NewWallet().PublicKey(),
		owner:   solana.NewWallet().PublicKey(),
	}
	mem.Airdrop(h.payer, 1_000_000_000_000)

	ownerBase, err := signer.HoldingAccount(h.owner, farm.BaseMint)
	require.NoError(t, err)
	ownerQuote, err := signer.HoldingAccount(h.owner, farm.QuoteMint)
	require.NoError(t, err)
	mem.MintTo(ownerBase, farm.BaseMint, h.owner, 10*depositBase)
	mem.MintTo(ownerQuote, farm.QuoteMint, h.owner, 10*depositQuote)

	market := farm.Lending.LendingMarketAuthority
	mem.MintTo(farm.Lending.BaseReserveSupply, farm.BaseMint, market, 1_000_000_000_000_000)
	mem.MintTo(farm.Lending.QuoteReserveSupply, farm.QuoteMint, market, 1_000_000_000_000_000)
	mem.SeedPool(farm.AMM.ID, ledger.Pool{
		CoinMint:    farm.BaseMint,
		PcMint:      farm.QuoteMint,
		LPMint:      farm.LPMint,
		CoinReserve: 1_000_000_000_000,
		PcReserve:   100_000_000_000,
		LPSupply:    1_000_000_000_000,
	})
	// Base trades at 100, quote at 1.
	setOracle(t, mem, farm.Lending.BaseOracle, 10_000_000_000, 1)
	setOracle(t, mem, farm.Lending.QuoteOracle, 100_000_000, 1)

	h.svc, err = NewChamberService(Deps{
		Deriver:  h.deriver,
		Farms:    registry,
		Executor: mem,
		Prices:   oracle.NewReader(mem, 240),
		Store:    h.store,
		Locks:    h.locks,
		Payer:    h.payer,
		Audit:    h.rec,
		Events:   h.rec,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) chamber() *model.Chamber {
	h.t.Helper()
	address, _, err := h.deriver.Chamber(h.farm.LeveragedFarm)
	require.NoError(h.t, err)
	c, err := h.store.GetChamber(h.ctx, address)
	require.NoError(h.t, err)
	return c
}

func (h *harness) accounts() *signer.ChamberAccounts {
	h.t.Helper()
	accounts, err := h.deriver.Accounts(h.chamber(), h.farm)
	require.NoError(h.t, err)
	return accounts
}

func (h *harness) initChamber() solana.PublicKey {
	h.t.Helper()
	res, err := h.svc.InitializeChamber(h.ctx, h.farm.LeveragedFarm, model.ProtocolTulip)
	require.NoError(h.t, err)
	return solana.MustPublicKeyFromBase58(res.Chamber)
}

// advance drives a fresh chamber up to stage.
func (h *harness) advance(stage model.Stage) solana.PublicKey {
	h.t.Helper()
	chamber := h.initChamber()
	steps := []struct {
		reach model.Stage
		run   func() error
	}{
		{model.StageStrategyInitialized, func() error {
			_, err := h.svc.InitializeChamberStrategy(h.ctx, chamber)
			return err
		}},
		{model.StageFunded, func() error {
			if _, err := h.svc.InitializeUserPosition(h.ctx, chamber, h.owner, depositBase, depositQuote); err != nil {
				return err
			}
			_, err := h.svc.DepositChamber(h.ctx, chamber, h.owner, depositBase, depositQuote)
			return err
		}},
		{model.StageSettled, func() error {
			_, err := h.svc.SettleChamberPosition(h.ctx, chamber)
			return err
		}},
		{model.StageStaked, func() error {
			legs := h.accounts().Legs
			_, err := h.svc.SettleChamberPosition2(h.ctx, chamber,
				[model.LegCount]uint8{legs[0].VaultBalanceBump, legs[1].VaultBalanceBump},
				[model.LegCount]uint8{legs[0].VaultMetaBump, legs[1].VaultMetaBump})
			return err
		}},
	}
	for _, s := range steps {
		if s.reach > stage {
			break
		}
		require.NoError(h.t, s.run(), "reaching %s", s.reach)
	}
	return chamber
}

func errType(err error) apperrors.ErrorType {
	if err == nil {
		return ""
	}
	return apperrors.TypeOf(err)
}

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := h.ctx

	chamber := h.initChamber()
	c := h.chamber()
	assert.Equal(t, model.StageChamberInitialized, c.Stage)
	assert.Equal(t, model.OpInitializeChamberStrategy, c.NextStep())
	baseATA, ok := h.mem.TokenAccount(c.BaseATA)
	require.True(t, ok)
	assert.Equal(t, c.Authority, baseATA.Owner)
	assert.Equal(t, h.farm.BaseMint, baseATA.Mint)

	_, err := h.svc.InitializeChamberStrategy(ctx, chamber)
	require.NoError(t, err)
	accounts := h.accounts()
	_, ok = h.mem.Farm(accounts.Farm)
	assert.True(t, ok)
	for _, leg := range accounts.Legs {
		o, ok := h.mem.Obligation(leg.Obligation)
		require.True(t, ok, "obligation %d", leg.Index)
		assert.Equal(t, leg.Index, o.Index)
	}

	_, err = h.svc.InitializeUserPosition(ctx, chamber, h.owner, depositBase, depositQuote)
	require.NoError(t, err)
	pos, err := h.svc.GetPosition(ctx, chamber, h.owner)
	require.NoError(t, err)
	assert.Equal(t, depositBase, pos.BaseAmount)
	assert.Equal(t, depositQuote, pos.QuoteAmount)

	res, err := h.svc.DepositChamber(ctx, chamber, h.owner, depositBase, depositQuote)
	require.NoError(t, err)
	require.Len(t, res.Legs, 2)
	assert.Equal(t, uint64(625_000_000), res.Legs[0].SelfBase)
	assert.Equal(t, uint64(25_000_000), res.Legs[0].SelfQuote)
	assert.Equal(t, uint64(175_000_000), res.Legs[0].BorrowQuote)
	assert.Equal(t, uint64(0), res.Legs[0].BorrowBase)
	assert.Equal(t, uint64(1_875_000_000), res.Legs[1].SelfBase)
	assert.Equal(t, uint64(75_000_000), res.Legs[1].SelfQuote)
	assert.Equal(t, uint64(5_250_000_000), res.Legs[1].BorrowBase)
	assert.Equal(t, uint64(0), res.Legs[1].BorrowQuote)
	assert.Equal(t, model.StageFunded, res.Stage)

	pos, err = h.svc.GetPosition(ctx, chamber, h.owner)
	require.NoError(t, err)
	assert.Zero(t, pos.BaseAmount)
	assert.Zero(t, pos.QuoteAmount)

	_, err = h.svc.SettleChamberPosition(ctx, chamber)
	require.NoError(t, err)
	for _, leg := range accounts.Legs {
		lp, ok := h.mem.TokenAccount(leg.LPAccount)
		require.True(t, ok)
		assert.NotZero(t, lp.Amount, "leg %d lp", leg.Index)
	}

	res, err = h.svc.SettleChamberPosition2(ctx, chamber,
		[model.LegCount]uint8{accounts.Legs[0].VaultBalanceBump, accounts.Legs[1].VaultBalanceBump},
		[model.LegCount]uint8{accounts.Legs[0].VaultMetaBump, accounts.Legs[1].VaultMetaBump})
	require.NoError(t, err)
	assert.Equal(t, model.StageStaked, res.Stage)
	assert.Empty(t, res.NextStep)

	for _, leg := range accounts.Legs {
		o, ok := h.mem.Obligation(leg.Obligation)
		require.True(t, ok)
		assert.NotZero(t, o.LPAmount, "leg %d obligation", leg.Index)
		assert.NotZero(t, o.Staked, "leg %d obligation", leg.Index)
		vb, ok := h.mem.VaultBalance(leg.VaultBalance)
		require.True(t, ok)
		assert.NotZero(t, vb.Shares, "leg %d vault balance", leg.Index)
		meta, ok := h.mem.VaultMeta(leg.VaultMeta)
		require.True(t, ok)
		assert.Equal(t, leg.VaultBalance, meta)
	}

	c = h.chamber()
	assert.Nil(t, c.Pending)
	for _, leg := range c.Legs {
		assert.Equal(t, model.StageStaked, leg.Stage)
	}
	assert.Equal(t, 6, h.rec.unitCount())
}

func TestSettleCallOrder(t *testing.T) {
	h := newHarness(t)
	h.advance(model.StageFunded)
	before := len(h.mem.CommittedCalls())

	_, err := h.svc.SettleChamberPosition(h.ctx, h.chamber().Address)
	require.NoError(t, err)

	calls := h.mem.CommittedCalls()[before:]
	require.Len(t, calls, 4)
	want := []struct {
		name string
		leg  uint8
	}{{ledger.CallSwap, 0}, {ledger.CallSwap, 1}, {ledger.CallAddLiquidity, 0}, {ledger.CallAddLiquidity, 1}}
	for i, w := range want {
		assert.Equal(t, w.name, calls[i].Name)
		require.NotNil(t, calls[i].Leg)
		assert.Equal(t, w.leg, *calls[i].Leg)
	}
}

func TestUnsupportedProtocolMakesNoCalls(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.InitializeChamber(h.ctx, h.farm.LeveragedFarm, model.ProtocolFrancium)
	assert.Equal(t, apperrors.ErrUnsupportedProtocol, errType(err))
	assert.Equal(t, 6000, apperrors.Wrap(err).Code)
	assert.Empty(t, h.mem.CommittedCalls())
	assert.Zero(t, h.rec.unitCount())

	chamber := h.initChamber()
	c := h.chamber()
	c.ProtocolType = model.ProtocolFrancium
	require.NoError(t, h.store.SaveChamber(h.ctx, c))
	calls, units := len(h.mem.CommittedCalls()), h.rec.unitCount()

	_, err = h.svc.InitializeChamberStrategy(h.ctx, chamber)
	assert.Equal(t, apperrors.ErrUnsupportedProtocol, errType(err))
	assert.Len(t, h.mem.CommittedCalls(), calls)
	assert.Equal(t, units, h.rec.unitCount())
	assert.Equal(t, model.StageChamberInitialized, h.chamber().Stage)
}

func TestInitializeChamberTwice(t *testing.T) {
	h := newHarness(t)
	h.initChamber()
	_, err := h.svc.InitializeChamber(h.ctx, h.farm.LeveragedFarm, model.ProtocolTulip)
	assert.Equal(t, apperrors.ErrAlreadyExists, errType(err))
}

func TestUnknownFarm(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.InitializeChamber(h.ctx, solana.NewWallet().PublicKey(), model.ProtocolTulip)
	assert.Equal(t, apperrors.ErrNotFound, errType(err))

	_, err = h.svc.SettleChamberPosition(h.ctx, solana.NewWallet().PublicKey())
	assert.Equal(t, apperrors.ErrNotFound, errType(err))
}

func TestStagesOnlyMoveForward(t *testing.T) {
	h := newHarness(t)
	chamber := h.initChamber()

	_, err := h.svc.SettleChamberPosition(h.ctx, chamber)
	assert.Equal(t, apperrors.ErrInvalidTransition, errType(err))

	_, err = h.svc.InitializeChamberStrategy(h.ctx, chamber)
	require.NoError(t, err)
	_, err = h.svc.InitializeChamberStrategy(h.ctx, chamber)
	assert.Equal(t, apperrors.ErrInvalidTransition, errType(err))
	assert.Equal(t, model.StageStrategyInitialized, h.chamber().Stage)
}

func TestDepositRequiresPositionFunds(t *testing.T) {
	h := newHarness(t)
	chamber := h.advance(model.StageStrategyInitialized)

	_, err := h.svc.DepositChamber(h.ctx, chamber, h.owner, depositBase, depositQuote)
	assert.Equal(t, apperrors.ErrInsufficientUserPositionFunds, errType(err))

	_, err = h.svc.InitializeUserPosition(h.ctx, chamber, h.owner, depositBase, depositQuote)
	require.NoError(t, err)
	_, err = h.svc.DepositChamber(h.ctx, chamber, h.owner, depositBase+1, depositQuote)
	assert.Equal(t, apperrors.ErrInsufficientUserPositionFunds, errType(err))
	assert.Equal(t, model.StageStrategyInitialized, h.chamber().Stage)

	pos, err := h.svc.GetPosition(h.ctx, chamber, h.owner)
	require.NoError(t, err)
	assert.Equal(t, depositBase, pos.BaseAmount)
}

func TestPositionTopUpAndWithdraw(t *testing.T) {
	h := newHarness(t)
	chamber := h.initChamber()
	ownerBase, err := signer.HoldingAccount(h.owner, h.farm.BaseMint)
	require.NoError(t, err)

	_, err = h.svc.InitializeUserPosition(h.ctx, chamber, h.owner, 1_000, 0)
	require.NoError(t, err)
	_, err = h.svc.InitializeUserPosition(h.ctx, chamber, h.owner, 500, 20)
	require.NoError(t, err)

	pos, err := h.svc.GetPosition(h.ctx, chamber, h.owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500), pos.BaseAmount)
	assert.Equal(t, uint64(20), pos.QuoteAmount)

	_, err = h.svc.WithdrawUserPosition(h.ctx, chamber, h.owner, 1_501, 0)
	assert.Equal(t, apperrors.ErrInsufficientUserPositionFunds, errType(err))

	_, err = h.svc.WithdrawUserPosition(h.ctx, chamber, h.owner, 1_500, 0)
	require.NoError(t, err)
	pos, err = h.svc.GetPosition(h.ctx, chamber, h.owner)
	require.NoError(t, err)
	assert.Zero(t, pos.BaseAmount)
	assert.Equal(t, uint64(20), pos.QuoteAmount)

	ta, ok := h.mem.TokenAccount(ownerBase)
	require.True(t, ok)
	assert.Equal(t, 10*depositBase, ta.Amount)

	_, err = h.svc.WithdrawUserPosition(h.ctx, chamber, solana.NewWallet().PublicKey(), 1, 0)
	assert.Equal(t, apperrors.ErrNotFound, errType(err))
	_, err = h.svc.InitializeUserPosition(h.ctx, chamber, h.owner, 0, 0)
	assert.Equal(t, apperrors.ErrInvalidRequest, errType(err))
}

func TestAbortedUnitLeavesStageAndAllowsRetry(t *testing.T) {
	h := newHarness(t)
	chamber := h.advance(model.StageFunded)
	accounts := h.accounts()
	before, _ := h.mem.Obligation(accounts.Legs[0].Obligation)

	h.mem.FailNext(ledger.CallAddLiquidity, "pool paused")
	_, err := h.svc.SettleChamberPosition(h.ctx, chamber)
	assert.Equal(t, apperrors.ErrUpstream, errType(err))
	assert.True(t, Retryable(err))

	c := h.chamber()
	assert.Equal(t, model.StageFunded, c.Stage)
	assert.Nil(t, c.Pending)
	after, _ := h.mem.Obligation(accounts.Legs[0].Obligation)
	assert.Equal(t, before, after, "swaps in the aborted unit must not apply")
	var failed *model.Event
	for i := range h.rec.events {
		if h.rec.events[i].Type == EventFailed {
			failed = &h.rec.events[i]
		}
	}
	require.NotNil(t, failed)
	assert.True(t, failed.Retryable)

	_, err = h.svc.SettleChamberPosition(h.ctx, chamber)
	require.NoError(t, err)
	assert.Equal(t, model.StageSettled, h.chamber().Stage)
}

func TestLostCommitResponseIsReconciled(t *testing.T) {
	h := newHarness(t)
	chamber := h.initChamber()

	h.mem.LoseNextCommitResponse()
	_, err := h.svc.InitializeChamberStrategy(h.ctx, chamber)
	assert.Equal(t, apperrors.ErrOutcomeUnknown, errType(err))

	c := h.chamber()
	require.NotNil(t, c.Pending)
	assert.Equal(t, model.OpInitializeChamberStrategy, c.Pending.Op)
	assert.Equal(t, model.StageChamberInitialized, c.Stage)

	// The unit did commit: the next call records it and then refuses to repeat it.
	_, err = h.svc.InitializeChamberStrategy(h.ctx, chamber)
	assert.Equal(t, apperrors.ErrInvalidTransition, errType(err))
	c = h.chamber()
	assert.Nil(t, c.Pending)
	assert.Equal(t, model.StageStrategyInitialized, c.Stage)

	var reconciled bool
	for _, ev := range h.rec.events {
		if ev.Type == EventReconciled && ev.Op == model.OpInitializeChamberStrategy {
			reconciled = true
		}
	}
	assert.True(t, reconciled)
}

func TestLostPositionDepositCreditsOnce(t *testing.T) {
	h := newHarness(t)
	chamber := h.initChamber()

	h.mem.LoseNextCommitResponse()
	_, err := h.svc.InitializeUserPosition(h.ctx, chamber, h.owner, 1_000, 10)
	assert.Equal(t, apperrors.ErrOutcomeUnknown, errType(err))

	view, err := h.svc.GetChamber(h.ctx, chamber)
	require.NoError(t, err)
	require.NotNil(t, view.Pending)

	_, err = h.svc.InitializeUserPosition(h.ctx, chamber, h.owner, 1, 1)
	require.NoError(t, err)
	pos, err := h.svc.GetPosition(h.ctx, chamber, h.owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_001), pos.BaseAmount)
	assert.Equal(t, uint64(11), pos.QuoteAmount)
}

func TestDroppedCommitIsRetried(t *testing.T) {
	h := newHarness(t)
	chamber := h.initChamber()

	h.mem.DropNextCommit()
	_, err := h.svc.InitializeChamberStrategy(h.ctx, chamber)
	assert.Equal(t, apperrors.ErrOutcomeUnknown, errType(err))
	assert.True(t, Retryable(err))

	_, err = h.svc.InitializeChamberStrategy(h.ctx, chamber)
	require.NoError(t, err)
	assert.Equal(t, model.StageStrategyInitialized, h.chamber().Stage)
	_, ok := h.mem.Farm(h.accounts().Farm)
	assert.True(t, ok)
}

func TestInFlightUnitBlocksRetry(t *testing.T) {
	h := newHarness(t)
	chamber := h.advance(model.StageStrategyInitialized)
	_, err := h.svc.InitializeUserPosition(h.ctx, chamber, h.owner, depositBase, depositQuote)
	require.NoError(t, err)

	// A deposit whose unit reached the ledger but has not finished.
	inflight, err := h.mem.Begin(h.ctx, ledger.BeginOptions{ID: "inflight", Label: model.OpDepositChamber})
	require.NoError(t, err)
	c := h.chamber()
	c.Pending = &model.PendingStep{Op: model.OpDepositChamber, UnitID: "inflight", Target: model.StageFunded, Since: c.UpdatedAt}
	require.NoError(t, h.store.SaveChamber(h.ctx, c))

	calls, units := len(h.mem.CommittedCalls()), h.rec.unitCount()
	_, err = h.svc.DepositChamber(h.ctx, chamber, h.owner, depositBase, depositQuote)
	assert.Equal(t, apperrors.ErrOutcomeUnknown, errType(err))
	assert.True(t, Retryable(err))
	assert.Len(t, h.mem.CommittedCalls(), calls, "a retry must not submit a second deposit")
	assert.Equal(t, units, h.rec.unitCount())

	c = h.chamber()
	require.NotNil(t, c.Pending)
	assert.Equal(t, "inflight", c.Pending.UnitID)
	assert.Equal(t, model.StageStrategyInitialized, c.Stage)

	// Once the unit lands the next call records it and refuses to repeat it.
	require.NoError(t, inflight.Commit(h.ctx))
	_, err = h.svc.DepositChamber(h.ctx, chamber, h.owner, depositBase, depositQuote)
	assert.Equal(t, apperrors.ErrInvalidTransition, errType(err))
	c = h.chamber()
	assert.Nil(t, c.Pending)
	assert.Equal(t, model.StageFunded, c.Stage)
	assert.Len(t, h.mem.CommittedCalls(), calls)
}

func TestBusyChamber(t *testing.T) {
	h := newHarness(t)
	chamber := h.initChamber()

	unlock, err := h.locks.TryLock(h.ctx, chamber.String())
	require.NoError(t, err)
	_, err = h.svc.InitializeChamberStrategy(h.ctx, chamber)
	assert.Equal(t, apperrors.ErrChamberBusy, errType(err))
	assert.True(t, Retryable(err))
	unlock()

	_, err = h.svc.InitializeChamberStrategy(h.ctx, chamber)
	assert.NoError(t, err)
}

func TestStaleOracleBlocksDeposit(t *testing.T) {
	h := newHarness(t)
	chamber := h.advance(model.StageStrategyInitialized)
	_, err := h.svc.InitializeUserPosition(h.ctx, chamber, h.owner, depositBase, depositQuote)
	require.NoError(t, err)

	h.mem.SetSlot(10_000)
	units := h.rec.unitCount()
	_, err = h.svc.DepositChamber(h.ctx, chamber, h.owner, depositBase, depositQuote)
	assert.Equal(t, apperrors.ErrStaleOracle, errType(err))
	assert.Equal(t, units, h.rec.unitCount())

	setOracle(t, h.mem, h.farm.Lending.BaseOracle, 10_000_000_000, 10_000)
	setOracle(t, h.mem, h.farm.Lending.QuoteOracle, 100_000_000, 10_000)
	_, err = h.svc.DepositChamber(h.ctx, chamber, h.owner, depositBase, depositQuote)
	assert.NoError(t, err)
}

func TestStakeRejectsWrongNonces(t *testing.T) {
	h := newHarness(t)
	chamber := h.advance(model.StageSettled)
	legs := h.accounts().Legs
	nonces := [model.LegCount]uint8{legs[0].VaultBalanceBump, legs[1].VaultBalanceBump}
	metas := [model.LegCount]uint8{legs[0].VaultMetaBump, legs[1].VaultMetaBump}

	bad := nonces
	bad[1]--
	_, err := h.svc.SettleChamberPosition2(h.ctx, chamber, bad, metas)
	assert.Equal(t, apperrors.ErrInvalidRequest, errType(err))

	badMeta := metas
	badMeta[0]--
	_, err = h.svc.SettleChamberPosition2(h.ctx, chamber, nonces, badMeta)
	assert.Equal(t, apperrors.ErrInvalidRequest, errType(err))
	assert.Equal(t, model.StageSettled, h.chamber().Stage)

	_, err = h.svc.SettleChamberPosition2(h.ctx, chamber, nonces, metas)
	assert.NoError(t, err)
}

func TestGetChamberView(t *testing.T) {
	h := newHarness(t)
	chamber := h.advance(model.StageStrategyInitialized)

	view, err := h.svc.GetChamber(h.ctx, chamber)
	require.NoError(t, err)
	assert.Equal(t, model.OpDepositChamber, view.NextStep)
	require.Len(t, view.LegViews, model.LegCount)
	accounts := h.accounts()
	assert.Equal(t, accounts.Farm.String(), view.Farm)
	assert.Equal(t, accounts.Legs[1].Obligation.String(), view.LegViews[1].Obligation)

	_, err = h.svc.GetChamber(h.ctx, solana.NewWallet().PublicKey())
	assert.Equal(t, apperrors.ErrNotFound, errType(err))
}
