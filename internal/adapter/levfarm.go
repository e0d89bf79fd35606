package adapter

import (
	"context"
	"fmt"

	"github.com/cetra-finance/chamber/internal/ledger"
	"github.com/cetra-finance/chamber/internal/signer"
	"github.com/gagliardetto/solana-go"
)

// Levfarm builds calls for the leveraged-farm lending service, its AMM
// and order-book venue, and its yield vault.
type Levfarm struct{}

func NewLevfarm() *Levfarm {
	return &Levfarm{}
}

func w(key solana.PublicKey, role string) ledger.AccountMeta {
	return ledger.AccountMeta{Key: key, Role: role, Writable: true}
}

func r(key solana.PublicKey, role string) ledger.AccountMeta {
	return ledger.AccountMeta{Key: key, Role: role}
}

func sig(key solana.PublicKey, role string) ledger.AccountMeta {
	return ledger.AccountMeta{Key: key, Role: role, Writable: true, Signer: true}
}

func legPtr(leg uint8) *uint8 {
	return &leg
}

func invoke(ctx context.Context, unit ledger.Unit, call ledger.Call) error {
	if err := unit.Invoke(ctx, call); err != nil {
		if call.Leg != nil {
			return fmt.Errorf("%s leg %d: %w", call.Name, *call.Leg, err)
		}
		return fmt.Errorf("%s: %w", call.Name, err)
	}
	return nil
}

func legAccounts(s *Scope, leg uint8) (*signer.LegAccounts, error) {
	if int(leg) >= len(s.Accounts.Legs) {
		return nil, fmt.Errorf("leg %d out of range", leg)
	}
	return &s.Accounts.Legs[leg], nil
}

func (l *Levfarm) TransferNative(ctx context.Context, unit ledger.Unit, from, to solana.PublicKey, lamports uint64) error {
	return invoke(ctx, unit, ledger.Call{
		Service: ledger.ServiceSystem,
		Program: solana.SystemProgramID,
		Name:    ledger.CallTransferNative,
		Accounts: []ledger.AccountMeta{
			sig(from, ledger.RoleFrom),
			w(to, ledger.RoleTo),
		},
		Args: ledger.TransferNativeArgs{Lamports: lamports},
	})
}

func (l *Levfarm) CreateHoldingAccount(ctx context.Context, unit ledger.Unit, payer, owner, mint solana.PublicKey, seeds [][]byte) (solana.PublicKey, error) {
	account, err := signer.HoldingAccount(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	err = invoke(ctx, unit, ledger.Call{
		Service: ledger.ServiceToken,
		Program: solana.SPLAssociatedTokenAccountProgramID,
		Name:    ledger.CallCreateHoldingAccount,
		Accounts: []ledger.AccountMeta{
			sig(payer, ledger.RolePayer),
			w(account, ledger.RoleAccount),
			r(owner, ledger.RoleOwner),
			r(mint, ledger.RoleMint),
			r(solana.SystemProgramID, "system_program"),
			r(solana.TokenProgramID, "token_program"),
			r(solana.SysVarRentPubkey, "rent"),
		},
		Args:        ledger.CreateHoldingAccountArgs{},
		SignerSeeds: seeds,
	})
	return account, err
}

func (l *Levfarm) Transfer(ctx context.Context, unit ledger.Unit, source, destination, authority solana.PublicKey, amount uint64, seeds [][]byte) error {
	return invoke(ctx, unit, ledger.Call{
		Service: ledger.ServiceToken,
		Program: solana.TokenProgramID,
		Name:    ledger.CallTransfer,
		Accounts: []ledger.AccountMeta{
			w(source, ledger.RoleSource),
			w(destination, ledger.RoleDestination),
			sig(authority, ledger.RoleAuthority),
		},
		Args:        ledger.TransferArgs{Amount: amount},
		SignerSeeds: seeds,
	})
}

// CreateFarm creates the chamber's farm record together with the leg 0 obligation and its LP account.
func (l *Levfarm) CreateFarm(ctx context.Context, unit ledger.Unit, s *Scope) error {
	leg, err := legAccounts(s, 0)
	if err != nil {
		return err
	}
	lending := s.Farm.Lending
	return invoke(ctx, unit, ledger.Call{
		Service: ledger.ServiceLending,
		Program: lending.LevfarmProgram,
		Name:    ledger.CallCreateFarm,
		Leg:     legPtr(0),
		Accounts: []ledger.AccountMeta{
			sig(s.Chamber.Authority, ledger.RoleAuthority),
			sig(s.Payer, ledger.RolePayer),
			r(lending.Global, "global"),
			w(s.Accounts.Farm, ledger.RoleFarm),
			w(leg.Obligation, ledger.RoleObligation),
			w(leg.ObligationVault, ledger.RoleObligationVault),
			r(lending.LendingMarket, "lending_market"),
			r(s.Farm.LeveragedFarm, ledger.RoleLeveragedFarm),
			w(leg.LPAccount, ledger.RoleLPAccount),
			r(s.Farm.LPMint, ledger.RoleLPMint),
			r(leg.RewardAccount, "reward_account"),
			r(s.Farm.RewardMint, "reward_mint"),
			r(solana.SysVarClockPubkey, "clock"),
			r(solana.SysVarRentPubkey, "rent"),
			r(lending.LendingProgram, "lending_program"),
			r(s.Farm.Vault.Program, "vault_program"),
			r(solana.TokenProgramID, "token_program"),
			r(solana.SystemProgramID, "system_program"),
		},
		Args:        ledger.CreateFarmArgs{ObligationIndex: 0},
		SignerSeeds: s.seeds(),
	})
}

func (l *Levfarm) CreateObligation(ctx context.Context, unit ledger.Unit, s *Scope, index uint8) error {
	if index == 0 {
		return fmt.Errorf("leg 0 obligation is created with the farm")
	}
	leg, err := legAccounts(s, index)
	if err != nil {
		return err
	}
	lending := s.Farm.Lending
	return invoke(ctx, unit, ledger.Call{
		Service: ledger.ServiceLending,
		Program: lending.LevfarmProgram,
		Name:    ledger.CallCreateObligation,
		Leg:     legPtr(index),
		Accounts: []ledger.AccountMeta{
			sig(s.Chamber.Authority, ledger.RoleAuthority),
			sig(s.Payer, ledger.RolePayer),
			w(s.Accounts.Farm, ledger.RoleFarm),
			r(s.Farm.LeveragedFarm, ledger.RoleLeveragedFarm),
			w(leg.Obligation, ledger.RoleObligation),
			r(lending.LendingMarket, "lending_market"),
			w(leg.ObligationVault, ledger.RoleObligationVault),
			w(leg.LPAccount, ledger.RoleLPAccount),
			r(s.Farm.LPMint, ledger.RoleLPMint),
			r(leg.RewardAccount, "reward_account"),
			r(s.Farm.RewardMint, "reward_mint"),
			r(solana.SysVarClockPubkey, "clock"),
			r(solana.SysVarRentPubkey, "rent"),
			r(lending.LendingProgram, "lending_program"),
			r(solana.TokenProgramID, "token_program"),
			r(solana.SystemProgramID, "system_program"),
		},
		Args:        ledger.CreateObligationArgs{ObligationIndex: index},
		SignerSeeds: s.seeds(),
	})
}

func (l *Levfarm) DepositBorrow(ctx context.Context, unit ledger.Unit, s *Scope, index uint8, amounts DepositBorrow) error {
	leg, err := legAccounts(s, index)
	if err != nil {
		return err
	}
	lending := s.Farm.Lending
	return invoke(ctx, unit, ledger.Call{
		Service: ledger.ServiceLending,
		Program: lending.LevfarmProgram,
		Name:    ledger.CallDepositBorrow,
		Leg:     legPtr(index),
		Accounts: []ledger.AccountMeta{
			sig(s.Chamber.Authority, ledger.RoleAuthority),
			w(s.Accounts.Farm, ledger.RoleFarm),
			r(s.Farm.LeveragedFarm, ledger.RoleLeveragedFarm),
			w(leg.Obligation, ledger.RoleObligation),
			w(s.Chamber.BaseATA, ledger.RoleCoinSource),
			w(lending.FarmBaseAccount, ledger.RoleCoinDestination),
			w(s.Chamber.QuoteATA, ledger.RolePcSource),
			w(lending.FarmQuoteAccount, ledger.RolePcDestination),
			w(lending.BaseReserve, "coin_deposit_reserve"),
			w(lending.QuoteReserve, "pc_deposit_reserve"),
			r(lending.BaseOracle, "coin_reserve_oracle"),
			r(lending.QuoteOracle, "pc_reserve_oracle"),
			r(lending.LendingMarket, "lending_market"),
			r(lending.LendingMarketAuthority, "lending_market_authority"),
			r(solana.TokenProgramID, "token_program"),
			r(lending.LendingProgram, "lending_program"),
			w(lending.BaseReserveSupply, ledger.RoleCoinReserveSupply),
			w(lending.QuoteReserveSupply, ledger.RolePcReserveSupply),
			w(lending.BaseFeeReceiver, "coin_fee_receiver"),
			w(lending.QuoteFeeReceiver, "pc_fee_receiver"),
			r(lending.BorrowAuthorizer, "borrow_authorizer"),
			r(lending.LPOracle, "lp_oracle"),
			w(lending.VaultAccount, "vault_account"),
			w(leg.PositionInfo, "position_info"),
			r(solana.SysVarRentPubkey, "rent"),
			r(solana.SystemProgramID, "system_program"),
		},
		Args: ledger.DepositBorrowArgs{
			CoinAmount:       amounts.CoinAmount,
			PcAmount:         amounts.PcAmount,
			CoinBorrowAmount: amounts.CoinBorrowAmount,
			PcBorrowAmount:   amounts.PcBorrowAmount,
			ObligationIndex:  index,
		},
		SignerSeeds: s.seeds(),
	})
}

func (l *Levfarm) ammAccounts(s *Scope) []ledger.AccountMeta {
	amm, book := s.Farm.AMM, s.Farm.OrderBook
	return []ledger.AccountMeta{
		r(amm.Program, "amm_program"),
		w(amm.ID, ledger.RoleAMM),
		r(amm.Authority, "amm_authority"),
		w(amm.OpenOrders, "amm_open_orders"),
		w(amm.TargetOrders, "amm_target_orders"),
		w(amm.PoolCoin, "pool_coin"),
		w(amm.PoolPc, "pool_pc"),
		r(book.Program, "market_program"),
		w(book.Market, "market"),
		w(book.Bids, "bids"),
		w(book.Asks, "asks"),
		w(book.EventQueue, "event_queue"),
		w(book.CoinVault, "market_coin_vault"),
		w(book.PcVault, "market_pc_vault"),
		r(book.VaultSigner, "market_vault_signer"),
	}
}

func (l *Levfarm) Swap(ctx context.Context, unit ledger.Unit, s *Scope, index uint8) error {
	leg, err := legAccounts(s, index)
	if err != nil {
		return err
	}
	lending := s.Farm.Lending
	accounts := []ledger.AccountMeta{
		sig(s.Chamber.Authority, ledger.RoleAuthority),
		w(s.Farm.LeveragedFarm, ledger.RoleLeveragedFarm),
		w(s.Accounts.Farm, ledger.RoleFarm),
		w(leg.Obligation, ledger.RoleObligation),
		r(lending.LendingMarket, "lending_market"),
		r(lending.LendingMarketAuthority, "lending_market_authority"),
		w(lending.FarmBaseAccount, "levfarm_coin_account"),
		w(lending.FarmQuoteAccount, "levfarm_pc_account"),
		r(lending.BaseOracle, "coin_oracle"),
		r(lending.QuoteOracle, "pc_oracle"),
		r(lending.LendingProgram, "lending_program"),
		r(solana.TokenProgramID, "token_program"),
	}
	return invoke(ctx, unit, ledger.Call{
		Service:     ledger.ServiceAMM,
		Program:     lending.LevfarmProgram,
		Name:        ledger.CallSwap,
		Leg:         legPtr(index),
		Accounts:    append(accounts, l.ammAccounts(s)...),
		Args:        ledger.SwapArgs{ObligationIndex: index},
		SignerSeeds: s.seeds(),
	})
}

func (l *Levfarm) AddLiquidity(ctx context.Context, unit ledger.Unit, s *Scope, index uint8) error {
	leg, err := legAccounts(s, index)
	if err != nil {
		return err
	}
	lending := s.Farm.Lending
	accounts := []ledger.AccountMeta{
		sig(s.Chamber.Authority, ledger.RoleAuthority),
		w(s.Accounts.Farm, ledger.RoleFarm),
		w(s.Farm.LeveragedFarm, ledger.RoleLeveragedFarm),
		w(leg.Obligation, ledger.RoleObligation),
		w(leg.LPAccount, ledger.RoleLPAccount),
		w(s.Farm.LPMint, ledger.RoleLPMint),
		w(lending.FarmBaseAccount, "levfarm_coin_account"),
		w(lending.FarmQuoteAccount, "levfarm_pc_account"),
		r(lending.LendingMarket, "lending_market"),
		r(lending.LendingMarketAuthority, "lending_market_authority"),
		r(lending.BaseOracle, "coin_oracle"),
		r(lending.QuoteOracle, "pc_oracle"),
		r(lending.LPOracle, "lp_oracle"),
		r(lending.LendingProgram, "lending_program"),
		r(solana.SysVarClockPubkey, "clock"),
		r(solana.TokenProgramID, "token_program"),
	}
	return invoke(ctx, unit, ledger.Call{
		Service:     ledger.ServiceAMM,
		Program:     lending.LevfarmProgram,
		Name:        ledger.CallAddLiquidity,
		Leg:         legPtr(index),
		Accounts:    append(accounts, l.ammAccounts(s)...),
		Args:        ledger.AddLiquidityArgs{ObligationIndex: index},
		SignerSeeds: s.seeds(),
	})
}

func (l *Levfarm) VaultDeposit(ctx context.Context, unit ledger.Unit, s *Scope, index uint8, nonce, metaNonce uint8) error {
	leg, err := legAccounts(s, index)
	if err != nil {
		return err
	}
	lending, vault := s.Farm.Lending, s.Farm.Vault
	return invoke(ctx, unit, ledger.Call{
		Service: ledger.ServiceVault,
		Program: vault.Program,
		Name:    ledger.CallVaultDeposit,
		Leg:     legPtr(index),
		Accounts: []ledger.AccountMeta{
			sig(s.Chamber.Authority, ledger.RoleAuthority),
			w(s.Accounts.Farm, ledger.RoleFarm),
			w(leg.ObligationVault, ledger.RoleObligationVault),
			w(s.Farm.LeveragedFarm, ledger.RoleLeveragedFarm),
			r(vault.Program, "vault_program"),
			w(leg.LPAccount, ledger.RoleLPAccount),
			w(vault.PDA, "vault_pda"),
			w(vault.Vault, "vault"),
			w(vault.LPTokenAccount, "vault_lp_token_account"),
			w(leg.VaultBalance, ledger.RoleVaultBalance),
			r(solana.SystemProgramID, "system_program"),
			r(vault.StakeProgram, "stake_program"),
			w(vault.PoolID, "pool_id"),
			r(vault.PoolAuthority, "pool_authority"),
			w(vault.Info, ledger.RoleVaultInfo),
			w(vault.PoolLPAccount, ledger.RolePoolLPAccount),
			w(vault.RewardA, "reward_a"),
			w(vault.PoolRewardA, "pool_reward_a"),
			w(vault.RewardB, "reward_b"),
			w(vault.PoolRewardB, "pool_reward_b"),
			r(solana.SysVarClockPubkey, "clock"),
			r(solana.SysVarRentPubkey, "rent"),
			r(solana.TokenProgramID, "token_program"),
			w(leg.VaultMeta, ledger.RoleVaultBalanceMeta),
			w(lending.LendingMarket, "lending_market"),
			w(leg.Obligation, ledger.RoleObligation),
			r(lending.LendingMarketAuthority, "lending_market_authority"),
			r(lending.LendingProgram, "lending_program"),
			r(lending.LevfarmProgram, "levfarm_program"),
		},
		Args:        ledger.VaultDepositArgs{Nonce: nonce, MetaNonce: metaNonce, ObligationIndex: index},
		SignerSeeds: s.seeds(),
	})
}
