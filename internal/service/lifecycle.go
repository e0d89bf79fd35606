package service

import (
	"context"
	"fmt"

	"github.com/cetra-finance/chamber/internal/adapter"
	"github.com/cetra-finance/chamber/internal/ledger"
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/cetra-finance/chamber/internal/signer"
	"github.com/gagliardetto/solana-go"
)

// InitializeChamber creates the chamber of a configured farm and its two
// holding accounts under the derived authority.
func (s *ChamberService) InitializeChamber(ctx context.Context, leveragedFarm solana.PublicKey, protocol model.ProtocolType) (*model.StepResponse, error) {
	op := model.OpInitializeChamber
	services, err := s.adapters.For(protocol)
	if err != nil {
		return nil, s.reject(op, leveragedFarm, err)
	}
	farm, err := s.farms.Get(leveragedFarm)
	if err != nil {
		return nil, s.reject(op, leveragedFarm, err)
	}
	address, bump, err := s.deriver.Chamber(leveragedFarm)
	if err != nil {
		return nil, s.reject(op, leveragedFarm, err)
	}
	authority, authorityBump, err := s.deriver.Authority(address)
	if err != nil {
		return nil, s.reject(op, address, err)
	}
	baseATA, err := signer.HoldingAccount(authority, farm.BaseMint)
	if err != nil {
		return nil, s.reject(op, address, err)
	}
	quoteATA, err := signer.HoldingAccount(authority, farm.QuoteMint)
	if err != nil {
		return nil, s.reject(op, address, err)
	}

	unlock, err := s.locks.TryLock(ctx, address.String())
	if err != nil {
		return nil, s.reject(op, address, err)
	}
	defer unlock()

	c, err := s.store.GetChamber(ctx, address)
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		c = &model.Chamber{Address: address}
	case err != nil:
		return nil, s.reject(op, address, err)
	}
	if err := s.reconcile(ctx, c); err != nil {
		return nil, s.reject(op, address, err)
	}
	if c.Stage != model.StageUninitialized {
		return nil, s.reject(op, address, apperrors.New(apperrors.ErrAlreadyExists,
			fmt.Sprintf("chamber %s already exists for farm %s", address, leveragedFarm), nil))
	}

	// Staged here so a committed unit can be applied by reconciliation.
	c.LeveragedFarm = leveragedFarm
	c.Authority = authority
	c.BaseATA = baseATA
	c.QuoteATA = quoteATA
	c.BaseMint = farm.BaseMint
	c.QuoteMint = farm.QuoteMint
	c.ProtocolType = protocol
	c.Bump = bump
	c.AuthorityBump = authorityBump

	return s.run(ctx, c, &step{
		pending: model.PendingStep{Op: op, Target: model.StageChamberInitialized},
		invoke: func(ctx context.Context, unit ledger.Unit) error {
			if _, err := services.CreateHoldingAccount(ctx, unit, s.payer, authority, farm.BaseMint, nil); err != nil {
				return err
			}
			_, err := services.CreateHoldingAccount(ctx, unit, s.payer, authority, farm.QuoteMint, nil)
			return err
		},
	})
}

// InitializeChamberStrategy pre-funds the authority, then creates the farm
// record with the leg 0 obligation and the remaining obligations.
func (s *ChamberService) InitializeChamberStrategy(ctx context.Context, chamber solana.PublicKey) (*model.StepResponse, error) {
	return s.onChamber(ctx, chamber, model.OpInitializeChamberStrategy, func(ctx context.Context, cc *chamberCtx) (*step, error) {
		return &step{invoke: func(ctx context.Context, unit ledger.Unit) error {
			if err := cc.services.TransferNative(ctx, unit, s.payer, cc.chamber.Authority, adapter.StrategyRentBudget); err != nil {
				return err
			}
			if err := cc.services.CreateFarm(ctx, unit, cc.scope); err != nil {
				return err
			}
			for leg := 1; leg < model.LegCount; leg++ {
				if err := cc.services.CreateObligation(ctx, unit, cc.scope, uint8(leg)); err != nil {
					return err
				}
			}
			return nil
		}}, nil
	})
}

// InitializeUserPosition moves a depositor's funds into the chamber holding
// accounts and credits their position, creating it on first deposit.
// The depositor co-signs the unit.
func (s *ChamberService) InitializeUserPosition(ctx context.Context, chamber, owner solana.PublicKey, base, quote uint64) (*model.StepResponse, error) {
	return s.onChamber(ctx, chamber, model.OpInitializeUserPosition, func(ctx context.Context, cc *chamberCtx) (*step, error) {
		if base == 0 && quote == 0 {
			return nil, apperrors.NewInvalidRequest("deposit amounts are both zero")
		}
		pos, _, err := s.loadPosition(ctx, owner, chamber)
		if err != nil {
			return nil, err
		}
		if err := pos.Apply(base, quote, 0, 0); err != nil {
			return nil, err
		}
		ownerBase, ownerQuote, err := ownerAccounts(owner, cc.chamber)
		if err != nil {
			return nil, err
		}
		return &step{
			pending: model.PendingStep{PositionOwner: owner, CreditBase: base, CreditQuote: quote},
			signers: []solana.PublicKey{owner},
			invoke: func(ctx context.Context, unit ledger.Unit) error {
				if base > 0 {
					if err := cc.services.Transfer(ctx, unit, ownerBase, cc.chamber.BaseATA, owner, base, nil); err != nil {
						return err
					}
				}
				if quote > 0 {
					return cc.services.Transfer(ctx, unit, ownerQuote, cc.chamber.QuoteATA, owner, quote, nil)
				}
				return nil
			},
		}, nil
	})
}

// WithdrawUserPosition returns not-yet-deployed funds to the depositor.
func (s *ChamberService) WithdrawUserPosition(ctx context.Context, chamber, owner solana.PublicKey, base, quote uint64) (*model.StepResponse, error) {
	return s.onChamber(ctx, chamber, model.OpWithdrawUserPosition, func(ctx context.Context, cc *chamberCtx) (*step, error) {
		if base == 0 && quote == 0 {
			return nil, apperrors.NewInvalidRequest("withdrawal amounts are both zero")
		}
		pos, exists, err := s.loadPosition(ctx, owner, chamber)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperrors.NewNotFound(fmt.Sprintf("no position for %s in chamber %s", owner, chamber))
		}
		if !pos.Covers(base, quote) {
			return nil, apperrors.InsufficientUserPositionFunds()
		}
		ownerBase, ownerQuote, err := ownerAccounts(owner, cc.chamber)
		if err != nil {
			return nil, err
		}
		seeds := signer.AuthoritySeeds(cc.chamber.Address, cc.chamber.AuthorityBump)
		return &step{
			pending: model.PendingStep{PositionOwner: owner, DebitBase: base, DebitQuote: quote},
			invoke: func(ctx context.Context, unit ledger.Unit) error {
				if base > 0 {
					if err := cc.services.Transfer(ctx, unit, cc.chamber.BaseATA, ownerBase, cc.chamber.Authority, base, seeds); err != nil {
						return err
					}
				}
				if quote > 0 {
					return cc.services.Transfer(ctx, unit, cc.chamber.QuoteATA, ownerQuote, cc.chamber.Authority, quote, seeds)
				}
				return nil
			},
		}, nil
	})
}

// DepositChamber sizes a deposit from live prices and funds every leg with
// one deposit-and-borrow call. The deployed amounts leave the depositor's position.
func (s *ChamberService) DepositChamber(ctx context.Context, chamber, owner solana.PublicKey, base, quote uint64) (*model.StepResponse, error) {
	return s.onChamber(ctx, chamber, model.OpDepositChamber, func(ctx context.Context, cc *chamberCtx) (*step, error) {
		if base == 0 && quote == 0 {
			return nil, apperrors.NewInvalidRequest("deposit amounts are both zero")
		}
		pos, exists, err := s.loadPosition(ctx, owner, chamber)
		if err != nil {
			return nil, err
		}
		if !exists || !pos.Covers(base, quote) {
			return nil, apperrors.InsufficientUserPositionFunds()
		}
		prices, err := s.prices.Prices(ctx, cc.farm.Lending.BaseOracle, cc.farm.Lending.QuoteOracle)
		if err != nil {
			return nil, err
		}
		plan, err := s.engine.Plan(base, quote, prices)
		if err != nil {
			return nil, err
		}
		if len(plan.Legs) != model.LegCount {
			return nil, apperrors.New(apperrors.ErrInternal, fmt.Sprintf("plan has %d legs", len(plan.Legs)), nil)
		}
		return &step{
			pending: model.PendingStep{PositionOwner: owner, DebitBase: base, DebitQuote: quote},
			legs:    plan.View(),
			invoke: func(ctx context.Context, unit ledger.Unit) error {
				for _, leg := range plan.Legs {
					amounts := adapter.DepositBorrow{
						CoinAmount:       leg.SelfBase,
						PcAmount:         leg.SelfQuote,
						CoinBorrowAmount: leg.BorrowBase,
						PcBorrowAmount:   leg.BorrowQuote,
					}
					if err := cc.services.DepositBorrow(ctx, unit, cc.scope, leg.Index, amounts); err != nil {
						return err
					}
				}
				return nil
			},
		}, nil
	})
}

// SettleChamberPosition swaps every leg, then adds every leg's liquidity.
func (s *ChamberService) SettleChamberPosition(ctx context.Context, chamber solana.PublicKey) (*model.StepResponse, error) {
	return s.onChamber(ctx, chamber, model.OpSettleChamberPosition, func(ctx context.Context, cc *chamberCtx) (*step, error) {
		return &step{invoke: func(ctx context.Context, unit ledger.Unit) error {
			for leg := 0; leg < model.LegCount; leg++ {
				if err := cc.services.Swap(ctx, unit, cc.scope, uint8(leg)); err != nil {
					return err
				}
			}
			for leg := 0; leg < model.LegCount; leg++ {
				if err := cc.services.AddLiquidity(ctx, unit, cc.scope, uint8(leg)); err != nil {
					return err
				}
			}
			return nil
		}}, nil
	})
}

// SettleChamberPosition2 stakes every leg's liquidity in the yield vault. The
// caller's nonces must equal the canonical bumps of the derived vault records.
func (s *ChamberService) SettleChamberPosition2(ctx context.Context, chamber solana.PublicKey, nonces, metaNonces [model.LegCount]uint8) (*model.StepResponse, error) {
	return s.onChamber(ctx, chamber, model.OpSettleChamberPosition2, func(ctx context.Context, cc *chamberCtx) (*step, error) {
		for i, leg := range cc.scope.Accounts.Legs {
			if nonces[i] != leg.VaultBalanceBump {
				return nil, apperrors.NewInvalidRequest(fmt.Sprintf("leg %d: nonce %d does not match vault balance %s", i, nonces[i], leg.VaultBalance))
			}
			if metaNonces[i] != leg.VaultMetaBump {
				return nil, apperrors.NewInvalidRequest(fmt.Sprintf("leg %d: meta nonce %d does not match vault metadata %s", i, metaNonces[i], leg.VaultMeta))
			}
		}
		return &step{invoke: func(ctx context.Context, unit ledger.Unit) error {
			for leg := 0; leg < model.LegCount; leg++ {
				if err := cc.services.VaultDeposit(ctx, unit, cc.scope, uint8(leg), nonces[leg], metaNonces[leg]); err != nil {
					return err
				}
			}
			return nil
		}}, nil
	})
}

// GetChamber returns the recorded chamber with its re-derived leg accounts.
// Protocols reports which known protocol types have a registered adapter.
func (s *ChamberService) Protocols() []model.ProtocolInfo {
	out := make([]model.ProtocolInfo, 0, len(model.KnownProtocols))
	for _, p := range model.KnownProtocols {
		out = append(out, model.ProtocolInfo{Type: p, Code: uint8(p), Supported: s.adapters.Supports(p)})
	}
	return out
}

func (s *ChamberService) GetChamber(ctx context.Context, address solana.PublicKey) (*model.ChamberView, error) {
	c, err := s.store.GetChamber(ctx, address)
	if err != nil {
		return nil, err
	}
	if c.Stage == model.StageUninitialized && c.Pending == nil {
		return nil, apperrors.NewNotFound(fmt.Sprintf("chamber %s not found", address))
	}
	view := &model.ChamberView{Chamber: c, NextStep: c.NextStep()}
	if c.Stage == model.StageUninitialized {
		return view, nil
	}
	farm, err := s.farms.Get(c.LeveragedFarm)
	if err != nil {
		return view, nil
	}
	accounts, err := s.deriver.Accounts(c, farm)
	if err != nil {
		return nil, err
	}
	view.Farm = accounts.Farm.String()
	for i, leg := range accounts.Legs {
		view.LegViews = append(view.LegViews, model.LegView{
			Index:            leg.Index,
			Stage:            c.Legs[i].Stage,
			Obligation:       leg.Obligation.String(),
			ObligationVault:  leg.ObligationVault.String(),
			PositionInfo:     leg.PositionInfo.String(),
			VaultBalance:     leg.VaultBalance.String(),
			VaultBalanceMeta: leg.VaultMeta.String(),
		})
	}
	return view, nil
}

func (s *ChamberService) GetPosition(ctx context.Context, chamber, owner solana.PublicKey) (*model.UserPosition, error) {
	pos, exists, err := s.loadPosition(ctx, owner, chamber)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NewNotFound(fmt.Sprintf("no position for %s in chamber %s", owner, chamber))
	}
	return pos, nil
}

// loadPosition returns the stored position, or a fresh one at its derived address.
func (s *ChamberService) loadPosition(ctx context.Context, owner, chamber solana.PublicKey) (*model.UserPosition, bool, error) {
	address, bump, err := s.deriver.UserPosition(owner, chamber)
	if err != nil {
		return nil, false, err
	}
	pos, err := s.store.GetPosition(ctx, address)
	if err == nil {
		return pos, true, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}
	pos = &model.UserPosition{}
	pos.Init(address, owner, chamber, bump)
	return pos, false, nil
}

func ownerAccounts(owner solana.PublicKey, c *model.Chamber) (base, quote solana.PublicKey, err error) {
	if base, err = signer.HoldingAccount(owner, c.BaseMint); err != nil {
		return
	}
	quote, err = signer.HoldingAccount(owner, c.QuoteMint)
	return
}
