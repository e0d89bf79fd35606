package adapter

import (
	"context"

	"github.com/cetra-finance/chamber/internal/ledger"
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/cetra-finance/chamber/internal/signer"
	"github.com/gagliardetto/solana-go"
)

// RentSafetyFactor multiplies the rent of the records the lending service creates
// for a chamber when pre-funding the authority.
const RentSafetyFactor = 5

// StrategyRentBudget is transferred to a chamber authority before its farm is created.
const StrategyRentBudget = (ledger.RentFarm + ledger.RentObligation + ledger.RentTokenAccount) * RentSafetyFactor

// Scope binds the accounts every authority-signed call needs.
type Scope struct {
	Chamber  *model.Chamber
	Farm     *model.Farm
	Accounts *signer.ChamberAccounts
	Payer    solana.PublicKey
}

func (s *Scope) seeds() [][]byte {
	return signer.AuthoritySeeds(s.Chamber.Address, s.Chamber.AuthorityBump)
}

// DepositBorrow carries the sized amounts for one leg.
type DepositBorrow struct {
	CoinAmount       uint64
	PcAmount         uint64
	CoinBorrowAmount uint64
	PcBorrowAmount   uint64
}

// Services stages one external call per method into the given unit.
// A rejected call poisons the unit; the caller must abort it.
type Services interface {
	TransferNative(ctx context.Context, unit ledger.Unit, from, to solana.PublicKey, lamports uint64) error
	CreateHoldingAccount(ctx context.Context, unit ledger.Unit, payer, owner, mint solana.PublicKey, seeds [][]byte) (solana.PublicKey, error)
	Transfer(ctx context.Context, unit ledger.Unit, source, destination, authority solana.PublicKey, amount uint64, seeds [][]byte) error
	CreateFarm(ctx context.Context, unit ledger.Unit, s *Scope) error
	CreateObligation(ctx context.Context, unit ledger.Unit, s *Scope, leg uint8) error
	DepositBorrow(ctx context.Context, unit ledger.Unit, s *Scope, leg uint8, amounts DepositBorrow) error
	Swap(ctx context.Context, unit ledger.Unit, s *Scope, leg uint8) error
	AddLiquidity(ctx context.Context, unit ledger.Unit, s *Scope, leg uint8) error
	VaultDeposit(ctx context.Context, unit ledger.Unit, s *Scope, leg uint8, nonce, metaNonce uint8) error
}

// Registry selects the Services implementation for a protocol type.
type Registry struct {
	byProtocol map[model.ProtocolType]Services
}

func NewRegistry() *Registry {
	return &Registry{byProtocol: map[model.ProtocolType]Services{
		model.ProtocolTulip: NewLevfarm(),
	}}
}

func (r *Registry) Register(p model.ProtocolType, s Services) {
	r.byProtocol[p] = s
}

func (r *Registry) Supports(p model.ProtocolType) bool {
	_, ok := r.byProtocol[p]
	return ok
}

func (r *Registry) For(p model.ProtocolType) (Services, error) {
	s, ok := r.byProtocol[p]
	if !ok {
		return nil, apperrors.UnsupportedProtocol()
	}
	return s, nil
}
