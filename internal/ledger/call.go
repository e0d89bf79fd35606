package ledger

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
)

// Service identifies the external collaborator a call is addressed to.
type Service string

const (
	ServiceSystem  Service = "system"
	ServiceToken   Service = "token"
	ServiceLending Service = "lending"
	ServiceAMM     Service = "amm"
	ServiceVault   Service = "vault"
)

// Call names understood by every executor.
const (
	CallTransferNative       = "transfer_native"
	CallCreateHoldingAccount = "create_holding_account"
	CallTransfer             = "transfer"
	CallCreateFarm           = "create_farm"
	CallCreateObligation     = "create_obligation"
	CallDepositBorrow        = "deposit_borrow"
	CallSwap                 = "swap"
	CallAddLiquidity         = "add_liquidity"
	CallVaultDeposit         = "vault_deposit"
)

// AccountMeta is one account touched by a call, tagged with its role in that call.
type AccountMeta struct {
	Key      solana.PublicKey `json:"key"`
	Role     string           `json:"role"`
	Writable bool             `json:"writable"`
	Signer   bool             `json:"signer"`
}

// Call is a fully described external call. SignerSeeds, when set, let the
// executor sign for the program-derived account they produce.
type Call struct {
	Service     Service          `json:"service"`
	Program     solana.PublicKey `json:"program"`
	Name        string           `json:"name"`
	Leg         *uint8           `json:"leg,omitempty"`
	Accounts    []AccountMeta    `json:"accounts"`
	Args        any              `json:"args"`
	SignerSeeds [][]byte         `json:"signer_seeds,omitempty"`
}

// Account returns the key bound to role.
func (c *Call) Account(role string) (solana.PublicKey, bool) {
	for _, a := range c.Accounts {
		if a.Role == role {
			return a.Key, true
		}
	}
	return solana.PublicKey{}, false
}

type TransferNativeArgs struct {
	Lamports uint64 `json:"lamports"`
}

type CreateHoldingAccountArgs struct{}

type TransferArgs struct {
	Amount uint64 `json:"amount"`
}

type CreateFarmArgs struct {
	ObligationIndex uint8 `json:"obligation_index"`
}

type CreateObligationArgs struct {
	ObligationIndex uint8 `json:"obligation_index"`
}

type DepositBorrowArgs struct {
	CoinAmount       uint64 `json:"coin_amount"`
	PcAmount         uint64 `json:"pc_amount"`
	CoinBorrowAmount uint64 `json:"coin_borrow_amount"`
	PcBorrowAmount   uint64 `json:"pc_borrow_amount"`
	ObligationIndex  uint8  `json:"obligation_index"`
}

type SwapArgs struct {
	ObligationIndex uint8 `json:"obligation_index"`
}

type AddLiquidityArgs struct {
	ObligationIndex uint8 `json:"obligation_index"`
}

type VaultDepositArgs struct {
	Nonce           uint8 `json:"nonce"`
	MetaNonce       uint8 `json:"meta_nonce"`
	ObligationIndex uint8 `json:"obligation_index"`
}

// Digest is the keccak256 of the canonical JSON encoding of the calls.
func Digest(calls []Call) ([]byte, error) {
	b, err := json.Marshal(calls)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(b), nil
}
