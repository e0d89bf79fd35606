package model

// InitializeChamberRequest creates a chamber for a configured leveraged farm.
type InitializeChamberRequest struct {
	LeveragedFarm string `json:"leveraged_farm" binding:"required"`
	ProtocolType  string `json:"protocol_type" binding:"required"`
}

// PositionRequest carries a depositor's amounts in base units of each mint.
type PositionRequest struct {
	Owner       string `json:"owner" binding:"required"`
	BaseAmount  uint64 `json:"base_amount"`
	QuoteAmount uint64 `json:"quote_amount"`
}

type WithdrawRequest struct {
	BaseAmount  uint64 `json:"base_amount"`
	QuoteAmount uint64 `json:"quote_amount"`
}

// DepositChamberRequest deploys part of a depositor's balance into both legs.
type DepositChamberRequest struct {
	Owner       string `json:"owner" binding:"required"`
	BaseAmount  uint64 `json:"base_amount"`
	QuoteAmount uint64 `json:"quote_amount"`
}

// StakeRequest carries the caller's vault balance bumps for both legs.
type StakeRequest struct {
	Nonce0     uint8 `json:"nonce_0"`
	Nonce1     uint8 `json:"nonce_1"`
	MetaNonce0 uint8 `json:"meta_nonce_0"`
	MetaNonce1 uint8 `json:"meta_nonce_1"`
}

// StepResponse is returned by every lifecycle operation.
type StepResponse struct {
	Chamber  string    `json:"chamber"`
	Op       string    `json:"op"`
	UnitID   string    `json:"unit_id,omitempty"`
	Stage    Stage     `json:"stage"`
	NextStep string    `json:"next_step,omitempty"`
	Legs     []LegPlan `json:"legs,omitempty"`
}

type LegView struct {
	Index            uint8  `json:"index"`
	Stage            Stage  `json:"stage"`
	Obligation       string `json:"obligation"`
	ObligationVault  string `json:"obligation_vault"`
	PositionInfo     string `json:"position_info"`
	VaultBalance     string `json:"vault_balance"`
	VaultBalanceMeta string `json:"vault_balance_metadata"`
}

// ChamberView is the chamber record plus its derived per-leg accounts.
type ChamberView struct {
	*Chamber
	Farm     string    `json:"farm"`
	NextStep string    `json:"next_step,omitempty"`
	LegViews []LegView `json:"leg_accounts"`
}

// LegPlan is the JSON view of one sized leg, with prices as decimals.
type LegPlan struct {
	Index       uint8  `json:"index"`
	SelfBase    uint64 `json:"self_base"`
	SelfQuote   uint64 `json:"self_quote"`
	BorrowBase  uint64 `json:"borrow_base"`
	BorrowQuote uint64 `json:"borrow_quote"`
	Value       string `json:"value"`
}
