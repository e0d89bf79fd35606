package model

import "github.com/gagliardetto/solana-go"

// Farm describes one leveraged farm and the external accounts its calls touch.
type Farm struct {
	Name          string           `json:"name"`
	LeveragedFarm solana.PublicKey `json:"leveraged_farm"`
	FarmIndex     uint64           `json:"farm_index"`

	BaseMint   solana.PublicKey `json:"base_mint"`
	QuoteMint  solana.PublicKey `json:"quote_mint"`
	LPMint     solana.PublicKey `json:"lp_mint"`
	RewardMint solana.PublicKey `json:"reward_mint"`

	Lending   LendingAccounts   `json:"lending"`
	AMM       AMMAccounts       `json:"amm"`
	OrderBook OrderBookAccounts `json:"order_book"`
	Vault     VaultAccounts     `json:"vault"`
}

type LendingAccounts struct {
	Global                 solana.PublicKey `json:"global"`
	LendingMarket          solana.PublicKey `json:"lending_market"`
	LendingMarketAuthority solana.PublicKey `json:"lending_market_authority"`
	LendingProgram         solana.PublicKey `json:"lending_program"`
	LevfarmProgram         solana.PublicKey `json:"levfarm_program"`
	BaseReserve            solana.PublicKey `json:"base_reserve"`
	QuoteReserve           solana.PublicKey `json:"quote_reserve"`
	BaseReserveSupply      solana.PublicKey `json:"base_reserve_supply"`
	QuoteReserveSupply     solana.PublicKey `json:"quote_reserve_supply"`
	BaseFeeReceiver        solana.PublicKey `json:"base_fee_receiver"`
	QuoteFeeReceiver       solana.PublicKey `json:"quote_fee_receiver"`
	BorrowAuthorizer       solana.PublicKey `json:"borrow_authorizer"`
	BaseOracle             solana.PublicKey `json:"base_oracle"`
	QuoteOracle            solana.PublicKey `json:"quote_oracle"`
	LPOracle               solana.PublicKey `json:"lp_oracle"`
	FarmBaseAccount        solana.PublicKey `json:"farm_base_account"`
	FarmQuoteAccount       solana.PublicKey `json:"farm_quote_account"`
	VaultAccount           solana.PublicKey `json:"vault_account"`
}

type AMMAccounts struct {
	Program      solana.PublicKey `json:"program"`
	ID           solana.PublicKey `json:"id"`
	Authority    solana.PublicKey `json:"authority"`
	OpenOrders   solana.PublicKey `json:"open_orders"`
	TargetOrders solana.PublicKey `json:"target_orders"`
	PoolCoin     solana.PublicKey `json:"pool_coin"`
	PoolPc       solana.PublicKey `json:"pool_pc"`
}

type OrderBookAccounts struct {
	Program     solana.PublicKey `json:"program"`
	Market      solana.PublicKey `json:"market"`
	Bids        solana.PublicKey `json:"bids"`
	Asks        solana.PublicKey `json:"asks"`
	EventQueue  solana.PublicKey `json:"event_queue"`
	CoinVault   solana.PublicKey `json:"coin_vault"`
	PcVault     solana.PublicKey `json:"pc_vault"`
	VaultSigner solana.PublicKey `json:"vault_signer"`
}

type VaultAccounts struct {
	Program        solana.PublicKey `json:"program"`
	Vault          solana.PublicKey `json:"vault"`
	PDA            solana.PublicKey `json:"pda"`
	Info           solana.PublicKey `json:"info"`
	LPTokenAccount solana.PublicKey `json:"lp_token_account"`
	StakeProgram   solana.PublicKey `json:"stake_program"`
	PoolID         solana.PublicKey `json:"pool_id"`
	PoolAuthority  solana.PublicKey `json:"pool_authority"`
	PoolLPAccount  solana.PublicKey `json:"pool_lp_account"`
	RewardA        solana.PublicKey `json:"reward_a"`
	PoolRewardA    solana.PublicKey `json:"pool_reward_a"`
	RewardB        solana.PublicKey `json:"reward_b"`
	PoolRewardB    solana.PublicKey `json:"pool_reward_b"`
}
