package ledger

// Account roles the executors read. Calls may carry other roles for the
// external services' benefit.
const (
	RoleFrom              = "from"
	RoleTo                = "to"
	RolePayer             = "payer"
	RoleAccount           = "account"
	RoleOwner             = "owner"
	RoleMint              = "mint"
	RoleSource            = "source"
	RoleDestination       = "destination"
	RoleAuthority         = "authority"
	RoleFarm              = "farm"
	RoleLeveragedFarm     = "leveraged_farm"
	RoleObligation        = "obligation"
	RoleObligationVault   = "obligation_vault"
	RoleLPAccount         = "lp_account"
	RoleLPMint            = "lp_mint"
	RoleCoinSource        = "coin_source"
	RolePcSource          = "pc_source"
	RoleCoinDestination   = "coin_destination"
	RolePcDestination     = "pc_destination"
	RoleCoinReserveSupply = "coin_reserve_supply"
	RolePcReserveSupply   = "pc_reserve_supply"
	RoleAMM               = "amm_id"
	RoleVaultInfo         = "vault_info"
	RoleVaultBalance      = "vault_balance"
	RoleVaultBalanceMeta  = "vault_balance_metadata"
	RolePoolLPAccount     = "pool_lp_account"
)
