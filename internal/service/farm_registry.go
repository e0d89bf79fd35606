package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cetra-finance/chamber/internal/config"
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/gagliardetto/solana-go"
)

// FarmRegistry holds the leveraged farms this instance may manage, keyed by farm address.
type FarmRegistry struct {
	farms map[solana.PublicKey]*model.Farm
}

// farmAccountFields binds every config account key to its field on f.
func farmAccountFields(f *model.Farm) map[string]*solana.PublicKey {
	l, a, o, v := &f.Lending, &f.AMM, &f.OrderBook, &f.Vault
	return map[string]*solana.PublicKey{
		"base_mint":   &f.BaseMint,
		"quote_mint":  &f.QuoteMint,
		"lp_mint":     &f.LPMint,
		"reward_mint": &f.RewardMint,

		"global":                   &l.Global,
		"lending_market":           &l.LendingMarket,
		"lending_market_authority": &l.LendingMarketAuthority,
		"lending_program":          &l.LendingProgram,
		"levfarm_program":          &l.LevfarmProgram,
		"base_reserve":             &l.BaseReserve,
		"quote_reserve":            &l.QuoteReserve,
		"base_reserve_supply":      &l.BaseReserveSupply,
		"quote_reserve_supply":     &l.QuoteReserveSupply,
		"base_fee_receiver":        &l.BaseFeeReceiver,
		"quote_fee_receiver":       &l.QuoteFeeReceiver,
		"borrow_authorizer":        &l.BorrowAuthorizer,
		"base_oracle":              &l.BaseOracle,
		"quote_oracle":             &l.QuoteOracle,
		"lp_oracle":                &l.LPOracle,
		"farm_base_account":        &l.FarmBaseAccount,
		"farm_quote_account":       &l.FarmQuoteAccount,
		"vault_account":            &l.VaultAccount,

		"amm_program":       &a.Program,
		"amm_id":            &a.ID,
		"amm_authority":     &a.Authority,
		"amm_open_orders":   &a.OpenOrders,
		"amm_target_orders": &a.TargetOrders,
		"pool_coin":         &a.PoolCoin,
		"pool_pc":           &a.PoolPc,

		"market_program":      &o.Program,
		"market":              &o.Market,
		"bids":                &o.Bids,
		"asks":                &o.Asks,
		"event_queue":         &o.EventQueue,
		"market_coin_vault":   &o.CoinVault,
		"market_pc_vault":     &o.PcVault,
		"market_vault_signer": &o.VaultSigner,

		"vault_program":          &v.Program,
		"vault":                  &v.Vault,
		"vault_pda":              &v.PDA,
		"vault_info":             &v.Info,
		"vault_lp_token_account": &v.LPTokenAccount,
		"stake_program":          &v.StakeProgram,
		"pool_id":                &v.PoolID,
		"pool_authority":         &v.PoolAuthority,
		"pool_lp_account":        &v.PoolLPAccount,
		"reward_a":               &v.RewardA,
		"pool_reward_a":          &v.PoolRewardA,
		"reward_b":               &v.RewardB,
		"pool_reward_b":          &v.PoolRewardB,
	}
}

// FarmAccountKeys lists the account keys every farm entry must configure.
func FarmAccountKeys() []string {
	fields := farmAccountFields(&model.Farm{})
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseFarm validates one config entry. Every account key is required.
func ParseFarm(cfg config.FarmConfig) (*model.Farm, error) {
	farm := &model.Farm{Name: cfg.Name, FarmIndex: cfg.FarmIndex}
	lev, err := solana.PublicKeyFromBase58(cfg.LeveragedFarm)
	if err != nil {
		return nil, fmt.Errorf("farm %q: leveraged_farm: %w", cfg.Name, err)
	}
	farm.LeveragedFarm = lev

	var missing []string
	for key, field := range farmAccountFields(farm) {
		raw, ok := cfg.Accounts[key]
		if !ok || raw == "" {
			missing = append(missing, key)
			continue
		}
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return nil, fmt.Errorf("farm %q: account %s: %w", cfg.Name, key, err)
		}
		*field = pk
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("farm %q: missing accounts %s", cfg.Name, strings.Join(missing, ", "))
	}
	return farm, nil
}

func NewFarmRegistry(cfgs []config.FarmConfig) (*FarmRegistry, error) {
	r := &FarmRegistry{farms: make(map[solana.PublicKey]*model.Farm, len(cfgs))}
	for _, c := range cfgs {
		farm, err := ParseFarm(c)
		if err != nil {
			return nil, err
		}
		if err := r.Add(farm); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *FarmRegistry) Add(farm *model.Farm) error {
	if _, dup := r.farms[farm.LeveragedFarm]; dup {
		return fmt.Errorf("farm %s configured twice", farm.LeveragedFarm)
	}
	r.farms[farm.LeveragedFarm] = farm
	return nil
}

func (r *FarmRegistry) Get(leveragedFarm solana.PublicKey) (*model.Farm, error) {
	farm, ok := r.farms[leveragedFarm]
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("leveraged farm %s is not configured", leveragedFarm))
	}
	return farm, nil
}

func (r *FarmRegistry) List() []*model.Farm {
	out := make([]*model.Farm, 0, len(r.farms))
	for _, f := range r.farms {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
