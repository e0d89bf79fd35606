package signer

import (
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/gagliardetto/solana-go"
)

// LegAccounts are the external records of one leg, re-derived on every step.
type LegAccounts struct {
	Index            uint8
	Obligation       solana.PublicKey
	ObligationVault  solana.PublicKey
	PositionInfo     solana.PublicKey
	VaultBalance     solana.PublicKey
	VaultBalanceBump uint8
	VaultMeta        solana.PublicKey
	VaultMetaBump    uint8
	LPAccount        solana.PublicKey
	RewardAccount    solana.PublicKey
}

// ChamberAccounts bundles everything a lifecycle step needs for one chamber.
type ChamberAccounts struct {
	Chamber   solana.PublicKey
	Authority solana.PublicKey
	Farm      solana.PublicKey
	Legs      [model.LegCount]LegAccounts
}

// Accounts derives the farm record and both legs for a chamber.
func (d *Deriver) Accounts(c *model.Chamber, farm *model.Farm) (*ChamberAccounts, error) {
	levfarm := farm.Lending.LevfarmProgram
	farmAddr, _, err := d.Farm(c.Authority, farm.LeveragedFarm, levfarm)
	if err != nil {
		return nil, err
	}
	out := &ChamberAccounts{Chamber: c.Address, Authority: c.Authority, Farm: farmAddr}
	for i := range out.Legs {
		leg, err := d.leg(c.Authority, farmAddr, farm, uint8(i))
		if err != nil {
			return nil, err
		}
		out.Legs[i] = leg
	}
	return out, nil
}

func (d *Deriver) leg(authority, farmAddr solana.PublicKey, farm *model.Farm, index uint8) (LegAccounts, error) {
	levfarm := farm.Lending.LevfarmProgram
	leg := LegAccounts{Index: index}
	var err error

	if leg.Obligation, _, err = d.Obligation(authority, farmAddr, levfarm, index); err != nil {
		return leg, err
	}
	if leg.ObligationVault, _, err = d.ObligationVault(farmAddr, levfarm, index); err != nil {
		return leg, err
	}
	if leg.PositionInfo, _, err = d.PositionInfo(farmAddr, levfarm, index); err != nil {
		return leg, err
	}
	if leg.VaultBalance, leg.VaultBalanceBump, err = d.VaultBalance(farm.Vault.Info, leg.ObligationVault, farm.Vault.Program); err != nil {
		return leg, err
	}
	if leg.VaultMeta, leg.VaultMetaBump, err = d.VaultBalanceMetadata(leg.VaultBalance, leg.ObligationVault, farm.Vault.Program); err != nil {
		return leg, err
	}
	if leg.LPAccount, err = HoldingAccount(leg.ObligationVault, farm.LPMint); err != nil {
		return leg, err
	}
	if leg.RewardAccount, err = HoldingAccount(leg.ObligationVault, farm.RewardMint); err != nil {
		return leg, err
	}
	return leg, nil
}
