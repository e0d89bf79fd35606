package signer

import (
	"fmt"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/gagliardetto/solana-go"
)

// AddressFunc searches for a canonical program address and its bump.
type AddressFunc func(seeds [][]byte, program solana.PublicKey) (solana.PublicKey, uint8, error)

// Deriver computes every authoritative address from stable seeds. It holds no keys.
type Deriver struct {
	program solana.PublicKey
	find    AddressFunc
}

func NewDeriver(program solana.PublicKey) *Deriver {
	return &Deriver{program: program, find: solana.FindProgramAddress}
}

// WithAddressFunc replaces the address search, e.g. to simulate an exhausted bump space.
func (d *Deriver) WithAddressFunc(f AddressFunc) *Deriver {
	return &Deriver{program: d.program, find: f}
}

func (d *Deriver) Program() solana.PublicKey {
	return d.program
}

func (d *Deriver) derive(what string, program solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := d.find(seeds, program)
	if err != nil {
		return solana.PublicKey{}, 0, apperrors.New(apperrors.ErrDerivationFailed, fmt.Sprintf("derive %s", what), err)
	}
	return addr, bump, nil
}

// Chamber derives the single chamber record of a leveraged farm.
func (d *Deriver) Chamber(leveragedFarm solana.PublicKey) (solana.PublicKey, uint8, error) {
	return d.derive("chamber", d.program, []byte(ChamberPrefix), leveragedFarm.Bytes())
}

// Authority derives the signing authority of a chamber.
func (d *Deriver) Authority(chamber solana.PublicKey) (solana.PublicKey, uint8, error) {
	return d.derive("chamber authority", d.program, []byte(ChamberAuthorityPrefix), chamber.Bytes())
}

func (d *Deriver) UserPosition(owner, chamber solana.PublicKey) (solana.PublicKey, uint8, error) {
	return d.derive("user position", d.program, []byte(UserPositionPrefix), owner.Bytes(), chamber.Bytes())
}

// AuthoritySeeds are the signer seeds attached to every authority-signed call.
func AuthoritySeeds(chamber solana.PublicKey, bump uint8) [][]byte {
	return [][]byte{[]byte(ChamberAuthorityPrefix), chamber.Bytes(), {bump}}
}

// VerifyAuthority checks that a stored authority and bump still match the chamber seeds.
func (d *Deriver) VerifyAuthority(c *model.Chamber) error {
	addr, err := solana.CreateProgramAddress(AuthoritySeeds(c.Address, c.AuthorityBump), d.program)
	if err != nil {
		return apperrors.New(apperrors.ErrDerivationFailed, "authority seeds", err)
	}
	if !addr.Equals(c.Authority) {
		return apperrors.New(apperrors.ErrDerivationFailed,
			fmt.Sprintf("authority %s does not match seeds of chamber %s", c.Authority, c.Address), nil)
	}
	return nil
}

// HoldingAccount is the associated token account of owner for mint.
func HoldingAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, apperrors.New(apperrors.ErrDerivationFailed, "holding account", err)
	}
	return addr, nil
}

// Farm derives the lending service farm record owned by a chamber authority.
func (d *Deriver) Farm(authority, leveragedFarm, levfarmProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return d.derive("chamber farm", levfarmProgram, authority.Bytes(), leveragedFarm.Bytes(), u64Seed(userFarmIndex))
}

func (d *Deriver) Obligation(authority, farm, levfarmProgram solana.PublicKey, leg uint8) (solana.PublicKey, uint8, error) {
	return d.derive("obligation", levfarmProgram, authority.Bytes(), farm.Bytes(), u64Seed(uint64(leg)))
}

func (d *Deriver) ObligationVault(farm, levfarmProgram solana.PublicKey, leg uint8) (solana.PublicKey, uint8, error) {
	return d.derive("obligation vault", levfarmProgram, []byte(obligationVaultPrefix), farm.Bytes(), u64Seed(uint64(leg)))
}

func (d *Deriver) PositionInfo(farm, levfarmProgram solana.PublicKey, leg uint8) (solana.PublicKey, uint8, error) {
	return d.derive("position info", levfarmProgram, []byte(positionInfoPrefix), farm.Bytes(), u64Seed(uint64(leg)))
}

// VaultBalance derives the yield-vault balance record keyed by vault info and obligation vault.
func (d *Deriver) VaultBalance(vaultInfo, obligationVault, vaultProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return d.derive("vault balance", vaultProgram, vaultInfo.Bytes(), obligationVault.Bytes())
}

func (d *Deriver) VaultBalanceMetadata(balance, obligationVault, vaultProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return d.derive("vault balance metadata", vaultProgram, balance.Bytes(), obligationVault.Bytes())
}
