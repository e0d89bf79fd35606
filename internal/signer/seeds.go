package signer

import "encoding/binary"

// Seed prefixes of the records owned by the chamber program.
const (
	ChamberPrefix          = "chamber"
	ChamberAuthorityPrefix = "chamber_authority"
	UserPositionPrefix     = "user_position"
)

// Seed prefixes used by the lending service for per-farm records.
const (
	obligationVaultPrefix = "obligation_vault"
	positionInfoPrefix    = "position_info"
)

// userFarmIndex is the lending service farm slot a chamber occupies. Chambers only ever use slot 0.
const userFarmIndex uint64 = 0

func u64Seed(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
