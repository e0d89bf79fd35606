package oracle

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	Magic            uint32 = 0xa1b2c3d4
	Version2         uint32 = 2
	AccountTypePrice uint32 = 3
	PriceTypePrice   uint32 = 1

	StatusUnknown uint32 = 0
	StatusTrading uint32 = 1
	StatusHalted  uint32 = 2
	StatusAuction uint32 = 3

	// PriceAccountSize is the fixed header preceding the publisher components.
	PriceAccountSize = 240
)

type Ema struct {
	Val   int64
	Numer int64
	Denom int64
}

type PriceInfo struct {
	Price   int64
	Conf    uint64
	Status  uint32
	CorpAct uint32
	PubSlot uint64
}

// PriceAccount is the v2 price feed account read by the lending service.
type PriceAccount struct {
	Magic         uint32
	Version       uint32
	AccountType   uint32
	Size          uint32
	PriceType     uint32
	Expo          int32
	NumComponents uint32
	NumQuoters    uint32
	LastSlot      uint64
	ValidSlot     uint64
	TWAP          Ema
	TWAC          Ema
	Drv1          int64
	Drv2          int64
	Product       solana.PublicKey
	Next          solana.PublicKey
	PrevSlot      uint64
	PrevPrice     int64
	PrevConf      uint64
	Drv3          int64
	Agg           PriceInfo
}

// Decode parses the account header. Trailing publisher components are ignored.
func Decode(data []byte) (*PriceAccount, error) {
	if len(data) < PriceAccountSize {
		return nil, fmt.Errorf("price account too short: %d bytes", len(data))
	}
	var acc PriceAccount
	if err := bin.NewBinDecoder(data[:PriceAccountSize]).Decode(&acc); err != nil {
		return nil, fmt.Errorf("decode price account: %w", err)
	}
	return &acc, nil
}

// Encode writes the account header. It is used to seed ledger fakes.
func Encode(acc *PriceAccount) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBinEncoder(&buf).Encode(acc); err != nil {
		return nil, fmt.Errorf("encode price account: %w", err)
	}
	return buf.Bytes(), nil
}

// NewPriceAccount builds a trading price account with the given aggregate price.
func NewPriceAccount(price int64, expo int32, validSlot uint64) *PriceAccount {
	return &PriceAccount{
		Magic:       Magic,
		Version:     Version2,
		AccountType: AccountTypePrice,
		Size:        PriceAccountSize,
		PriceType:   PriceTypePrice,
		Expo:        expo,
		LastSlot:    validSlot,
		ValidSlot:   validSlot,
		Agg: PriceInfo{
			Price:   price,
			Status:  StatusTrading,
			PubSlot: validSlot,
		},
	}
}
