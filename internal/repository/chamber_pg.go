package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// chamberRow keeps the full record as JSON next to the columns operators query by.
type chamberRow struct {
	Address       string `gorm:"primaryKey;size:44"`
	LeveragedFarm string `gorm:"size:44;uniqueIndex"`
	Stage         string `gorm:"size:32;index"`
	PendingUnit   string `gorm:"size:64;index"`
	Record        string `gorm:"type:jsonb;not null"`
	UpdatedAt     time.Time
}

func (chamberRow) TableName() string { return "chambers" }

// positionRow stores amounts as numeric(20,0) so the full uint64 range survives.
type positionRow struct {
	Address     string          `gorm:"primaryKey;size:44"`
	Owner       string          `gorm:"size:44;index"`
	Chamber     string          `gorm:"size:44;index"`
	BaseAmount  decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	QuoteAmount decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	Bump        int16
	UpdatedAt   time.Time
}

func (positionRow) TableName() string { return "user_positions" }

type PostgresChamberStore struct {
	db *gorm.DB
}

func NewPostgresChamberStore(db *gorm.DB) (*PostgresChamberStore, error) {
	if err := db.AutoMigrate(&chamberRow{}, &positionRow{}); err != nil {
		return nil, fmt.Errorf("migrate chamber tables: %w", err)
	}
	return &PostgresChamberStore{db: db}, nil
}

func (s *PostgresChamberStore) GetChamber(ctx context.Context, address solana.PublicKey) (*model.Chamber, error) {
	var row chamberRow
	err := s.db.WithContext(ctx).First(&row, "address = ?", address.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound(fmt.Sprintf("chamber %s not found", address))
	}
	if err != nil {
		return nil, err
	}
	var c model.Chamber
	if err := json.Unmarshal([]byte(row.Record), &c); err != nil {
		return nil, fmt.Errorf("decode chamber %s: %w", address, err)
	}
	return &c, nil
}

func (s *PostgresChamberStore) SaveChamber(ctx context.Context, c *model.Chamber) error {
	return saveChamber(s.db.WithContext(ctx), c)
}

func (s *PostgresChamberStore) GetPosition(ctx context.Context, address solana.PublicKey) (*model.UserPosition, error) {
	var row positionRow
	err := s.db.WithContext(ctx).First(&row, "address = ?", address.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound(fmt.Sprintf("user position %s not found", address))
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (s *PostgresChamberStore) SaveTransition(ctx context.Context, c *model.Chamber, pos *model.UserPosition) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveChamber(tx, c); err != nil {
			return err
		}
		if pos == nil {
			return nil
		}
		row := positionRow{
			Address:     pos.Address.String(),
			Owner:       pos.Owner.String(),
			Chamber:     pos.Chamber.String(),
			BaseAmount:  amountToDecimal(pos.BaseAmount),
			QuoteAmount: amountToDecimal(pos.QuoteAmount),
			Bump:        int16(pos.Bump),
			UpdatedAt:   time.Now().UTC(),
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	})
}

func saveChamber(db *gorm.DB, c *model.Chamber) error {
	record, err := json.Marshal(c)
	if err != nil {
		return err
	}
	row := chamberRow{
		Address:       c.Address.String(),
		LeveragedFarm: c.LeveragedFarm.String(),
		Stage:         c.Stage.String(),
		Record:        string(record),
		UpdatedAt:     time.Now().UTC(),
	}
	if c.Pending != nil {
		row.PendingUnit = c.Pending.UnitID
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r positionRow) toModel() (*model.UserPosition, error) {
	address, err := solana.PublicKeyFromBase58(r.Address)
	if err != nil {
		return nil, err
	}
	owner, err := solana.PublicKeyFromBase58(r.Owner)
	if err != nil {
		return nil, err
	}
	chamber, err := solana.PublicKeyFromBase58(r.Chamber)
	if err != nil {
		return nil, err
	}
	base, err := decimalToAmount(r.BaseAmount)
	if err != nil {
		return nil, err
	}
	quote, err := decimalToAmount(r.QuoteAmount)
	if err != nil {
		return nil, err
	}
	return &model.UserPosition{
		Address:     address,
		Owner:       owner,
		Chamber:     chamber,
		BaseAmount:  base,
		QuoteAmount: quote,
		Bump:        uint8(r.Bump),
	}, nil
}

func amountToDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func decimalToAmount(d decimal.Decimal) (uint64, error) {
	if !d.IsInteger() || d.IsNegative() {
		return 0, fmt.Errorf("amount %s is not a whole token amount", d)
	}
	b := d.BigInt()
	if !b.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows u64", d)
	}
	return b.Uint64(), nil
}
