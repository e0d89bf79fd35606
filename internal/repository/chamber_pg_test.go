package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cetra-finance/chamber/internal/config"
	"github.com/cetra-finance/chamber/internal/model"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPostgresStore connects to CHAMBER_TEST_DSN and removes what the test wrote.
func newPostgresStore(t *testing.T, chambers *[]string) *PostgresChamberStore {
	t.Helper()
	dsn := os.Getenv("CHAMBER_TEST_DSN")
	if dsn == "" {
		t.Skip("CHAMBER_TEST_DSN not set")
	}
	db, err := NewDB(&config.Config{Database: config.DatabaseConfig{DSN: dsn}})
	require.NoError(t, err)
	s, err := NewPostgresChamberStore(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Where("chamber IN ?", *chambers).Delete(&positionRow{})
		db.Where("address IN ?", *chambers).Delete(&chamberRow{})
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return s
}

func TestPostgresChamberUpsert(t *testing.T) {
	var written []string
	s := newPostgresStore(t, &written)
	ctx := context.Background()
	c := testChamber(t)
	written = append(written, c.Address.String())

	_, err := s.GetChamber(ctx, c.Address)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	c.Pending = &model.PendingStep{Op: model.OpInitializeChamberStrategy, UnitID: "u-1", Target: model.StageStrategyInitialized}
	require.NoError(t, s.SaveChamber(ctx, c))

	c.Pending = nil
	require.NoError(t, c.Advance(model.StageStrategyInitialized, time.Now().UTC()))
	require.NoError(t, s.SaveChamber(ctx, c))

	got, err := s.GetChamber(ctx, c.Address)
	require.NoError(t, err)
	assert.Equal(t, model.StageStrategyInitialized, got.Stage)
	assert.Nil(t, got.Pending)
	assert.Equal(t, c.Legs, got.Legs)

	var rows []chamberRow
	require.NoError(t, s.db.Where("address = ?", c.Address.String()).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, model.StageStrategyInitialized.String(), rows[0].Stage)
	assert.Empty(t, rows[0].PendingUnit)
}

func TestPostgresSaveTransitionWritesBoth(t *testing.T) {
	var written []string
	s := newPostgresStore(t, &written)
	ctx := context.Background()
	c := testChamber(t)
	written = append(written, c.Address.String())

	pos := &model.UserPosition{}
	pos.Init(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), c.Address, 255)
	require.NoError(t, pos.DepositBase(^uint64(0)))
	c.Pending = &model.PendingStep{Op: model.OpInitializeUserPosition, UnitID: "u-2", PositionOwner: pos.Owner}
	require.NoError(t, s.SaveTransition(ctx, c, pos))

	got, err := s.GetPosition(ctx, pos.Address)
	require.NoError(t, err)
	assert.Equal(t, *pos, *got)
	stored, err := s.GetChamber(ctx, c.Address)
	require.NoError(t, err)
	require.NotNil(t, stored.Pending)
	assert.Equal(t, "u-2", stored.Pending.UnitID)

	// A second transition overwrites both rows in place.
	require.NoError(t, pos.Apply(0, 7, 1, 0))
	c.Pending = nil
	require.NoError(t, s.SaveTransition(ctx, c, pos))

	got, err = s.GetPosition(ctx, pos.Address)
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0)-1, got.BaseAmount)
	assert.Equal(t, uint64(7), got.QuoteAmount)
	stored, err = s.GetChamber(ctx, c.Address)
	require.NoError(t, err)
	assert.Nil(t, stored.Pending)

	var count int64
	require.NoError(t, s.db.Model(&positionRow{}).Where("address = ?", pos.Address.String()).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = s.GetPosition(ctx, solana.NewWallet().PublicKey())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
