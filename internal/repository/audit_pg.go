package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cetra-finance/chamber/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type unitRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Op        string `gorm:"size:64"`
	Chamber   string `gorm:"size:44;index:idx_unit_records_chamber,priority:1"`
	Calls     string `gorm:"type:jsonb"`
	Digest    string `gorm:"size:66"`
	Status    string `gorm:"size:16"`
	Error     string
	LatencyMs int64
	CreatedAt time.Time `gorm:"index:idx_unit_records_chamber,priority:2,sort:desc"`
}

func (unitRow) TableName() string { return "unit_records" }

// PostgresUnitRepo stores the unit audit trail.
type PostgresUnitRepo struct {
	db *gorm.DB
}

func NewPostgresUnitRepo(db *gorm.DB) (*PostgresUnitRepo, error) {
	if err := db.AutoMigrate(&unitRow{}); err != nil {
		return nil, fmt.Errorf("migrate unit_records: %w", err)
	}
	return &PostgresUnitRepo{db: db}, nil
}

func (r *PostgresUnitRepo) Insert(ctx context.Context, rec *model.UnitRecord) error {
	if rec == nil {
		return nil
	}
	calls, err := json.Marshal(rec.Calls)
	if err != nil {
		return err
	}
	row := unitRow{
		ID:        rec.ID,
		Op:        rec.Op,
		Chamber:   rec.Chamber,
		Calls:     string(calls),
		Digest:    rec.Digest,
		Status:    string(rec.Status),
		Error:     rec.Error,
		LatencyMs: rec.LatencyMs,
		CreatedAt: rec.CreatedAt,
	}
	// A reconciled unit is recorded again under the same id with its final status.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "error"}),
	}).Create(&row).Error
}

func (r *PostgresUnitRepo) List(ctx context.Context, chamber string, limit int) ([]*model.UnitRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if chamber != "" {
		q = q.Where("chamber = ?", chamber)
	}
	var rows []unitRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]*model.UnitRecord, 0, len(rows))
	for _, row := range rows {
		rec := &model.UnitRecord{
			ID:        row.ID,
			Op:        row.Op,
			Chamber:   row.Chamber,
			Digest:    row.Digest,
			Status:    model.UnitStatus(row.Status),
			Error:     row.Error,
			LatencyMs: row.LatencyMs,
			CreatedAt: row.CreatedAt,
		}
		if row.Calls != "" {
			_ = json.Unmarshal([]byte(row.Calls), &rec.Calls)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *PostgresUnitRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&unitRow{}).Error
}
