package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUnitRepo struct {
	mu      sync.Mutex
	records []*model.UnitRecord
	listErr error
}

func (r *fakeUnitRepo) Insert(_ context.Context, rec *model.UnitRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeUnitRepo) List(_ context.Context, chamber string, limit int) ([]*model.UnitRecord, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.UnitRecord
	for _, rec := range r.records {
		if chamber == "" || rec.Chamber == chamber {
			out = append(out, rec)
		}
	}
	return out, nil
}

func TestAuditServiceWritesFileAndRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "units.jsonl")
	repo := &fakeUnitRepo{}
	svc, err := NewAuditService(path, 10, repo)
	require.NoError(t, err)

	svc.Record(&model.UnitRecord{ID: "u1", Op: model.OpInitializeChamber, Chamber: "c1", Status: model.UnitCommitted})
	svc.Record(&model.UnitRecord{ID: "u2", Op: model.OpDepositChamber, Chamber: "c2", Status: model.UnitAborted})
	svc.Close()
	svc.Close()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec model.UnitRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"u1", "u2"}, ids)

	got, err := svc.List(context.Background(), "c2", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u2", got[0].ID)
}

func TestAuditServiceFallsBackToBuffer(t *testing.T) {
	repo := &fakeUnitRepo{listErr: errors.New("db down")}
	svc, err := NewAuditService("", 3, repo)
	require.NoError(t, err)
	defer svc.Close()

	for _, id := range []string{"a", "b", "c", "d"} {
		svc.Record(&model.UnitRecord{ID: id, Chamber: "c1"})
	}
	got, err := svc.List(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "d", got[0].ID)
	assert.Equal(t, "b", got[2].ID)

	got, err = svc.List(context.Background(), "other", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAuditBufferLimit(t *testing.T) {
	b := newAuditBuffer(5)
	for _, id := range []string{"a", "b", "c"} {
		b.Add(&model.UnitRecord{ID: id, Chamber: "x"})
	}
	got := b.List("x", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}
