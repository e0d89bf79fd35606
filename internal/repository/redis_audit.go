package repository

import (
	"context"
	"encoding/json"

	"github.com/cetra-finance/chamber/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisUnitRepo keeps the newest unit records in a capped list.
type RedisUnitRepo struct {
	client  redis.Cmdable
	listKey string
	listMax int
}

func NewRedisUnitRepo(client redis.Cmdable, listKey string, listMax int) *RedisUnitRepo {
	if listKey == "" {
		listKey = "chamber:units"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisUnitRepo{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisUnitRepo) Insert(ctx context.Context, rec *model.UnitRecord) error {
	if rec == nil {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisUnitRepo) List(ctx context.Context, chamber string, limit int) ([]*model.UnitRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}
	items, err := r.client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]*model.UnitRecord, 0, limit)
	for _, raw := range items {
		var rec model.UnitRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if chamber != "" && rec.Chamber != chamber {
			continue
		}
		results = append(results, &rec)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
