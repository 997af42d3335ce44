package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/punchamoorthee/txnrelay/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisChartKeyPrefix = "user_chart:"

// RedisChartStore keeps chart blobs as JSON strings without expiry.
type RedisChartStore struct {
	rdb *redis.Client
}

func NewRedisChartStore(addr, password string, db int) *RedisChartStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisChartStore{rdb: rdb}
}

func (rs *RedisChartStore) Close() error {
	return rs.rdb.Close()
}

func (rs *RedisChartStore) Ping(ctx context.Context) error {
	return rs.rdb.Ping(ctx).Err()
}

func (rs *RedisChartStore) Upsert(ctx context.Context, chart *domain.UserChart) error {
	data, err := json.Marshal(chart)
	if err != nil {
		return errors.Wrap(err, "marshalling chart")
	}

	err = rs.rdb.Set(ctx, redisChartKeyPrefix+chart.Email, data, 0).Err()
	if err != nil {
		return errors.Wrap(err, "setting chart")
	}
	return nil
}

func (rs *RedisChartStore) Get(ctx context.Context, email string) (*domain.UserChart, error) {
	data, err := rs.rdb.Get(ctx, redisChartKeyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting chart")
	}

	var chart domain.UserChart
	if err := json.Unmarshal(data, &chart); err != nil {
		return nil, errors.Wrap(err, "unmarshalling chart")
	}
	return &chart, nil
}
