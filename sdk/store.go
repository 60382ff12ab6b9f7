package sdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/config"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/history"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/metrics/prometheus"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

// openStore builds the store named by the history configuration. The returned
// close function releases the Redis connection pool, if any.
func openStore(cfg *config.HistoryConfig) (history.Store, func() error, error) {
	if cfg.RedisURL == "" {
		return history.NewMemoryStore(), func() error { return nil }, nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid history redis URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	store := history.NewRedisStore(rdb,
		history.WithTTL(cfg.TTL),
		history.WithPrefix(cfg.Prefix),
	)
	return store, rdb.Close, nil
}

// instrumentedStore counts failed store operations.
type instrumentedStore struct {
	inner history.Store
}

var _ history.Store = instrumentedStore{}

func (s instrumentedStore) Load(ctx context.Context, id string) ([]types.ChatMessage, error) {
	msgs, err := s.inner.Load(ctx, id)
	if err != nil && !errors.Is(err, history.ErrNotFound) {
		prometheus.RecordHistoryStoreError("load")
	}
	return msgs, err
}

func (s instrumentedStore) Save(ctx context.Context, id string, msgs []types.ChatMessage) error {
	err := s.inner.Save(ctx, id, msgs)
	if err != nil {
		prometheus.RecordHistoryStoreError("save")
	}
	return err
}

func (s instrumentedStore) Delete(ctx context.Context, id string) error {
	err := s.inner.Delete(ctx, id)
	if err != nil {
		prometheus.RecordHistoryStoreError("delete")
	}
	return err
}
