package cachestore

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

const redisCachePrefix = "result/"

// RedisCacheStore shares classification results across processes. SetNX keeps
// the write-once contract: the first stored result for a hash wins.
type RedisCacheStore struct {
	Data *cache.Cache
}

var _ ResultCache = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string) (*RedisCacheStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, time.Hour),
	})
	return &RedisCacheStore{Data: data}, nil
}

func (s *RedisCacheStore) Get(ctx context.Context, hash string) (string, bool) {
	var val string
	err := s.Data.Get(ctx, redisCachePrefix+hash, &val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *RedisCacheStore) Put(ctx context.Context, hash, result string) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCachePrefix + hash,
		Value: result,
		SetNX: true,
	})
}
