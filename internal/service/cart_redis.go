package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/model"
)

const (
	// keyCart: cart:{user_id} -> hash product_id => quantity
	keyCart = "cart:%s"

	ttlCart = 30 * 24 * time.Hour
)

type RedisCartStore struct {
	rdb *redis.Client
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func NewRedisCartStore(rdb *redis.Client) *RedisCartStore {
	return &RedisCartStore{rdb: rdb}
}

func (s *RedisCartStore) Load(ctx context.Context, userID string) ([]model.CartItem, error) {
	m, err := s.rdb.HGetAll(ctx, fmt.Sprintf(keyCart, userID)).Result()
	if err != nil {
		return nil, err
	}

	items := make([]model.CartItem, 0, len(m))
	for productID, v := range m {
		qty, err := strconv.Atoi(v)
		if err != nil || qty < 1 {
			continue
		}
		items = append(items, model.CartItem{ProductID: productID, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

func (s *RedisCartStore) Increment(ctx context.Context, userID, productID string, delta int) error {
	key := fmt.Sprintf(keyCart, userID)
	pipe := s.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, productID, int64(delta))
	pipe.Expire(ctx, key, ttlCart)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisCartStore) Set(ctx context.Context, userID, productID string, qty int) error {
	key := fmt.Sprintf(keyCart, userID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, productID, qty)
	pipe.Expire(ctx, key, ttlCart)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisCartStore) Remove(ctx context.Context, userID, productID string) (bool, error) {
	n, err := s.rdb.HDel(ctx, fmt.Sprintf(keyCart, userID), productID).Result()
	return n > 0, err
}

func (s *RedisCartStore) Clear(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(keyCart, userID)).Err()
}
