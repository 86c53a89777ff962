package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/result-messaging/internal/model"
)

const (
	balanceKey = "sms:balance"
	balanceTTL = 60 * time.Second
	// maxReceipts caps each user's journal.
	maxReceipts = 500
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func receiptsKey(userID string) string {
	return fmt.Sprintf("sent:%s", userID)
}

func (c *RedisCache) StoreSent(ctx context.Context, userID string, r model.Recipient, sentAt time.Time) error {
	val := Receipt{
		Number:     r.Number,
		Normalized: r.Normalized,
		Info:       r.Info,
		SentAt:     sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	key := receiptsKey(userID)
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, b)
	pipe.LTrim(ctx, key, 0, maxReceipts-1)
	pipe.Expire(ctx, key, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Recent(ctx context.Context, userID string, n int) ([]Receipt, error) {
	if n <= 0 || n > maxReceipts {
		n = maxReceipts
	}

	raw, err := c.rdb.LRange(ctx, receiptsKey(userID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Receipt, 0, len(raw))
	for _, s := range raw {
		var r Receipt
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *RedisCache) GetBalance(ctx context.Context) (string, bool) {
	v, err := c.rdb.Get(ctx, balanceKey).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *RedisCache) SetBalance(ctx context.Context, balance string) error {
	return c.rdb.Set(ctx, balanceKey, balance, balanceTTL).Err()
}
