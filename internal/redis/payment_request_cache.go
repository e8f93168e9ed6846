package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"ecommerce-transactions/internal/domain/transaction"
)

// Cache key pattern:
// - keys:{rpt_id} - PaymentRequestInfo, TTL from REDIS_CACHE_TTL

type CacheConfig struct {
	TTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 20 * time.Minute}
}

// PaymentRequestInfoCache is the idempotency cache for notice activation.
type PaymentRequestInfoCache struct {
	client *goredis.Client
	config CacheConfig
}

func NewPaymentRequestInfoCache(client *goredis.Client, config CacheConfig) *PaymentRequestInfoCache {
	return &PaymentRequestInfoCache{
		client: client,
		config: config,
	}
}

func cacheKey(rptID transaction.RptID) string {
	return fmt.Sprintf("keys:%s", rptID)
}

func (c *PaymentRequestInfoCache) Get(ctx context.Context, rptID transaction.RptID) (*transaction.PaymentRequestInfo, error) {
	data, err := c.client.Get(ctx, cacheKey(rptID)).Bytes()
	if err == goredis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", rptID, err)
	}

	var info transaction.PaymentRequestInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("cache decode %s: %w", rptID, err)
	}
	return &info, nil
}

func (c *PaymentRequestInfoCache) Put(ctx context.Context, info transaction.PaymentRequestInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, cacheKey(info.RptID), data, c.config.TTL).Err(); err != nil {
		return fmt.Errorf("cache put %s: %w", info.RptID, err)
	}
	return nil
}

// PutIfAbsent writes info with SETNX. When another writer got there first the
// stored entry is returned instead, so racing activations share one key.
func (c *PaymentRequestInfoCache) PutIfAbsent(ctx context.Context, info transaction.PaymentRequestInfo) (transaction.PaymentRequestInfo, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return transaction.PaymentRequestInfo{}, err
	}
	ok, err := c.client.SetNX(ctx, cacheKey(info.RptID), data, c.config.TTL).Result()
	if err != nil {
		return transaction.PaymentRequestInfo{}, fmt.Errorf("cache setnx %s: %w", info.RptID, err)
	}
	if ok {
		return info, nil
	}

	winner, err := c.Get(ctx, info.RptID)
	if err != nil {
		return transaction.PaymentRequestInfo{}, err
	}
	if winner == nil {
		// The winner expired between SETNX and GET.
		return info, c.Put(ctx, info)
	}
	return *winner, nil
}

func (c *PaymentRequestInfoCache) Delete(ctx context.Context, rptID transaction.RptID) error {
	if err := c.client.Del(ctx, cacheKey(rptID)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", rptID, err)
	}
	return nil
}
