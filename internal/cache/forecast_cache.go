package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordercast/ordercast/internal/config"
	"github.com/ordercast/ordercast/internal/forecast"
)

const (
	forecastResultKeyPrefix = "forecast:result"
	forecastScanBatchSize   = 100
)

// ForecastScope identifies one cacheable forecast computation.
type ForecastScope struct {
	StoreID       int64
	SupplierNames []string
	OrderDate     string
	ForecastDays  int
	LookbackDays  int
}

type ForecastCache interface {
	GetResult(ctx context.Context, scope ForecastScope) (*forecast.Result, bool, error)
	SetResult(ctx context.Context, scope ForecastScope, result *forecast.Result) error
	InvalidateStore(ctx context.Context, storeID int64) error
	InvalidateAll(ctx context.Context) error
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopForecastCache struct{}

func NewForecastCache(cfg config.CacheConfig) (ForecastCache, error) {
	if !cfg.Enabled {
		return &noopForecastCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisForecastCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopForecastCache() ForecastCache {
	return &noopForecastCache{}
}

func (c *redisForecastCache) GetResult(ctx context.Context, scope ForecastScope) (*forecast.Result, bool, error) {
	key := buildForecastResultKey(scope)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result forecast.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode forecast result cache: %w", err)
	}

	return &result, true, nil
}

func (c *redisForecastCache) SetResult(ctx context.Context, scope ForecastScope, result *forecast.Result) error {
	key := buildForecastResultKey(scope)
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode forecast result cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisForecastCache) InvalidateStore(ctx context.Context, storeID int64) error {
	prefix := fmt.Sprintf("%s:%d:", forecastResultKeyPrefix, storeID)
	return deleteKeysWithPrefix(ctx, c.client, prefix, forecastScanBatchSize)
}

func (c *redisForecastCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, forecastResultKeyPrefix, forecastScanBatchSize)
}

func (n *noopForecastCache) GetResult(ctx context.Context, scope ForecastScope) (*forecast.Result, bool, error) {
	return nil, false, nil
}

func (n *noopForecastCache) SetResult(ctx context.Context, scope ForecastScope, result *forecast.Result) error {
	return nil
}

func (n *noopForecastCache) InvalidateStore(ctx context.Context, storeID int64) error {
	return nil
}

func (n *noopForecastCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// buildForecastResultKey keeps the store id visible in the key so one
// store's entries can be invalidated without touching the others.
func buildForecastResultKey(scope ForecastScope) string {
	return fmt.Sprintf("%s:%d:%s", forecastResultKeyPrefix, scope.StoreID, forecastScopeHash(scope))
}

func forecastScopeHash(scope ForecastScope) string {
	parts := []string{
		fmt.Sprintf("order_date=%s", strings.TrimSpace(scope.OrderDate)),
		fmt.Sprintf("forecast_days=%d", scope.ForecastDays),
		fmt.Sprintf("lookback_days=%d", scope.LookbackDays),
	}

	if len(scope.SupplierNames) > 0 {
		normalized := make([]string, 0, len(scope.SupplierNames))
		for _, v := range scope.SupplierNames {
			v = strings.TrimSpace(strings.ToLower(v))
			if v == "" {
				continue
			}
			normalized = append(normalized, v)
		}
		if len(normalized) > 0 {
			sort.Strings(normalized)
			parts = append(parts, "suppliers="+strings.Join(normalized, ","))
		}
	}

	sort.Strings(parts)
	raw := strings.Join(parts, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
