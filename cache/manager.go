package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DetailCachePrefix = "product:detail:"
	ItemCachePrefix   = "product:item:"
	ListCachePrefix   = "products:v:"
	CacheVersionKey   = "products:version"

	DefaultCacheTTL = 10 * time.Minute
	writeTimeout    = 5 * time.Second
)

// Manager caches raw catalog payloads in Redis. List pages are keyed by a
// version number so one INCR invalidates all of them.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewManager(client *redis.Client, ttl time.Duration, log *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{redis: client, ttl: ttl, log: log}
}

// NewClient builds a Redis client from a redis:// URL.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// GetDetail returns a cached detail payload.
func (cm *Manager) GetDetail(ctx context.Context, id string) ([]byte, bool) {
	b, err := cm.redis.Get(ctx, DetailCachePrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			cm.log.Debug("Detail cache read failed", zap.Error(err), zap.String("product_id", id))
		}
		return nil, false
	}
	return b, true
}

// SetDetailAsync caches a detail payload in the background.
func (cm *Manager) SetDetailAsync(id string, raw []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := cm.redis.Set(ctx, DetailCachePrefix+id, raw, cm.ttl).Err(); err != nil {
			cm.log.Warn("Failed to cache product detail", zap.Error(err), zap.String("product_id", id))
		}
	}()
}

// GetItems looks up list-item payloads with one MGET. Only hits are returned.
func (cm *Manager) GetItems(ctx context.Context, ids []string) map[string][]byte {
	hits := make(map[string][]byte)
	if len(ids) == 0 {
		return hits
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ItemCachePrefix + id
	}
	vals, err := cm.redis.MGet(ctx, keys...).Result()
	if err != nil {
		cm.log.Debug("Item cache read failed", zap.Error(err), zap.Int("count", len(ids)))
		return hits
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			hits[ids[i]] = []byte(s)
		}
	}
	return hits
}

// SetItemsAsync caches list-item payloads in one pipeline.
func (cm *Manager) SetItemsAsync(items map[string][]byte) {
	if len(items) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		_, err := cm.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for id, raw := range items {
				pipe.Set(ctx, ItemCachePrefix+id, raw, cm.ttl)
			}
			return nil
		})
		if err != nil {
			cm.log.Warn("Failed to cache product items", zap.Error(err), zap.Int("count", len(items)))
		}
	}()
}

// GetList returns a cached list page for params together with the version it
// looked under. A zero version means list caching is unavailable.
func (cm *Manager) GetList(ctx context.Context, params url.Values) ([]byte, int64, bool) {
	version, err := cm.getCacheVersion(ctx)
	if err != nil || version == 0 {
		return nil, 0, false
	}
	b, err := cm.redis.Get(ctx, listKey(version, params)).Bytes()
	if err != nil {
		return nil, version, false
	}
	return b, version, true
}

// SetListAsync caches a list page under version, the one GetList reported
// before the page was fetched. A page fetched across an invalidation lands
// under the old version and is never served.
func (cm *Manager) SetListAsync(version int64, params url.Values, raw []byte) {
	if version == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := cm.redis.Set(ctx, listKey(version, params), raw, cm.ttl).Err(); err != nil {
			cm.log.Warn("Failed to cache product list", zap.Error(err), zap.Int64("version", version))
		}
	}()
}

// Invalidate drops every cached list page by bumping the version.
func (cm *Manager) Invalidate(ctx context.Context) error {
	newVersion, err := cm.redis.Incr(ctx, CacheVersionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	cm.log.Info("Cache invalidated", zap.Int64("new_version", newVersion))
	return nil
}

// InvalidateProducts drops the list pages and the entries of ids.
func (cm *Manager) InvalidateProducts(ctx context.Context, ids []string) error {
	if err := cm.Invalidate(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, DetailCachePrefix+id, ItemCachePrefix+id)
	}
	if err := cm.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete product cache: %w", err)
	}
	return nil
}

func (cm *Manager) getCacheVersion(ctx context.Context) (int64, error) {
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		ver, err := cm.redis.Get(ctx, CacheVersionKey).Int64()
		if err == nil && ver > 0 {
			return ver, nil
		}
		if errors.Is(err, redis.Nil) {
			if err := cm.redis.SetNX(ctx, CacheVersionKey, 1, 0).Err(); err == nil {
				continue
			}
		}
		if ctx.Err() != nil {
			break
		}
		if i < maxRetries-1 {
			time.Sleep(50 * time.Millisecond)
		}
	}
	return 0, fmt.Errorf("failed to get cache version after %d retries", maxRetries)
}

// listKey is stable for equal params: url.Values.Encode sorts by key.
func listKey(version int64, params url.Values) string {
	return fmt.Sprintf("%s%d:%s", ListCachePrefix, version, params.Encode())
}
