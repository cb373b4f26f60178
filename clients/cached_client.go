package clients

import (
	"context"
	"encoding/json"
	"net/url"

	"catalog-service/models"
	"catalog-service/pkg/aws"

	"go.uber.org/zap"
)

// PayloadCache stores raw catalog payloads. *cache.Manager satisfies it.
type PayloadCache interface {
	GetDetail(ctx context.Context, id string) ([]byte, bool)
	SetDetailAsync(id string, raw []byte)
	GetItems(ctx context.Context, ids []string) map[string][]byte
	SetItemsAsync(items map[string][]byte)
	GetList(ctx context.Context, params url.Values) ([]byte, int64, bool)
	SetListAsync(version int64, params url.Values, raw []byte)
	InvalidateProducts(ctx context.Context, ids []string) error
}

// CacheMetrics counts cache lookups. *aws.MetricsClient satisfies it.
type CacheMetrics interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

var _ CatalogAPI = (*CachedCatalogClient)(nil)

// CachedCatalogClient is a read-through cache in front of another CatalogAPI.
// Cache failures are treated as misses; mutations invalidate what they touch.
type CachedCatalogClient struct {
	next    CatalogAPI
	cache   PayloadCache
	metrics CacheMetrics
	log     *zap.Logger
}

func NewCachedCatalogClient(next CatalogAPI, cache PayloadCache, log *zap.Logger) *CachedCatalogClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedCatalogClient{next: next, cache: cache, log: log}
}

// WithMetrics makes c count hits and misses per resource.
func (c *CachedCatalogClient) WithMetrics(m CacheMetrics) *CachedCatalogClient {
	c.metrics = m
	return c
}

func (c *CachedCatalogClient) recordLookup(ctx context.Context, resource string, hit bool) {
	if c.metrics == nil {
		return
	}
	name := aws.MetricCacheMisses
	if hit {
		name = aws.MetricCacheHits
	}
	if err := c.metrics.RecordCount(context.WithoutCancel(ctx), name, map[string]string{"Resource": resource}); err != nil {
		c.log.Debug("Failed to record cache metric", zap.Error(err), zap.String("resource", resource))
	}
}

// List stores a fetched page under the cache version seen before the fetch, so
// an invalidation racing the upstream call is never overwritten.
func (c *CachedCatalogClient) List(ctx context.Context, params url.Values) (models.ListPage, error) {
	raw, version, ok := c.cache.GetList(ctx, params)
	if ok {
		var page models.ListPage
		err := json.Unmarshal(raw, &page)
		if err == nil {
			c.recordLookup(ctx, "list", true)
			return page, nil
		}
		c.log.Warn("Failed to unmarshal cached product list", zap.Error(err))
	}
	c.recordLookup(ctx, "list", false)
	page, err := c.next.List(ctx, params)
	if err != nil {
		return page, err
	}
	if raw, err := json.Marshal(page); err == nil {
		c.cache.SetListAsync(version, params, raw)
	}
	return page, nil
}

func (c *CachedCatalogClient) Detail(ctx context.Context, id string) (models.RawDetail, error) {
	if raw, ok := c.cache.GetDetail(ctx, id); ok {
		var detail models.RawDetail
		err := json.Unmarshal(raw, &detail)
		if err == nil {
			c.recordLookup(ctx, "detail", true)
			return detail, nil
		}
		c.log.Warn("Failed to unmarshal cached product detail", zap.Error(err), zap.String("product_id", id))
	}
	c.recordLookup(ctx, "detail", false)
	detail, err := c.next.Detail(ctx, id)
	if err != nil {
		return detail, err
	}
	c.storeDetail(id, detail)
	return detail, nil
}

// ByIDs serves cached items and asks upstream only for the misses. The
// result keeps the order of ids; ids upstream does not know are omitted.
func (c *CachedCatalogClient) ByIDs(ctx context.Context, ids []string) ([]models.RawListItem, error) {
	found := make(map[string]models.RawListItem, len(ids))
	for id, raw := range c.cache.GetItems(ctx, ids) {
		var item models.RawListItem
		if err := json.Unmarshal(raw, &item); err != nil {
			c.log.Warn("Failed to unmarshal cached product item", zap.Error(err), zap.String("product_id", id))
			continue
		}
		found[id] = item
	}

	var misses []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			misses = append(misses, id)
		}
	}
	c.recordLookup(ctx, "items", len(misses) == 0)
	if len(misses) > 0 {
		fetched, err := c.next.ByIDs(ctx, misses)
		if err != nil {
			return nil, err
		}
		toCache := make(map[string][]byte, len(fetched))
		for _, item := range fetched {
			found[item.ID] = item
			if raw, err := json.Marshal(item); err == nil {
				toCache[item.ID] = raw
			}
		}
		c.cache.SetItemsAsync(toCache)
	}

	out := make([]models.RawListItem, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if item, ok := found[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *CachedCatalogClient) Search(ctx context.Context, query string, params url.Values) (models.ListPage, error) {
	return c.next.Search(ctx, query, params)
}

func (c *CachedCatalogClient) AvailableFilters(ctx context.Context) ([]models.FilterDefinition, error) {
	return c.next.AvailableFilters(ctx)
}

func (c *CachedCatalogClient) Create(ctx context.Context, in models.ProductInput) (models.RawDetail, error) {
	detail, err := c.next.Create(ctx, in)
	if err != nil {
		return detail, err
	}
	c.invalidate(ctx, []string{detail.ID})
	return detail, nil
}

func (c *CachedCatalogClient) Update(ctx context.Context, id string, in models.ProductInput) (models.RawDetail, error) {
	detail, err := c.next.Update(ctx, id, in)
	if err != nil {
		return detail, err
	}
	c.invalidate(ctx, []string{id})
	return detail, nil
}

func (c *CachedCatalogClient) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, []string{id})
	return nil
}

func (c *CachedCatalogClient) BulkDelete(ctx context.Context, ids []string) ([]string, error) {
	deleted, err := c.next.BulkDelete(ctx, ids)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, ids)
	return deleted, nil
}

// Invalidate drops cached entries for ids, e.g. after a remote change event.
func (c *CachedCatalogClient) Invalidate(ctx context.Context, ids []string) {
	c.invalidate(ctx, ids)
}

func (c *CachedCatalogClient) storeDetail(id string, detail models.RawDetail) {
	raw, err := json.Marshal(detail)
	if err != nil {
		c.log.Warn("Failed to marshal product detail for cache", zap.Error(err), zap.String("product_id", id))
		return
	}
	c.cache.SetDetailAsync(id, raw)
}

func (c *CachedCatalogClient) invalidate(ctx context.Context, ids []string) {
	if err := c.cache.InvalidateProducts(ctx, ids); err != nil {
		c.log.Error("Failed to invalidate product cache", zap.Error(err), zap.Strings("product_ids", ids))
	}
}
