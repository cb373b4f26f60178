package cache

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: "localhost:0",
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, errors.New("redis disabled in tests")
		},
		MaxRetries: -1,
	})
}

func TestReadsDegradeToMissesWhenRedisIsDown(t *testing.T) {
	cm := NewManager(newTestRedisClient(), 0, nil)
	ctx := context.Background()

	_, hit := cm.GetDetail(ctx, "p1")
	assert.False(t, hit)
	assert.Empty(t, cm.GetItems(ctx, []string{"p1", "p2"}))
	_, version, ok := cm.GetList(ctx, url.Values{"page": {"1"}})
	assert.False(t, ok)
	assert.Zero(t, version)
}

func TestInvalidateReportsRedisFailure(t *testing.T) {
	cm := NewManager(newTestRedisClient(), 0, nil)
	err := cm.InvalidateProducts(context.Background(), []string{"p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to invalidate cache")
}

func TestListKeyIsOrderIndependent(t *testing.T) {
	a := url.Values{}
	a.Set("page", "2")
	a.Set("category", "motors")
	b := url.Values{}
	b.Set("category", "motors")
	b.Set("page", "2")

	assert.Equal(t, listKey(3, a), listKey(3, b))
	assert.NotEqual(t, listKey(3, a), listKey(4, a))
	assert.Equal(t, "products:v:3:category=motors&page=2", listKey(3, a))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)

	c, err := NewClient("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
