package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("CATALOG_API_URL", "http://catalog:8080")
	t.Setenv("INSTANCE_ID", "instance-a")

	cfg, err := fromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8086", cfg.Port)
	assert.Equal(t, "instance-a", cfg.InstanceID)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTimeout)
	assert.Equal(t, 12, cfg.PageSize)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.False(t, cfg.UseSecrets)
}

func TestFromEnvRejectsUnparsableValues(t *testing.T) {
	t.Setenv("CATALOG_PAGE_SIZE", "twelve")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := fromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATALOG_PAGE_SIZE")
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
}

func TestValidate(t *testing.T) {
	t.Setenv("CATALOG_API_URL", "")
	t.Setenv("MEDIA_ORIGIN", "cdn.example.com")
	t.Setenv("CATALOG_CACHE_TIMEOUT", "0s")

	cfg, err := fromEnv()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATALOG_API_URL is required")
	assert.Contains(t, err.Error(), "MEDIA_ORIGIN")
	assert.Contains(t, err.Error(), "CATALOG_CACHE_TIMEOUT must be positive")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestApplySecretsOverridesOnlyReadableSecrets(t *testing.T) {
	cfg := &Config{JWTSecret: "from-env", RedisURL: "redis://env:6379"}

	ApplySecrets(context.Background(), cfg, fakeSecrets{SecretJWT: "from-secrets"})

	assert.Equal(t, "from-secrets", cfg.JWTSecret)
	assert.Equal(t, "redis://env:6379", cfg.RedisURL)
}
