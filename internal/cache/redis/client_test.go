package redis

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigOptions(t *testing.T) {
	cfg := ClientConfig{
		Addr:       "cache.internal:6379",
		Password:   "s3cret",
		DB:         2,
		PoolSize:   16,
		MaxRetries: 3,
	}

	opts := cfg.options()
	assert.Equal(t, cfg.Addr, opts.Addr)
	assert.Equal(t, cfg.Password, opts.Password)
	assert.Equal(t, cfg.DB, opts.DB)
	assert.Equal(t, cfg.PoolSize, opts.PoolSize)
	assert.Equal(t, cfg.MaxRetries, opts.MaxRetries)
	assert.Nil(t, opts.TLSConfig)
}

func TestClientConfigOptionsTLS(t *testing.T) {
	cfg := ClientConfig{Addr: "cache.internal:6380", TLSEnabled: true}

	opts := cfg.options()
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), opts.TLSConfig.MinVersion)
}
