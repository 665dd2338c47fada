package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigOptions(t *testing.T) {
	opts, err := ClientConfig{Addr: "localhost:6379", DB: 2, PoolSize: 5}.options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 5, opts.PoolSize)
	assert.Nil(t, opts.TLSConfig)

	opts, err = ClientConfig{URL: "rediss://:secret@cache.internal:6380/3", Addr: "ignored:1"}.options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	_, err = ClientConfig{URL: "http://nope"}.options()
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "outspends:ab", outspendsKey("ab"))
	assert.Equal(t, "tx:ab", txKey("ab"))
	assert.Equal(t, "lock:analyze:ab", lockKey("analyze:ab"))
	assert.Equal(t, "ratelimit:explorer:blockstream.info", rateLimitKey("explorer:blockstream.info"))
}
