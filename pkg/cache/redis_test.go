package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juan-barragan/oraccio/pkg/config"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "oraccio:result:42", Key("result", "42"))
	assert.Equal(t, "oraccio:result", Key("result", " ", ""))
	assert.Equal(t, "oraccio", Key())
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, err := NewRedis(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
