package cache

import (
	"testing"

	"clinic-booking/pkg/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedisDisabled(t *testing.T) {
	client, err := InitRedis(utils.RedisConfig{})
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitRedisPing(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := InitRedis(utils.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()
}

func TestInitRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := InitRedis(utils.RedisConfig{Addr: addr})
	assert.Error(t, err)
	assert.Nil(t, client)
}
