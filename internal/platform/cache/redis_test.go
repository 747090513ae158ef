package cache

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPingsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	check := Health(client)
	assert.NoError(t, check(httptest.NewRequest("GET", "/healthz", nil)))

	mr.Close()
	assert.Error(t, check(httptest.NewRequest("GET", "/healthz", nil)))
}

func TestNewReturnsClientWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := New(context.Background(), addr)
	require.Error(t, err)
	require.NotNil(t, client)
	_ = client.Close()

	assert.Error(t, Health(nil)(httptest.NewRequest("GET", "/healthz", nil)))
}
