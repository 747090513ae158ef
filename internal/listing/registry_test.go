package listing

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryScopesViewsToOwner(t *testing.T) {
	reg := NewRegistry(time.Minute, nil)
	c := newTestController(t, newFakeFetcher(func(int, url.Values) (string, error) { return pageJSON(0, 1, 0, 0), nil }), nil)
	id := reg.Open("session-a", c)

	d, err := reg.Lookup("session-a", id)
	require.NoError(t, err)
	assert.Equal(t, "test", d.Screen())

	_, err = reg.Lookup("session-b", id)
	assert.ErrorIs(t, err, ErrViewNotFound)
	assert.ErrorIs(t, reg.Close("session-b", id), ErrViewNotFound)

	require.NoError(t, reg.Close("session-a", id))
	assert.Equal(t, 0, reg.Len())
	_, err = c.Load(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestRegistrySweepDisposesIdleViews(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(10*time.Minute, nil)
	reg.WithNow(func() time.Time { return now })

	fetch := newFakeFetcher(func(int, url.Values) (string, error) { return pageJSON(0, 1, 0, 0), nil })
	idle := newTestController(t, fetch, nil)
	active := newTestController(t, fetch, nil)
	reg.Open("s", idle)
	activeID := reg.Open("s", active)

	now = now.Add(8 * time.Minute)
	_, err := reg.Lookup("s", activeID)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, reg.Sweep())
	assert.Equal(t, 1, reg.Len())

	_, err = idle.Load(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = active.Load(context.Background(), 1)
	assert.NoError(t, err)
}

func TestRegistryRunShutsDownOnCancel(t *testing.T) {
	reg := NewRegistry(time.Minute, nil)
	c := newTestController(t, newFakeFetcher(func(int, url.Values) (string, error) { return pageJSON(0, 1, 0, 0), nil }), nil)
	reg.Open("s", c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done
	assert.Equal(t, 0, reg.Len())
}
