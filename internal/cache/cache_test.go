package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type sampleView struct {
	Name string `json:"name"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, time.Minute)
}

func TestViewRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	company := "nordics"
	require.NoError(t, c.SetView(ctx, "p1", &company, sampleView{Name: "Harbour"}))

	var got sampleView
	require.NoError(t, c.GetView(ctx, "p1", &company, &got))
	require.Equal(t, "Harbour", got.Name)
}

func TestMissAndScopeIsolation(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetView(ctx, "p1", nil, sampleView{Name: "Base"}))

	var got sampleView
	company := "nordics"
	err := c.GetView(ctx, "p1", &company, &got)
	require.True(t, errors.Is(err, ErrMiss))
}

func TestInvalidateProjectDropsAllScopes(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	company := "nordics"
	require.NoError(t, c.SetView(ctx, "p1", nil, sampleView{Name: "Base"}))
	require.NoError(t, c.SetView(ctx, "p1", &company, sampleView{Name: "Tenant"}))
	require.NoError(t, c.SetView(ctx, "p2", nil, sampleView{Name: "Other"}))

	require.NoError(t, c.InvalidateProject(ctx, "p1"))

	var got sampleView
	require.True(t, errors.Is(c.GetView(ctx, "p1", nil, &got), ErrMiss))
	require.True(t, errors.Is(c.GetView(ctx, "p1", &company, &got), ErrMiss))
	require.NoError(t, c.GetView(ctx, "p2", nil, &got))
}
