package roles

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	roles []Role
	calls int
}

func (s *countingStore) FindByCodes(ctx context.Context, codes []string) ([]Role, error) {
	s.calls++
	var out []Role
	for _, role := range s.roles {
		for _, code := range codes {
			if role.Code == code {
				out = append(out, role)
			}
		}
	}
	return out, nil
}

func newCacheFixture(t *testing.T) (*CachedStore, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &countingStore{roles: []Role{
		{Code: "DEV", Name: "Developer", Permissions: map[string]bool{"canViewData": true}},
		{Code: "QA", Name: "Quality Assurance", Permissions: map[string]bool{"canAddTestCase": true}},
	}}
	return NewCachedStore(store, client, time.Minute, nil), store, mr
}

func TestCachedStoreReadThrough(t *testing.T) {
	cache, store, _ := newCacheFixture(t)
	ctx := context.Background()

	roles, err := cache.FindByCodes(ctx, []string{"DEV"})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, 1, store.calls)

	// Second lookup is served from Redis.
	roles, err = cache.FindByCodes(ctx, []string{"DEV"})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, "Developer", roles[0].Name)
	require.True(t, roles[0].Permissions["canViewData"])
	require.Equal(t, 1, store.calls)
}

func TestCachedStoreKeyIsOrderInsensitive(t *testing.T) {
	cache, store, _ := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.FindByCodes(ctx, []string{"QA", "DEV"})
	require.NoError(t, err)
	_, err = cache.FindByCodes(ctx, []string{"DEV", "QA"})
	require.NoError(t, err)
	require.Equal(t, 1, store.calls)
}

func TestCachedStoreInvalidate(t *testing.T) {
	cache, store, _ := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.FindByCodes(ctx, []string{"DEV"})
	require.NoError(t, err)
	require.Equal(t, 1, store.calls)

	cache.Invalidate(ctx)

	_, err = cache.FindByCodes(ctx, []string{"DEV"})
	require.NoError(t, err)
	require.Equal(t, 2, store.calls)
}

func TestCachedStoreExpiry(t *testing.T) {
	cache, store, mr := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.FindByCodes(ctx, []string{"DEV"})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.FindByCodes(ctx, []string{"DEV"})
	require.NoError(t, err)
	require.Equal(t, 2, store.calls)
}

func TestCachedStoreRedisDownFallsThrough(t *testing.T) {
	cache, store, mr := newCacheFixture(t)
	ctx := context.Background()
	mr.Close()

	roles, err := cache.FindByCodes(ctx, []string{"DEV"})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, 1, store.calls)
}

func TestCachedStoreNilClientDelegates(t *testing.T) {
	store := &countingStore{roles: []Role{{Code: "DEV"}}}
	cache := NewCachedStore(store, nil, time.Minute, nil)

	_, err := cache.FindByCodes(context.Background(), []string{"DEV"})
	require.NoError(t, err)
	_, err = cache.FindByCodes(context.Background(), []string{"DEV"})
	require.NoError(t, err)
	require.Equal(t, 2, store.calls)
}
