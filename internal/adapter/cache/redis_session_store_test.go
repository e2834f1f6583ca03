package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/adapter/cache"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
)

func newRedisStore(t *testing.T) (*cache.RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisSessionStore(client), mr
}

func TestRedisSessionRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	session := domain.CallSession{
		ID:     "1234567890",
		Tenant: "Koach",
		Phone:  "+15550001111",
		Result: domain.LookupResult{
			Found:       true,
			Reservation: domain.Reservation{ID: "R1", Status: "Assigned"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, store.SaveSession(ctx, session, time.Minute))

	loaded, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, session.Result, loaded.Result)
	require.Equal(t, session.Tenant, loaded.Tenant)
}

func TestRedisSessionMissingReturnsNil(t *testing.T) {
	store, _ := newRedisStore(t)

	loaded, err := store.GetSession(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRedisSessionExpires(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	session := domain.CallSession{ID: "exp-1", Tenant: "Koach"}
	require.NoError(t, store.SaveSession(ctx, session, time.Second))

	mr.FastForward(2 * time.Second)

	loaded, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRedisSessionDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	session := domain.CallSession{ID: "del-1", Tenant: "Koach"}
	require.NoError(t, store.SaveSession(ctx, session, time.Minute))
	require.NoError(t, store.DeleteSession(ctx, session.ID))

	loaded, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Nil(t, loaded)
}
