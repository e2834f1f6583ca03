package dispatch_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/dispatch"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/tenant"
)

func newTokenCache(client *http.Client, ttl time.Duration) *dispatch.TokenCache {
	resolver := tenant.NewResolver(tenant.DefaultAliases())
	return dispatch.NewTokenCache(client, resolver, ttl, zap.NewNop())
}

func newAuthServer(t *testing.T, calls *atomic.Int64, delay time.Duration, respond func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/login/authenticate", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		require.NotEmpty(t, payload["Username"])
		require.NotEmpty(t, payload["Password"])
		require.NotEmpty(t, payload["TenantId"])

		calls.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		respond(w)
	}))
}

func respondJSONToken(token string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

func TestAcquireSingleFlight(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, 50*time.Millisecond, respondJSONToken("tok-1"))
	defer srv.Close()

	cache := newTokenCache(srv.Client(), time.Minute)

	const workers = 8
	tokens := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = cache.Acquire(context.Background(), srv.URL, "Koach", "ops@koach.example", "secret")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "tok-1", tokens[i])
	}
	require.Equal(t, int64(1), calls.Load())
}

func TestAcquireCachesWithinTTL(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, 0, respondJSONToken("tok-1"))
	defer srv.Close()

	cache := newTokenCache(srv.Client(), time.Minute)

	for i := 0; i < 3; i++ {
		token, err := cache.Acquire(context.Background(), srv.URL, "Koach", "ops@koach.example", "secret")
		require.NoError(t, err)
		require.Equal(t, "tok-1", token)
	}
	require.Equal(t, int64(1), calls.Load())
}

func TestAcquireRefreshesAfterExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, 0, respondJSONToken("tok-1"))
	defer srv.Close()

	cache := newTokenCache(srv.Client(), 20*time.Millisecond)

	_, err := cache.Acquire(context.Background(), srv.URL, "Koach", "ops@koach.example", "secret")
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())

	time.Sleep(40 * time.Millisecond)

	_, err = cache.Acquire(context.Background(), srv.URL, "Koach", "ops@koach.example", "secret")
	require.NoError(t, err)
	require.Equal(t, int64(2), calls.Load())

	// Fresh entry again: no further upstream call.
	_, err = cache.Acquire(context.Background(), srv.URL, "Koach", "ops@koach.example", "secret")
	require.NoError(t, err)
	require.Equal(t, int64(2), calls.Load())
}

func TestAcquireKeyIsCaseInsensitive(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, 0, respondJSONToken("tok-1"))
	defer srv.Close()

	cache := newTokenCache(srv.Client(), time.Minute)

	_, err := cache.Acquire(context.Background(), srv.URL, "KOACH", "Ops@Koach.example", "secret")
	require.NoError(t, err)
	_, err = cache.Acquire(context.Background(), srv.URL, "koach", "ops@koach.example", "secret")
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())
}

func TestAcquireRawTokenBody(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, 0, func(w http.ResponseWriter) {
		_, _ = w.Write([]byte("aaa.bbb.ccc"))
	})
	defer srv.Close()

	cache := newTokenCache(srv.Client(), time.Minute)

	token, err := cache.Acquire(context.Background(), srv.URL, "Koach", "ops@koach.example", "secret")
	require.NoError(t, err)
	require.Equal(t, "aaa.bbb.ccc", token)
}

func TestAcquireNestedTokenField(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, 0, func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"data":{"access_token":"tok-nested"}}`))
	})
	defer srv.Close()

	cache := newTokenCache(srv.Client(), time.Minute)

	token, err := cache.Acquire(context.Background(), srv.URL, "Koach", "ops@koach.example", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok-nested", token)
}

func TestAcquireRequiresInputs(t *testing.T) {
	cache := newTokenCache(nil, time.Minute)

	cases := []struct {
		name                      string
		tenant, principal, secret string
	}{
		{"missing tenant", "", "ops@koach.example", "secret"},
		{"missing principal", "Koach", "", "secret"},
		{"missing secret", "Koach", "ops@koach.example", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := cache.Acquire(context.Background(), "http://dispatch.local", tc.tenant, tc.principal, tc.secret)
			var authErr *dispatch.AuthError
			require.ErrorAs(t, err, &authErr)
		})
	}
}

func TestAcquireUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cache := newTokenCache(srv.Client(), time.Minute)

	_, err := cache.Acquire(context.Background(), srv.URL, "Koach", "ops@koach.example", "super-secret-value")
	var authErr *dispatch.AuthError
	require.ErrorAs(t, err, &authErr)
	require.NotContains(t, err.Error(), "super-secret-value")
}

func TestAcquireUnparseableToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a token"))
	}))
	defer srv.Close()

	cache := newTokenCache(srv.Client(), time.Minute)

	_, err := cache.Acquire(context.Background(), srv.URL, "Koach", "ops@koach.example", "secret")
	var authErr *dispatch.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestAcquireBaseURLWithAPISuffix(t *testing.T) {
	var sawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawPath = r.URL.Path
		respondJSONToken("tok-1")(w)
	}))
	defer srv.Close()

	cache := newTokenCache(srv.Client(), time.Minute)

	_, err := cache.Acquire(context.Background(), srv.URL+"/api", "Koach", "ops@koach.example", "secret")
	require.NoError(t, err)
	require.Equal(t, "/api/login/authenticate", sawPath)
}
