package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/tenant"
)

// DefaultTokenTTL is the soft refresh cadence for cached bearer tokens. It
// is decoupled from the token's real upstream lifetime, which the backend
// does not document.
const DefaultTokenTTL = 20 * time.Minute

// AuthError reports an authentication failure. The reason never contains
// the shared secret or an issued token.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	return "authenticate: " + e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

type tokenEntry struct {
	token     string
	expiresAt time.Time
}

// TokenCache acquires and caches one bearer token per (tenant, principal)
// pair. Concurrent refreshes for the same key are single-flighted: the
// per-key mutex admits one refresher, and waiters re-check the cache under
// the lock so they reuse its result instead of issuing their own call.
type TokenCache struct {
	client  HTTPDoer
	tenants *tenant.Resolver
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]tokenEntry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewTokenCache wires the credential cache. A nil client falls back to the
// default HTTP client; ttl <= 0 falls back to DefaultTokenTTL.
func NewTokenCache(client HTTPDoer, tenants *tenant.Resolver, ttl time.Duration, logger *zap.Logger) *TokenCache {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenCache{
		client:  client,
		tenants: tenants,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]tokenEntry),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Acquire returns a live bearer token for the tenant/principal pair,
// performing at most one authentication round-trip per refresh.
func (c *TokenCache) Acquire(ctx context.Context, baseURL, tenantSlug, principal, secret string) (string, error) {
	if strings.TrimSpace(tenantSlug) == "" {
		return "", &AuthError{Reason: "tenant required"}
	}
	if strings.TrimSpace(principal) == "" {
		return "", &AuthError{Reason: "principal required"}
	}
	if strings.TrimSpace(secret) == "" {
		return "", &AuthError{Reason: "shared secret required"}
	}

	canonical := c.tenants.Canonical(tenantSlug)
	key := cacheKey(canonical, principal)

	if token, ok := c.live(key); ok {
		return token, nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	if token, ok := c.live(key); ok {
		return token, nil
	}

	token, err := c.refresh(ctx, baseURL, canonical, principal, secret)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = tokenEntry{token: token, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	c.logger.Debug("dispatch token refreshed",
		zap.String("tenant", canonical),
		zap.String("principal", principal),
		zap.Duration("ttl", c.ttl))

	return token, nil
}

func (c *TokenCache) live(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.token, true
}

// keyLock returns the refresh gate for a key, creating it lazily. Locks are
// never removed; the key space is bounded by configured tenants and
// principals.
func (c *TokenCache) keyLock(key string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

func (c *TokenCache) refresh(ctx context.Context, baseURL, canonical, principal, secret string) (string, error) {
	// Fixed external contract: field names, casing, and the /api prefix
	// handling must not change.
	payload, err := json.Marshal(map[string]string{
		"Username": principal,
		"Password": secret,
		"TenantId": canonical,
	})
	if err != nil {
		return "", &AuthError{Reason: "encode credentials", Err: err}
	}

	body, err := send(ctx, c.client, http.MethodPost, authURL(baseURL), map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}, payload)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return "", &AuthError{Reason: fmt.Sprintf("login rejected with status %d", statusErr.Status), Err: statusErr}
		}
		return "", &AuthError{Reason: "login request failed", Err: err}
	}

	token, ok := extractToken(body)
	if !ok {
		return "", &AuthError{Reason: "no token in login response"}
	}
	return token, nil
}

func authURL(baseURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(strings.ToLower(trimmed), "/api") {
		return trimmed + "/login/authenticate"
	}
	return trimmed + "/api/login/authenticate"
}

// extractToken accepts either a raw token body (JWT-shaped, at least two
// dots) or a JSON document exposing the token under a known field name,
// possibly nested one level under data/result.
func extractToken(body []byte) (string, bool) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return "", false
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err == nil {
		if token := tokenField(doc); token != "" {
			return token, true
		}
		for _, key := range []string{"data", "Data", "result", "Result"} {
			if nested, ok := asMap(doc[key]); ok {
				if token := tokenField(nested); token != "" {
					return token, true
				}
			}
		}
		return "", false
	}

	candidate := strings.Trim(raw, `"`)
	if strings.Count(candidate, ".") >= 2 {
		return candidate, true
	}
	return "", false
}

// Some deployments return the token string directly under data/result;
// firstString ignores object values there, so wrapped payloads still fall
// through to the nested lookup.
func tokenField(doc map[string]any) string {
	return firstString(doc, "token", "Token", "access_token", "accessToken", "AccessToken", "jwt", "JWT", "data", "Data", "result", "Result")
}

func cacheKey(canonicalTenant, principal string) string {
	return strings.ToLower(canonicalTenant) + "::" + strings.ToLower(strings.TrimSpace(principal))
}
