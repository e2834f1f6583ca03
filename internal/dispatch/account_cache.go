package dispatch

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/tenant"
)

// DefaultAccountTTL is the refresh cadence for the per-tenant account list.
const DefaultAccountTTL = 30 * time.Minute

type accountEntry struct {
	items     []domain.Account
	fetchedAt time.Time
	expiresAt time.Time
}

// AccountCache caches the voucher account list per tenant. Account data is
// a best-effort enrichment signal, so Get never returns an error: a failed
// refresh serves the previous non-empty entry, or an empty list when the
// tenant was never fetched.
type AccountCache struct {
	tokens  *TokenCache
	client  HTTPDoer
	tenants *tenant.Resolver
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]accountEntry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewAccountCache wires the account cache over the shared token cache.
func NewAccountCache(tokens *TokenCache, client HTTPDoer, tenants *tenant.Resolver, ttl time.Duration, logger *zap.Logger) *AccountCache {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if ttl <= 0 {
		ttl = DefaultAccountTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountCache{
		tokens:  tokens,
		client:  client,
		tenants: tenants,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]accountEntry),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Get returns the freshest available account list for the tenant. One
// refresher runs per tenant; concurrent callers wait on it and reuse its
// result.
func (c *AccountCache) Get(ctx context.Context, baseURL, tenantSlug, principal, secret string) []domain.Account {
	canonical := c.tenants.Canonical(tenantSlug)
	key := strings.ToLower(canonical)

	if items, ok := c.live(key); ok {
		return items
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if items, ok := c.live(key); ok {
		return items
	}

	items, err := c.fetch(ctx, baseURL, canonical, principal, secret)
	if err != nil {
		c.logger.Warn("account refresh failed, serving stale",
			zap.String("tenant", canonical),
			zap.Error(err))
		c.mu.RLock()
		prior, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && len(prior.items) > 0 {
			return prior.items
		}
		return []domain.Account{}
	}

	// A legitimately empty list is still fresh data and replaces the entry.
	now := c.now()
	c.mu.Lock()
	c.entries[key] = accountEntry{items: items, fetchedAt: now, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	c.logger.Debug("account list refreshed",
		zap.String("tenant", canonical),
		zap.Int("count", len(items)))

	return items
}

// Invalidate drops one tenant's entry. The per-tenant lock is retained.
func (c *AccountCache) Invalidate(tenantSlug string) {
	key := strings.ToLower(c.tenants.Canonical(tenantSlug))
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll clears every cached account list.
func (c *AccountCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]accountEntry)
	c.mu.Unlock()
}

func (c *AccountCache) live(key string) ([]domain.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.items, true
}

func (c *AccountCache) keyLock(key string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

func (c *AccountCache) fetch(ctx context.Context, baseURL, canonical, principal, secret string) ([]domain.Account, error) {
	token, err := c.tokens.Acquire(ctx, baseURL, canonical, principal, secret)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/Api/Voucher/GetAccounts"
	body, err := send(ctx, c.client, http.MethodGet, url, map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	}, nil)
	if err != nil {
		return nil, err
	}

	items, ok := itemsFromListPayload(body)
	if !ok {
		// Unparseable payload degrades to an empty fresh list.
		c.logger.Warn("unexpected account payload shape", zap.String("tenant", canonical))
		return []domain.Account{}, nil
	}

	accounts := make([]domain.Account, 0, len(items))
	for _, item := range items {
		doc, ok := asMap(item)
		if !ok {
			continue
		}
		account := mapAccount(doc)
		if account.ID == "" && account.Company == "" {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func mapAccount(doc map[string]any) domain.Account {
	return domain.Account{
		ID:           firstString(doc, "id", "Id", "ID", "accountId", "AccountId", "AccountID"),
		Company:      firstString(doc, "company", "Company", "companyName", "CompanyName", "name", "Name"),
		Abbreviation: firstString(doc, "abbreviation", "Abbreviation", "abbr", "Abbr", "code", "Code"),
	}
}
