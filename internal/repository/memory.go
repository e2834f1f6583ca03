package repository

import (
	"context"
	"sync"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
)

var _ CallLogRepository = (*MemoryCallLogRepo)(nil)

// MemoryCallLogRepo is the in-process fallback used when no DATABASE_URL is
// configured. It keeps a bounded window of recent entries.
type MemoryCallLogRepo struct {
	mu      sync.Mutex
	entries []domain.CallLogEntry
	nextID  int64
	cap     int
}

func NewMemoryCallLogRepo() *MemoryCallLogRepo {
	return &MemoryCallLogRepo{cap: 1000, nextID: 1}
}

func (r *MemoryCallLogRepo) Insert(ctx context.Context, entry domain.CallLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
	return nil
}

func (r *MemoryCallLogRepo) ListRecent(ctx context.Context, tenant string, limit int) ([]domain.CallLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CallLogEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].Tenant == tenant {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}
