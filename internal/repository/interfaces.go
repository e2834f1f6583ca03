package repository

import (
	"context"
	"time"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
)

// CallLogRepository persists one audit row per reservation lookup.
type CallLogRepository interface {
	Insert(ctx context.Context, entry domain.CallLogEntry) error
	ListRecent(ctx context.Context, tenant string, limit int) ([]domain.CallLogEntry, error)
}

// SessionStore keeps per-call context between telephony webhooks.
type SessionStore interface {
	SaveSession(ctx context.Context, session domain.CallSession, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (*domain.CallSession, error)
	DeleteSession(ctx context.Context, id string) error
}
