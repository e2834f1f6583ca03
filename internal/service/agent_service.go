package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/config"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/dispatch"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/repository"
)

// AgentContext is the context block assembled for one language-model call.
type AgentContext struct {
	SessionID   string             `json:"session_id"`
	Tenant      string             `json:"tenant"`
	Reservation domain.Reservation `json:"reservation"`
	Found       bool               `json:"found"`
	Note        string             `json:"note,omitempty"`
	Accounts    []domain.Account   `json:"accounts"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// AgentService composes the dispatch caches and lookup into the operations
// the call-taking agent consumes.
type AgentService struct {
	cfg      config.Config
	lookup   *dispatch.Lookup
	accounts *dispatch.AccountCache
	sessions repository.SessionStore
	callLog  repository.CallLogRepository
	node     *snowflake.Node
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAgentService wires dependencies.
func NewAgentService(cfg config.Config, lookup *dispatch.Lookup, accounts *dispatch.AccountCache, sessions repository.SessionStore, callLog repository.CallLogRepository, node *snowflake.Node, logger *zap.Logger) *AgentService {
	return &AgentService{
		cfg:      cfg,
		lookup:   lookup,
		accounts: accounts,
		sessions: sessions,
		callLog:  callLog,
		node:     node,
		logger:   logger,
		tracer:   otel.Tracer("github.com/Hkhorsha1359/KoachCalltakerAgent/internal/service"),
	}
}

// LookupReservation resolves the caller's reservation, records an audit row,
// and opens a call session holding the result.
func (s *AgentService) LookupReservation(ctx context.Context, tenant, phone string) domain.CallSession {
	ctx, span := s.tracer.Start(ctx, "AgentService.LookupReservation")
	defer span.End()

	start := time.Now()
	result := s.lookup.Lookup(ctx, s.cfg.DispatchBaseURL, tenant, s.cfg.DispatchPrincipal, s.cfg.DispatchSharedSecret, phone)

	session := domain.CallSession{
		ID:        s.node.Generate().String(),
		Tenant:    tenant,
		Phone:     phone,
		Result:    result,
		CreatedAt: start.UTC(),
	}

	// Audit and session persistence are best effort; the caller still gets
	// the lookup result when either fails.
	if err := s.callLog.Insert(ctx, domain.CallLogEntry{
		Tenant:     tenant,
		Phone:      maskPhone(phone),
		Found:      result.Found,
		Note:       result.Note,
		DurationMS: time.Since(start).Milliseconds(),
	}); err != nil {
		span.RecordError(err)
		s.logger.Warn("call log insert failed", zap.String("tenant", tenant), zap.Error(err))
	}

	if err := s.sessions.SaveSession(ctx, session, s.cfg.SessionTTL); err != nil {
		span.RecordError(err)
		s.logger.Warn("session save failed", zap.String("session_id", session.ID), zap.Error(err))
	}

	return session
}

// Accounts returns the cached account list for the tenant.
func (s *AgentService) Accounts(ctx context.Context, tenant string) []domain.Account {
	ctx, span := s.tracer.Start(ctx, "AgentService.Accounts")
	defer span.End()
	return s.accounts.Get(ctx, s.cfg.DispatchBaseURL, tenant, s.cfg.DispatchPrincipal, s.cfg.DispatchSharedSecret)
}

// InvalidateAccounts drops one tenant's account entry, or every entry when
// tenant is empty.
func (s *AgentService) InvalidateAccounts(tenant string) {
	if strings.TrimSpace(tenant) == "" {
		s.accounts.InvalidateAll()
		s.logger.Info("account cache cleared")
		return
	}
	s.accounts.Invalidate(tenant)
	s.logger.Info("account cache invalidated", zap.String("tenant", tenant))
}

// BuildAgentContext assembles the prompt context block for a call session.
func (s *AgentService) BuildAgentContext(ctx context.Context, sessionID string) (*AgentContext, error) {
	ctx, span := s.tracer.Start(ctx, "AgentService.BuildAgentContext")
	defer span.End()

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	return &AgentContext{
		SessionID:   session.ID,
		Tenant:      session.Tenant,
		Reservation: session.Result.Reservation,
		Found:       session.Result.Found,
		Note:        session.Result.Note,
		Accounts:    s.Accounts(ctx, session.Tenant),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ModelReplyText extracts the assistant-visible text from a raw model
// response document.
func (s *AgentService) ModelReplyText(raw []byte) string {
	return dispatch.ExtractText(raw)
}

// RecentCalls lists the latest audit rows for a tenant.
func (s *AgentService) RecentCalls(ctx context.Context, tenant string, limit int) ([]domain.CallLogEntry, error) {
	return s.callLog.ListRecent(ctx, tenant, limit)
}

// maskPhone keeps only the trailing digits so audit rows never hold a full
// caller number.
func maskPhone(phone string) string {
	cleaned := strings.TrimSpace(phone)
	if len(cleaned) <= 4 {
		return "****"
	}
	return "****" + cleaned[len(cleaned)-4:]
}
