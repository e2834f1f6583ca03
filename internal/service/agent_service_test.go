package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cacheadapter "github.com/Hkhorsha1359/KoachCalltakerAgent/internal/adapter/cache"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/config"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/dispatch"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/repository"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/service"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/tenant"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login/authenticate":
			_, _ = w.Write([]byte(`{"token":"tok-1"}`))
		case "/Api/Trip/GetLastReservationStatusByPhone":
			_, _ = w.Write([]byte(`{"Rid":"R1","Status":"Assigned","PickupAddress":"12 Main St"}`))
		case "/Trip/GetReservationByRid/R1":
			_, _ = w.Write([]byte(`{"Status":"Enroute","PassengerName":"Dana Reyes"}`))
		case "/Api/Voucher/GetAccounts":
			_, _ = w.Write([]byte(`[{"Id":"7","Company":"Acme Cabs"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAgent(t *testing.T, srv *httptest.Server) (*service.AgentService, repository.SessionStore, *repository.MemoryCallLogRepo) {
	t.Helper()
	cfg := config.Config{
		DispatchBaseURL:      srv.URL,
		DispatchPrincipal:    "ops@koach.example",
		DispatchSharedSecret: "secret",
		SessionTTL:           time.Minute,
	}
	resolver := tenant.NewResolver(tenant.DefaultAliases())
	tokens := dispatch.NewTokenCache(srv.Client(), resolver, time.Minute, zap.NewNop())
	accounts := dispatch.NewAccountCache(tokens, srv.Client(), resolver, time.Minute, zap.NewNop())
	lookup := dispatch.NewLookup(tokens, srv.Client(), 0, zap.NewNop())
	sessions := cacheadapter.NewMemorySessionStore()
	callLog := repository.NewMemoryCallLogRepo()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	agent := service.NewAgentService(cfg, lookup, accounts, sessions, callLog, node, zap.NewNop())
	return agent, sessions, callLog
}

func TestLookupReservationOpensSessionAndAudits(t *testing.T) {
	srv := newUpstream(t)
	agent, sessions, callLog := newAgent(t, srv)
	ctx := context.Background()

	session := agent.LookupReservation(ctx, "Koach", "+15550001111")
	require.NotEmpty(t, session.ID)
	require.True(t, session.Result.Found)
	require.Equal(t, "Enroute", session.Result.Reservation.Status)
	require.Equal(t, "Dana Reyes", session.Result.Reservation.PassengerName)

	stored, err := sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, session.Result, stored.Result)

	entries, err := callLog.ListRecent(ctx, "Koach", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Found)
	require.Equal(t, "****1111", entries[0].Phone)
}

func TestBuildAgentContext(t *testing.T) {
	srv := newUpstream(t)
	agent, _, _ := newAgent(t, srv)
	ctx := context.Background()

	session := agent.LookupReservation(ctx, "Koach", "+15550001111")

	agentCtx, err := agent.BuildAgentContext(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, agentCtx.Found)
	require.Equal(t, "R1", agentCtx.Reservation.ID)
	require.Equal(t, []domain.Account{{ID: "7", Company: "Acme Cabs"}}, agentCtx.Accounts)
}

func TestBuildAgentContextUnknownSession(t *testing.T) {
	srv := newUpstream(t)
	agent, _, _ := newAgent(t, srv)

	_, err := agent.BuildAgentContext(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestModelReplyText(t *testing.T) {
	srv := newUpstream(t)
	agent, _, _ := newAgent(t, srv)

	raw := []byte(`{"output":[{"content":[{"type":"output_text","text":"On the way."}]}]}`)
	require.Equal(t, "On the way.", agent.ModelReplyText(raw))
	require.Empty(t, agent.ModelReplyText([]byte(`{}`)))
}
