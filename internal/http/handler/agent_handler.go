package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/http/middleware"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/service"
)

const maxModelReplyBytes = 1 << 20

// AgentHandler exposes the dispatch bridge operations over HTTP.
type AgentHandler struct {
	Agent *service.AgentService
}

// NewAgentHandler creates the handler set.
func NewAgentHandler(agent *service.AgentService) *AgentHandler {
	return &AgentHandler{Agent: agent}
}

// LookupReservation resolves the caller's reservation and opens a session.
func (h *AgentHandler) LookupReservation(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tenant", "error_description": "Tenant not resolved."})
		return
	}
	phone := strings.TrimSpace(c.Query("phone"))

	session := h.Agent.LookupReservation(c.Request.Context(), tenant, phone)
	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"result":     session.Result,
	})
}

// Accounts returns the cached voucher account list for the tenant.
func (h *AgentHandler) Accounts(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tenant", "error_description": "Tenant not resolved."})
		return
	}
	accounts := h.Agent.Accounts(c.Request.Context(), tenant)
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// InvalidateAccounts drops cached account data for one tenant or all.
func (h *AgentHandler) InvalidateAccounts(c *gin.Context) {
	var req struct {
		Tenant string `json:"tenant"`
		All    bool   `json:"all"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid invalidation request."})
		return
	}
	if !req.All && strings.TrimSpace(req.Tenant) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Provide a tenant or set all."})
		return
	}
	if req.All {
		h.Agent.InvalidateAccounts("")
	} else {
		h.Agent.InvalidateAccounts(req.Tenant)
	}
	c.Status(http.StatusNoContent)
}

// AgentContext assembles the prompt context block for a call session.
func (h *AgentHandler) AgentContext(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "session_id required."})
		return
	}

	agentCtx, err := h.Agent.BuildAgentContext(c.Request.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found", "error_description": "Unknown or expired session."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
		return
	}
	c.JSON(http.StatusOK, agentCtx)
}

// ModelReply extracts assistant-visible text from a raw model response.
func (h *AgentHandler) ModelReply(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxModelReplyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Unreadable body."})
		return
	}
	text := h.Agent.ModelReplyText(raw)
	if text == "" {
		c.JSON(http.StatusOK, gin.H{"text": "", "note": "no text found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// RecentCalls lists the latest audit rows for the tenant.
func (h *AgentHandler) RecentCalls(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tenant", "error_description": "Tenant not resolved."})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.Agent.RecentCalls(c.Request.Context(), tenant, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": entries})
}
