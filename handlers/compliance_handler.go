package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"clausecheck-backend/compliance"
	"clausecheck-backend/llm"
	"clausecheck-backend/models"

	"github.com/gin-gonic/gin"
)

const maxClausesPerCheck = 200

// ComplianceChecker runs the compliance pipeline synchronously
type ComplianceChecker interface {
	EnsureCompliance(ctx context.Context, clauses []models.Clause) (*models.ComplianceResult, error)
}

// ComplianceHandler serves direct clause checks and provider listings
type ComplianceHandler struct {
	checker   ComplianceChecker
	providers []llm.ProviderInfo
}

// NewComplianceHandler creates a new compliance handler
func NewComplianceHandler(checker ComplianceChecker, providers []llm.ProviderInfo) *ComplianceHandler {
	return &ComplianceHandler{checker: checker, providers: providers}
}

// CheckRequest is the body of POST /api/compliance/check
type CheckRequest struct {
	Clauses []models.Clause `json:"clauses" binding:"required"`
}

// Check handles POST /api/compliance/check
func (h *ComplianceHandler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if len(req.Clauses) > maxClausesPerCheck {
		respondError(c, http.StatusBadRequest, "TOO_MANY_CLAUSES", "At most 200 clauses can be checked per request")
		return
	}
	for i := range req.Clauses {
		if strings.TrimSpace(req.Clauses[i].Text) == "" {
			respondError(c, http.StatusBadRequest, "INVALID_CLAUSE", "Every clause needs text")
			return
		}
	}

	result, err := h.checker.EnsureCompliance(c.Request.Context(), req.Clauses)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			respondError(c, http.StatusRequestTimeout, "CANCELLED", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "CHECK_FAILED", err.Error())
		return
	}
	respondOK(c, http.StatusOK, result)
}

// Providers handles GET /api/llm/providers
func (h *ComplianceHandler) Providers(c *gin.Context) {
	respondOK(c, http.StatusOK, gin.H{"providers": h.providers})
}

// ChatService is the subset of compliance.ChatAgent used over HTTP
type ChatService interface {
	Chat(ctx context.Context, req compliance.ChatRequest) (*models.ChatResponse, error)
	Summary(ctx context.Context, sessionID string) (*models.ConversationSummary, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// ChatHandler serves the conversational endpoints
type ChatHandler struct {
	agent ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(agent ChatService) *ChatHandler {
	return &ChatHandler{agent: agent}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req compliance.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	resp, err := h.agent.Chat(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, compliance.ErrEmptyMessage) {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "CHAT_FAILED", err.Error())
		return
	}
	respondOK(c, http.StatusOK, resp)
}

// Summary handles GET /api/chat/:session_id
func (h *ChatHandler) Summary(c *gin.Context) {
	summary, err := h.agent.Summary(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, compliance.ErrSessionNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Session not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "RETRIEVAL_FAILED", err.Error())
		return
	}
	respondOK(c, http.StatusOK, summary)
}

// Clear handles DELETE /api/chat/:session_id
func (h *ChatHandler) Clear(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.agent.ClearSession(c.Request.Context(), sessionID); err != nil {
		respondError(c, http.StatusInternalServerError, "CLEAR_FAILED", err.Error())
		return
	}
	respondOK(c, http.StatusOK, gin.H{"session_id": sessionID, "cleared": true})
}
