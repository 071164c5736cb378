package httpapi

import (
	"net/http"

	"dialer-platform/internal/auth"
	"dialer-platform/internal/ledger"
	"dialer-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Admin-only handlers. Routes must be guarded with rbac.RequireAnyRole; these
// handlers additionally record audit events for every state change.

type adminManualCreditRequest struct {
	AccountID string `json:"account_id"`

	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AdminManualCredit tops up an account balance. The target account comes from
// the request body, not the caller's token; admins credit other accounts.
func (h Handlers) AdminManualCredit(c *gin.Context) {
	actorUserID, _ := auth.UserID(c.Request.Context())
	actorRole, _ := auth.Role(c.Request.Context())

	var req adminManualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AccountID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "account_id required"})
		return
	}

	_, bal, err := h.Ledger.Credit(c.Request.Context(), req.AccountID, ledger.CreditRequest{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		ExternalRef:    "admin_manual_credit",
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if h.Audit != nil {
		if err := h.Audit.LogAdminCredit(c.Request.Context(), req.AccountID, actorUserID, actorRole, req.Reason); err != nil {
			logger.From(c.Request.Context()).Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, bal)
}

type blocklistEditRequest struct {
	Number string `json:"number"`
}

func (h Handlers) AdminBlocklistAdd(c *gin.Context) {
	h.blocklistEdit(c, "add")
}

func (h Handlers) AdminBlocklistRemove(c *gin.Context) {
	h.blocklistEdit(c, "remove")
}

func (h Handlers) blocklistEdit(c *gin.Context, action string) {
	actorUserID, _ := auth.UserID(c.Request.Context())
	actorRole, _ := auth.Role(c.Request.Context())

	var req blocklistEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var err error
	switch action {
	case "add":
		err = h.Blocklist.Add(c.Request.Context(), req.Number)
	case "remove":
		err = h.Blocklist.Remove(c.Request.Context(), req.Number)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	if h.Audit != nil {
		if err := h.Audit.LogBlocklistEdit(c.Request.Context(), actorUserID, actorRole, req.Number, action); err != nil {
			logger.From(c.Request.Context()).Warn("audit append failed", "err", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) AdminBlocklistList(c *gin.Context) {
	numbers, err := h.Blocklist.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"numbers": numbers})
}

type globalWordsRequest struct {
	Words []string `json:"words"`
}

// AdminSetGlobalWords replaces the platform-wide forbidden wordlist applied
// on top of every campaign's own list.
func (h Handlers) AdminSetGlobalWords(c *gin.Context) {
	if h.Moderation == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "moderation not configured"})
		return
	}
	var req globalWordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h.Moderation.SetGlobalWords(req.Words)
	c.Status(http.StatusNoContent)
}
