package httpapi

import (
	"errors"
	"net/http"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/config"
	"dialer-platform/internal/dispatch"
	"dialer-platform/internal/ledger"
	"dialer-platform/internal/moderation"
	"dialer-platform/internal/numberpolicy"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/reporting"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth       *auth.Manager
	Ledger     *ledger.Service
	Campaigns  *campaign.Service
	Dispatcher *dispatch.Service
	Reports    *reporting.Service
	Blocklist  numberpolicy.Blocklist
	Moderation *moderation.Service

	// Audit is best-effort; nil disables it. Write paths never fail on a
	// missing audit record.
	Audit *audit.Service

	// Redis and DispatchCfg back the per-campaign tick concurrency cap.
	// A nil Redis disables the cap (single-process deployments).
	Redis       *redis.Client
	DispatchCfg config.DispatchConfig
}

// writeError maps service sentinels to HTTP statuses. Unknown errors become
// 500 without leaking internals.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, campaign.ErrInvalidArgument),
		errors.Is(err, dispatch.ErrInvalidArgument),
		errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest),
		errors.Is(err, numberpolicy.ErrInvalidNumber):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, campaign.ErrMessageFlagged),
		errors.Is(err, campaign.ErrNumberBlocked):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrCampaignExhausted):
		c.AbortWithStatusJSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrCampaignNotActive),
		errors.Is(err, campaign.ErrConflict),
		errors.Is(err, ledger.ErrCurrencyMismatch):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, campaign.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		logger.From(c.Request.Context()).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func mustAccountID(c *gin.Context) (string, bool) {
	aid, err := auth.AccountID(c.Request.Context())
	if err != nil || aid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return "", false
	}
	return aid, true
}

// --- Auth ---

type loginRequest struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.AccountID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, account_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.AccountID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Role         string `json:"role"`
}

// Refresh exchanges a refresh token for a new pair. The role is re-asserted
// by the caller; refresh tokens intentionally do not carry it.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.RefreshToken == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token, role required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), claims.UserID, claims.AccountID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Campaigns ---

func (h Handlers) CreateCampaign(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	var req campaign.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	camp, contacts, err := h.Campaigns.Create(c.Request.Context(), accountID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"campaign": camp, "contacts": contacts})
}

func (h Handlers) GetCampaign(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	camp, err := h.Campaigns.Get(c.Request.Context(), accountID, c.Param("campaign_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, camp)
}

func (h Handlers) ListCampaigns(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	out, err := h.Campaigns.List(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": out})
}

func (h Handlers) StartCampaign(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	camp, err := h.Campaigns.Start(c.Request.Context(), accountID, c.Param("campaign_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, camp)
}

func (h Handlers) PauseCampaign(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	camp, err := h.Campaigns.Pause(c.Request.Context(), accountID, c.Param("campaign_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, camp)
}

func (h Handlers) CampaignProgress(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	counts, err := h.Campaigns.Progress(c.Request.Context(), accountID, c.Param("campaign_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

type recordOutcomeRequest struct {
	Outcome string `json:"outcome"`
}

func (h Handlers) RecordOutcome(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	var req recordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	err := h.Campaigns.RecordOutcome(
		c.Request.Context(),
		accountID,
		c.Param("campaign_id"),
		c.Param("contact_id"),
		campaign.ContactStatus(req.Outcome),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Dispatch ---

type dispatchTickRequest struct {
	Count int `json:"count"`

	// Token lets schedulers retry a failed tick without double-charging.
	// Empty means the server generates one.
	Token string `json:"token,omitempty"`
}

// DispatchTick releases the next batch of contacts for a campaign.
// A per-campaign concurrency cap rejects overlapping ticks with 429; the
// underlying claim is conditional either way, the cap just keeps schedulers
// honest.
func (h Handlers) DispatchTick(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	campaignID := c.Param("campaign_id")

	var req dispatchTickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if h.Redis != nil {
		key := "tick:" + campaignID
		acquired, err := utils.AcquireTickSlot(c.Request.Context(), h.Redis, key, h.DispatchCfg.TickConcurrency, h.DispatchCfg.TickCapTTL)
		if err != nil {
			logger.From(c.Request.Context()).Error("tick slot acquire failed", "campaign_id", campaignID, "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "dispatch temporarily unavailable"})
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "dispatch tick already in progress"})
			return
		}
		defer func() {
			if err := utils.ReleaseTickSlot(c.Request.Context(), h.Redis, key); err != nil {
				logger.From(c.Request.Context()).Warn("tick slot release failed", "campaign_id", campaignID, "err", err)
			}
		}()
	}

	batch, err := h.Dispatcher.RequestBatch(c.Request.Context(), accountID, campaignID, req.Count, req.Token)
	if err != nil {
		if errors.Is(err, dispatch.ErrCampaignExhausted) {
			c.AbortWithStatusJSON(http.StatusGone, gin.H{
				"error":         err.Error(),
				"balance_minor": batch.BalanceMinor,
			})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// --- Balance ---

func (h Handlers) GetBalance(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	bal, err := h.Ledger.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

// --- Reports ---

func (h Handlers) CampaignSummary(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	out, err := h.Reports.CampaignSummary(c.Request.Context(), reporting.CampaignSummaryRequest{
		AccountID:  accountID,
		CampaignID: c.Param("campaign_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type spendSummaryQuery struct {
	From       time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	CampaignID string    `form:"campaign_id"`
	Currency   string    `form:"currency"`
}

func (h Handlers) SpendSummary(c *gin.Context) {
	accountID, ok := mustAccountID(c)
	if !ok {
		return
	}
	var q spendSummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	out, err := h.Reports.SpendSummary(c.Request.Context(), reporting.SpendSummaryRequest{
		AccountID:  accountID,
		Range:      reporting.TimeRange{From: q.From, To: q.To},
		CampaignID: q.CampaignID,
		Currency:   q.Currency,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Convenience middleware bundles.

func RequireAccountAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireAccount(), rbac.RequireAnyRole(roles...)}
}
