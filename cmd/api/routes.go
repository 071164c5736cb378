package main

import (
	"database/sql"
	"net/http"
	"time"

	"dialer-platform/internal/auth"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/rbac"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, rdb *redis.Client, authMW gin.HandlerFunc, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// AUTH routes (token issuance). Public by design: they are how a caller
	// obtains the bearer token the protected group requires.
	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			aid, _ := auth.AccountID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "account_id": aid, "role": role})
		})

		// BALANCE routes
		balance := v1.Group("/balance")
		balance.Use(rbac.RequireAccount())
		{
			balance.GET("", h.GetBalance)
		}

		// CAMPAIGN routes
		campaigns := v1.Group("/campaigns")
		campaigns.Use(rbac.RequireAccount())
		campaigns.Use(rbac.RequireAnyRole(rbac.RoleUser))
		{
			campaigns.POST("", h.CreateCampaign)
			campaigns.GET("", h.ListCampaigns)
			campaigns.GET("/:campaign_id", h.GetCampaign)
			campaigns.POST("/:campaign_id/start", h.StartCampaign)
			campaigns.POST("/:campaign_id/pause", h.PauseCampaign)
			campaigns.GET("/:campaign_id/progress", h.CampaignProgress)
			campaigns.GET("/:campaign_id/summary", h.CampaignSummary)

			// One dispatch tick: charge, claim, release the next batch.
			campaigns.POST("/:campaign_id/dispatch", h.DispatchTick)
			campaigns.POST("/:campaign_id/contacts/:contact_id/outcome", h.RecordOutcome)
		}

		// REPORT routes
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAccount())
		{
			reports.GET("/spend", h.SpendSummary)
		}

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.POST("/credits", h.AdminManualCredit)

			admin.GET("/blocklist", h.AdminBlocklistList)
			admin.POST("/blocklist", h.AdminBlocklistAdd)
			admin.POST("/blocklist/remove", h.AdminBlocklistRemove)

			admin.PUT("/moderation/global-words", h.AdminSetGlobalWords)
		}
	}
}
