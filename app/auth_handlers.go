// Package app provides public health and authenticated identity endpoints.
package app

import (
	"database/sql"
	"net/http"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/config"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/models"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/auth"

	"github.com/gin-gonic/gin"
)

// Health is a public health check endpoint.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Me returns plan and batch-process admission usage for the authenticated user.
func Me(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load config"})
		return
	}

	plan := models.PlanFree
	if db != nil {
		user, err := getUserBySubject(c.Request.Context(), claims.Subject)
		if err != nil {
			if err == sql.ErrNoRows {
				_ = UpsertUserFromClaims(c.Request.Context(), claims)
				user, err = getUserBySubject(c.Request.Context(), claims.Subject)
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
				return
			}
		}
		plan = user.Plan
	}

	maxCalls := cfg.RateLimit.MaxCalls
	if plan == models.PlanPro {
		maxCalls = cfg.RateLimit.ProMaxCalls
	}

	out := gin.H{
		"subject":    claims.Subject,
		"plan":       plan,
		"batchLimit": maxCalls,
	}

	if limiter != nil {
		usage, err := limiter.Peek(c.Request.Context(), claims.Subject, BatchProcessResource, 0, maxCalls)
		if err == nil {
			out["batchRemaining"] = usage.Remaining
			out["batchResetAt"] = usage.ResetAt
		}
	}

	c.JSON(http.StatusOK, out)
}
