package app

import (
	"database/sql"
	"log"
	"net/http"
	"strings"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/config"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/models"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/auth"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

// CreateCheckoutSession starts a Stripe Checkout Session for the authenticated user.
func CreateCheckoutSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	stripeCustomerID, err := ensureStripeCustomer(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("ensureStripeCustomer failed for subject=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare billing"})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("stripe checkout config load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	priceID := cfg.Stripe.PriceIDProMonthly
	frontendURL := strings.TrimRight(cfg.Stripe.FrontendURL, "/")
	if priceID == "" || frontendURL == "" {
		log.Printf("missing Stripe config: price_id=%t frontend_url=%t", priceID != "", frontendURL != "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(stripeCustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/billing/success"),
		CancelURL:  stripe.String(frontendURL + "/billing/cancel"),
	}

	sess, err := session.New(params)
	if err != nil {
		log.Printf("stripe checkout session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

// CreatePortalSession creates a Stripe Customer Portal session for the authenticated user.
func CreatePortalSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}
	if claims.Subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing subject"})
		return
	}
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db not initialized"})
		return
	}

	var stripeCustomerID sql.NullString
	err := db.QueryRowContext(
		c.Request.Context(),
		`
			SELECT stripe_customer_id
			FROM users
			WHERE subject = $1;
		`,
		claims.Subject,
	).Scan(&stripeCustomerID)
	if err != nil {
		log.Printf("portal lookup failed subject=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load customer"})
		return
	}
	if !stripeCustomerID.Valid || stripeCustomerID.String == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stripe customer missing for user"})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("portal config load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	frontendURL := strings.TrimRight(cfg.Stripe.FrontendURL, "/")
	if frontendURL == "" {
		log.Printf("missing Stripe config: frontend_url=false")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(stripeCustomerID.String),
		ReturnURL: stripe.String(frontendURL + "/settings/billing"),
	}

	sess, err := portal.New(params)
	if err != nil {
		log.Printf("stripe portal session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

type updatePlanRequest struct {
	Plan models.Plan `json:"plan"`
}

// UpdateUserPlan sets the authenticated user's plan to the requested value.
func UpdateUserPlan(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}
	if claims.Subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing subject"})
		return
	}
	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Plan != models.PlanPro && req.Plan != models.PlanFree {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan"})
		return
	}
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db not initialized"})
		return
	}

	_, err := db.ExecContext(
		c.Request.Context(),
		`
			UPDATE users
			SET plan = $1
			WHERE subject = $2;
		`,
		req.Plan,
		claims.Subject,
	)
	if err != nil {
		log.Printf("update plan failed subject=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update plan"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
