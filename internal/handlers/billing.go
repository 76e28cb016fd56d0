package handlers

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	api "github.com/tracksidelive/trackside/pkg/api/trackside"
	"github.com/tracksidelive/trackside/pkg/auth"
	"github.com/tracksidelive/trackside/pkg/logging"
	"github.com/tracksidelive/trackside/pkg/models"

	stripeclient "github.com/tracksidelive/trackside/internal/stripe"
)

// ensureCustomer returns the user's Stripe customer id, creating the
// customer and persisting the id on first use.
func ensureCustomer(c *gin.Context, userID string) (string, error) {
	var email, customerID string
	err := db.QueryRow(`SELECT email, COALESCE(stripe_customer_id, '') FROM users WHERE id = $1`, userID).
		Scan(&email, &customerID)
	if err != nil {
		return "", fmt.Errorf("load account: %w", err)
	}
	if customerID != "" {
		return customerID, nil
	}

	cust, err := stripeClient.CreateOrGetCustomer(c.Request.Context(), stripeclient.CustomerInfo{
		UserID: userID,
		Email:  email,
	})
	if err != nil {
		return "", err
	}

	if _, err := db.Exec(`UPDATE users SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2`, cust.ID, userID); err != nil {
		return "", fmt.Errorf("store customer id: %w", err)
	}
	return cust.ID, nil
}

// CreateSubscriptionCheckout starts a Stripe Checkout session for the
// monthly subscription and returns the hosted URL.
func CreateSubscriptionCheckout(c *gin.Context) {
	userID := c.GetString(auth.CtxUserID)

	customerID, err := ensureCustomer(c, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to resolve Stripe customer")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Could not start checkout"})
		return
	}

	sess, err := stripeClient.CreateSubscriptionCheckout(c.Request.Context(), stripeclient.SubscriptionCheckoutParams{
		CustomerID: customerID,
		UserID:     userID,
		PriceID:    cfg.SubPriceID,
		SuccessURL: cfg.AppBaseURL + "/account?checkout=success",
		CancelURL:  cfg.AppBaseURL + "/account?checkout=canceled",
		TrialDays:  cfg.TrialDays,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to create subscription checkout")
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Could not start checkout"})
		return
	}

	if metrics != nil {
		metrics.Checkouts.WithLabelValues(stripeclient.PurposeSubscription).Inc()
	}
	c.JSON(http.StatusOK, api.CheckoutResponse{CheckoutURL: sess.URL, SessionID: sess.ID})
}

// CreateDayPassCheckout starts a one-time payment checkout for access to a
// single race. The race id is required so the webhook can scope the pass.
func CreateDayPassCheckout(c *gin.Context) {
	userID := c.GetString(auth.CtxUserID)

	var req struct {
		RaceID string `json:"race_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Missing race id"})
		return
	}

	customerID, err := ensureCustomer(c, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to resolve Stripe customer")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Could not start checkout"})
		return
	}

	sess, err := stripeClient.CreateDayPassCheckout(c.Request.Context(), stripeclient.DayPassCheckoutParams{
		CustomerID: customerID,
		UserID:     userID,
		RaceID:     req.RaceID,
		PriceID:    cfg.PassPriceID,
		SuccessURL: cfg.AppBaseURL + "/live?checkout=success",
		CancelURL:  cfg.AppBaseURL + "/live?checkout=canceled",
	})
	if err != nil {
		logger.WithError(err).Error("Failed to create day pass checkout")
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Could not start checkout"})
		return
	}

	if metrics != nil {
		metrics.Checkouts.WithLabelValues(stripeclient.PurposeDayPass).Inc()
	}
	c.JSON(http.StatusOK, api.CheckoutResponse{CheckoutURL: sess.URL, SessionID: sess.ID})
}

// CreateBillingPortal returns a Stripe Billing Portal URL so subscribers can
// manage or cancel their plan.
func CreateBillingPortal(c *gin.Context) {
	userID := c.GetString(auth.CtxUserID)

	var customerID string
	err := db.QueryRow(`SELECT COALESCE(stripe_customer_id, '') FROM users WHERE id = $1`, userID).Scan(&customerID)
	if err != nil || customerID == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "No billing account on file"})
		return
	}

	sess, err := stripeClient.CreateBillingPortalSession(c.Request.Context(), customerID, cfg.AppBaseURL+"/account")
	if err != nil {
		logger.WithError(err).Error("Failed to create billing portal session")
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Could not open billing portal"})
		return
	}

	c.JSON(http.StatusOK, api.CheckoutResponse{CheckoutURL: sess.URL})
}

// GetUserDayPasses lists the session user's unexpired day passes.
func GetUserDayPasses(c *gin.Context) {
	userID := c.GetString(auth.CtxUserID)

	rows, err := db.Query(`
		SELECT id, user_id, race_id, source, purchased_at, expires_at
		FROM day_passes
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY purchased_at DESC`, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to list day passes")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list day passes"})
		return
	}
	defer rows.Close()

	passes := []models.DayPass{}
	for rows.Next() {
		var p models.DayPass
		if err := rows.Scan(&p.ID, &p.UserID, &p.RaceID, &p.Source, &p.PurchasedAt, &p.ExpiresAt); err != nil {
			logger.WithError(err).Error("Error scanning day pass")
			continue
		}
		passes = append(passes, p)
	}

	c.JSON(http.StatusOK, api.DayPassesResponse{Passes: passes})
}

// userHasAccess reports whether the user may start playback: an active or
// trialing subscription, or a day pass valid for the given race.
func userHasAccess(userID, raceID string) (bool, error) {
	var status string
	err := db.QueryRow(`SELECT subscription_status FROM users WHERE id = $1 AND is_active = true`, userID).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if status == models.SubscriptionActive || status == models.SubscriptionTrialing {
		return true, nil
	}
	if raceID == "" {
		return false, nil
	}

	var hasPass bool
	err = db.QueryRow(`SELECT EXISTS(SELECT 1 FROM day_passes WHERE user_id = $1 AND race_id = $2 AND expires_at > NOW())`,
		userID, raceID).Scan(&hasPass)
	if err != nil {
		return false, err
	}
	if !hasPass {
		logger.WithFields(logging.Fields{
			"user_id": userID,
			"race_id": raceID,
		}).Debug("No valid day pass for race")
	}
	return hasPass, nil
}
