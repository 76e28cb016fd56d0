package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	api "github.com/tracksidelive/trackside/pkg/api/trackside"
	"github.com/tracksidelive/trackside/pkg/logging"
	"github.com/tracksidelive/trackside/pkg/models"

	stripeclient "github.com/tracksidelive/trackside/internal/stripe"
)

// HandleStripeWebhook verifies and dispatches Stripe events. Unknown event
// types are acknowledged so Stripe does not retry them forever.
func HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Failed to read payload"})
		return
	}

	event, err := stripeClient.VerifyAndParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		logger.WithError(err).Warn("Rejected Stripe webhook with bad signature")
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid signature"})
		return
	}

	if metrics != nil {
		metrics.WebhookEvents.WithLabelValues(string(event.Type)).Inc()
	}

	switch {
	case event.Type == "checkout.session.completed":
		err = handleCheckoutCompleted(event)
	case strings.HasPrefix(string(event.Type), "customer.subscription."):
		err = handleSubscriptionEvent(event)
	case event.Type == "invoice.payment_failed":
		err = handlePaymentFailed(event)
	default:
		logger.WithField("type", event.Type).Debug("Ignoring unhandled Stripe event")
	}

	if err != nil {
		logger.WithError(err).WithField("type", event.Type).Error("Failed to process Stripe webhook")
		// A non-2xx makes Stripe retry, which is what we want for transient
		// database failures.
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Processing failed"})
		return
	}

	c.JSON(http.StatusOK, api.SuccessResponse{Success: true})
}

// handleCheckoutCompleted grants a day pass when a payment-mode checkout
// finishes. Subscription checkouts are settled by the subscription events
// that follow, so only day-pass sessions act here.
func handleCheckoutCompleted(event *stripe.Event) error {
	sess, err := stripeClient.CheckoutSessionFromEvent(event)
	if err != nil {
		return err
	}

	if sess.Metadata["purpose"] != stripeclient.PurposeDayPass {
		return nil
	}

	userID := sess.Metadata["user_id"]
	raceID := sess.Metadata["race_id"]
	if userID == "" || raceID == "" {
		logger.WithField("session_id", sess.ID).Warn("Day pass checkout missing metadata; skipping grant")
		return nil
	}

	now := time.Now()
	// Idempotent on the Stripe session id: redelivered webhooks must not
	// grant a second pass.
	_, err = db.Exec(`
		INSERT INTO day_passes (id, user_id, race_id, source, stripe_session_id, purchased_at, expires_at)
		VALUES ($1, $2, $3, 'stripe', $4, $5, $6)
		ON CONFLICT (stripe_session_id) DO NOTHING`,
		uuid.New().String(), userID, raceID, sess.ID, now, now.Add(cfg.DayPassTTL))
	if err != nil {
		return err
	}

	logger.WithFields(logging.Fields{
		"user_id": userID,
		"race_id": raceID,
	}).Info("Granted day pass")
	return nil
}

// handleSubscriptionEvent mirrors the Stripe subscription state onto the
// account record.
func handleSubscriptionEvent(event *stripe.Event) error {
	sub, err := stripeClient.SubscriptionFromEvent(event)
	if err != nil {
		return err
	}
	info := stripeClient.ExtractSubscriptionInfo(sub)

	status := info.Status
	if event.Type == "customer.subscription.deleted" {
		status = models.SubscriptionCanceled
	}

	var endsAt interface{}
	if !info.CurrentPeriodEnd.IsZero() {
		endsAt = info.CurrentPeriodEnd
	}

	res, err := db.Exec(`
		UPDATE users
		SET subscription_status = $1, subscription_id = $2, subscription_ends_at = $3, updated_at = NOW()
		WHERE stripe_customer_id = $4`,
		status, info.StripeSubscriptionID, endsAt, info.StripeCustomerID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		// Customer created outside this service, or the user_id metadata is
		// the only link. Fall back to it.
		if info.UserID != "" {
			_, err = db.Exec(`
				UPDATE users
				SET subscription_status = $1, subscription_id = $2, subscription_ends_at = $3,
				    stripe_customer_id = $4, updated_at = NOW()
				WHERE id = $5`,
				status, info.StripeSubscriptionID, endsAt, info.StripeCustomerID, info.UserID)
			if err != nil {
				return err
			}
		} else {
			logger.WithField("customer_id", info.StripeCustomerID).Warn("Subscription event for unknown customer")
		}
	}

	logger.WithFields(logging.Fields{
		"customer_id": info.StripeCustomerID,
		"status":      status,
	}).Info("Updated subscription state")
	return nil
}

// handlePaymentFailed marks the account past_due on a failed renewal. The
// definitive state still arrives via the subscription events; this just
// closes the gap until Stripe sends one.
func handlePaymentFailed(event *stripe.Event) error {
	inv, err := stripeClient.InvoiceFromEvent(event)
	if err != nil {
		return err
	}
	if inv.Customer == nil {
		return nil
	}

	_, err = db.Exec(`
		UPDATE users SET subscription_status = $1, updated_at = NOW()
		WHERE stripe_customer_id = $2 AND subscription_status IN ($3, $4)`,
		models.SubscriptionPastDue, inv.Customer.ID,
		models.SubscriptionActive, models.SubscriptionTrialing)
	if err != nil {
		return err
	}

	logger.WithField("customer_id", inv.Customer.ID).Warn("Subscription payment failed; marked past due")
	return nil
}
