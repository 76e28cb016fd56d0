package handlers

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	stripeclient "github.com/tracksidelive/trackside/internal/stripe"
	"github.com/tracksidelive/trackside/pkg/logging"
)

func setupWebhookTest(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mock := setupHandlerTest(t)

	log := logging.NewLogger()
	log.SetOutput(io.Discard)
	stripeClient = stripeclient.NewClient(stripeclient.Config{
		SecretKey:     "sk_test_unit",
		WebhookSecret: "whsec_unit",
		Logger:        log,
	})
	return mock
}

func checkoutEvent(t *testing.T, metadata map[string]string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":       "cs_test_1",
		"mode":     "payment",
		"metadata": metadata,
	})
	require.NoError(t, err)
	return &stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestCheckoutCompletedGrantsDayPass(t *testing.T) {
	mock := setupWebhookTest(t)

	mock.ExpectExec(`INSERT INTO day_passes`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := handleCheckoutCompleted(checkoutEvent(t, map[string]string{
		"purpose": "day_pass",
		"user_id": "user-1",
		"race_id": "race-1",
	}))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutCompletedIgnoresSubscriptionSessions(t *testing.T) {
	mock := setupWebhookTest(t)

	// Subscription checkouts are settled by subscription events; no insert.
	err := handleCheckoutCompleted(checkoutEvent(t, map[string]string{
		"purpose": "subscription",
		"user_id": "user-1",
	}))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutCompletedMissingMetadata(t *testing.T) {
	mock := setupWebhookTest(t)

	err := handleCheckoutCompleted(checkoutEvent(t, map[string]string{
		"purpose": "day_pass",
	}))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func subscriptionEvent(t *testing.T, eventType, status string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":       "sub_1",
		"status":   status,
		"customer": "cus_1",
		"metadata": map[string]string{"user_id": "user-1"},
	})
	require.NoError(t, err)
	return &stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestSubscriptionEventUpdatesAccount(t *testing.T) {
	mock := setupWebhookTest(t)

	mock.ExpectExec(`UPDATE users`).
		WithArgs("active", "sub_1", nil, "cus_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := handleSubscriptionEvent(subscriptionEvent(t, "customer.subscription.updated", "active"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionDeletedMarksCanceled(t *testing.T) {
	mock := setupWebhookTest(t)

	mock.ExpectExec(`UPDATE users`).
		WithArgs("canceled", "sub_1", nil, "cus_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := handleSubscriptionEvent(subscriptionEvent(t, "customer.subscription.deleted", "active"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentFailedMarksPastDue(t *testing.T) {
	mock := setupWebhookTest(t)

	raw, err := json.Marshal(map[string]interface{}{
		"id":       "in_1",
		"customer": "cus_1",
	})
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE users SET subscription_status`).
		WithArgs("past_due", "cus_1", "active", "trialing").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = handlePaymentFailed(&stripe.Event{
		Type: "invoice.payment_failed",
		Data: &stripe.EventData{Raw: raw},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionEventFallsBackToUserID(t *testing.T) {
	mock := setupWebhookTest(t)

	mock.ExpectExec(`UPDATE users`).
		WithArgs("active", "sub_1", nil, "cus_1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE users`).
		WithArgs("active", "sub_1", nil, "cus_1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := handleSubscriptionEvent(subscriptionEvent(t, "customer.subscription.created", "active"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
