package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/tracksidelive/trackside/pkg/logging"
)

// Checkout purposes carried in session metadata so the webhook handler can
// tell a subscription signup from a single-race day pass.
const (
	PurposeSubscription = "subscription"
	PurposeDayPass      = "day_pass"
)

// Client wraps the Stripe API operations the service uses. All payment flows
// go through Stripe Checkout; subscription management goes through the
// Billing Portal.
type Client struct {
	secretKey     string
	webhookSecret string
	logger        logging.Logger
}

// Config for creating a new Stripe client
type Config struct {
	SecretKey     string // STRIPE_SECRET_KEY
	WebhookSecret string // STRIPE_WEBHOOK_SECRET
	Logger        logging.Logger
}

// NewClient creates a new Stripe client
func NewClient(config Config) *Client {
	// Set the global API key for the stripe-go library
	stripe.Key = config.SecretKey

	return &Client{
		secretKey:     config.SecretKey,
		webhookSecret: config.WebhookSecret,
		logger:        config.Logger,
	}
}

// CustomerInfo represents account data for Stripe customer creation
type CustomerInfo struct {
	UserID string
	Email  string
	Name   string
}

// CreateOrGetCustomer finds an existing customer by user ID or creates a new one
func (c *Client) CreateOrGetCustomer(ctx context.Context, info CustomerInfo) (*stripe.Customer, error) {
	params := &stripe.CustomerSearchParams{}
	params.Query = fmt.Sprintf("metadata['user_id']:'%s'", info.UserID)
	iter := customer.Search(params)

	for iter.Next() {
		cust := iter.Customer()
		c.logger.WithField("customer_id", cust.ID).Debug("Found existing Stripe customer")
		return cust, nil
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Warn("Error searching for Stripe customer, will create new")
	}

	cust, err := customer.New(&stripe.CustomerParams{
		Email: stripe.String(info.Email),
		Name:  stripe.String(info.Name),
		Metadata: map[string]string{
			"user_id": info.UserID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Stripe customer: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"customer_id": cust.ID,
		"user_id":     info.UserID,
	}).Info("Created new Stripe customer")

	return cust, nil
}

// SubscriptionCheckoutParams for creating a subscription checkout session
type SubscriptionCheckoutParams struct {
	CustomerID string
	UserID     string // For metadata
	PriceID    string // Stripe Price ID for the monthly plan
	SuccessURL string
	CancelURL  string
	TrialDays  int64 // Optional trial period
}

// CreateSubscriptionCheckout creates a Checkout Session in subscription mode
func (c *Client) CreateSubscriptionCheckout(ctx context.Context, params SubscriptionCheckoutParams) (*stripe.CheckoutSession, error) {
	metadata := map[string]string{
		"purpose": PurposeSubscription,
		"user_id": params.UserID,
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Customer: stripe.String(params.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata:   metadata,
	}

	// Ensure the metadata also lands on the created Stripe subscription.
	subscriptionData := &stripe.CheckoutSessionSubscriptionDataParams{
		Metadata: metadata,
	}
	if params.TrialDays > 0 {
		subscriptionData.TrialPeriodDays = stripe.Int64(params.TrialDays)
	}
	sessionParams.SubscriptionData = subscriptionData

	sess, err := checkoutsession.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"session_id": sess.ID,
		"user_id":    params.UserID,
		"price_id":   params.PriceID,
	}).Info("Created subscription checkout session")

	return sess, nil
}

// DayPassCheckoutParams for creating a one-time day pass checkout session
type DayPassCheckoutParams struct {
	CustomerID string
	UserID     string // For metadata
	RaceID     string // The race the pass grants access to
	PriceID    string // Stripe Price ID for the day pass
	SuccessURL string
	CancelURL  string
}

// CreateDayPassCheckout creates a Checkout Session in payment mode for a
// single-race day pass. The race id travels in metadata and is read back by
// the webhook handler when the session completes.
func (c *Client) CreateDayPassCheckout(ctx context.Context, params DayPassCheckoutParams) (*stripe.CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Customer: stripe.String(params.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata: map[string]string{
			"purpose": PurposeDayPass,
			"user_id": params.UserID,
			"race_id": params.RaceID,
		},
	}

	sess, err := checkoutsession.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create day pass checkout session: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"session_id": sess.ID,
		"user_id":    params.UserID,
		"race_id":    params.RaceID,
	}).Info("Created day pass checkout session")

	return sess, nil
}

// CreateBillingPortalSession creates a session for customers to manage their subscription
func (c *Client) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create billing portal session: %w", err)
	}

	return sess, nil
}

// VerifyAndParseWebhook verifies the webhook signature and parses the event
func (c *Client) VerifyAndParseWebhook(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// SubscriptionFromEvent extracts subscription data from a webhook event
func (c *Client) SubscriptionFromEvent(event *stripe.Event) (*stripe.Subscription, error) {
	switch event.Type {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"customer.subscription.paused",
		"customer.subscription.resumed":
		var sub stripe.Subscription
		if err := sub.UnmarshalJSON(event.Data.Raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
		}
		return &sub, nil
	default:
		return nil, fmt.Errorf("event type %s does not contain subscription data", event.Type)
	}
}

// CheckoutSessionFromEvent extracts checkout session from a webhook event
func (c *Client) CheckoutSessionFromEvent(event *stripe.Event) (*stripe.CheckoutSession, error) {
	if event.Type != "checkout.session.completed" {
		return nil, fmt.Errorf("event type %s is not checkout.session.completed", event.Type)
	}

	var sess stripe.CheckoutSession
	if err := sess.UnmarshalJSON(event.Data.Raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}
	return &sess, nil
}

// InvoiceFromEvent extracts invoice data from a webhook event
func (c *Client) InvoiceFromEvent(event *stripe.Event) (*stripe.Invoice, error) {
	switch event.Type {
	case "invoice.paid", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := inv.UnmarshalJSON(event.Data.Raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal invoice: %w", err)
		}
		return &inv, nil
	default:
		return nil, fmt.Errorf("event type %s does not contain invoice data", event.Type)
	}
}

// SubscriptionInfo contains extracted subscription details for database updates
type SubscriptionInfo struct {
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               string // active, past_due, canceled, trialing, etc.
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	UserID               string // From metadata
}

// ExtractSubscriptionInfo extracts relevant fields from a Stripe subscription
func (c *Client) ExtractSubscriptionInfo(sub *stripe.Subscription) SubscriptionInfo {
	info := SubscriptionInfo{
		StripeCustomerID:     sub.Customer.ID,
		StripeSubscriptionID: sub.ID,
		Status:               string(sub.Status),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}

	// CurrentPeriodEnd is on SubscriptionItem in v82
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		info.CurrentPeriodEnd = time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0)
	}

	if sub.Metadata != nil {
		info.UserID = sub.Metadata["user_id"]
	}

	return info
}
