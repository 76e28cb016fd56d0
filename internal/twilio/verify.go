package twilio

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tracksidelive/trackside/pkg/logging"
)

const verifyBaseURL = "https://verify.twilio.com/v2"

// Config for the Twilio Verify client.
type Config struct {
	AccountSID string // TWILIO_ACCOUNT_SID
	AuthToken  string // TWILIO_AUTH_TOKEN
	ServiceSID string // TWILIO_VERIFY_SERVICE_SID
	Logger     logging.Logger
}

// Client sends and checks SMS verification codes through the Twilio Verify
// API. Twilio generates and stores the codes; this service never sees them
// until the user echoes one back.
type Client struct {
	client     *resty.Client
	serviceSID string
	logger     logging.Logger
}

func NewClient(config Config) *Client {
	client := resty.New().
		SetBaseURL(verifyBaseURL).
		SetBasicAuth(config.AccountSID, config.AuthToken).
		SetTimeout(10 * time.Second)

	return &Client{
		client:     client,
		serviceSID: config.ServiceSID,
		logger:     config.Logger,
	}
}

type verificationResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`    // Twilio error code on failure
	Message string `json:"message"` // Twilio error message on failure
}

// StartVerification asks Twilio to send an SMS code to the phone number
// (E.164 format).
func (c *Client) StartVerification(ctx context.Context, phone string) error {
	var result verificationResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":      phone,
			"Channel": "sms",
		}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/Services/%s/Verifications", c.serviceSID))
	if err != nil {
		return fmt.Errorf("start verification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("start verification: twilio error %d: %s", result.Code, result.Message)
	}

	c.logger.WithField("verification_sid", result.SID).Info("Started SMS verification")
	return nil
}

// CheckVerification submits the user-supplied code. Returns true when Twilio
// reports the check approved.
func (c *Client) CheckVerification(ctx context.Context, phone, code string) (bool, error) {
	var result verificationResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   phone,
			"Code": code,
		}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/Services/%s/VerificationCheck", c.serviceSID))
	if err != nil {
		return false, fmt.Errorf("check verification: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("check verification: twilio error %d: %s", result.Code, result.Message)
	}

	return result.Status == "approved", nil
}
