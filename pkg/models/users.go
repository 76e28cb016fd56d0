package models

import (
	"time"
)

// Subscription statuses mirrored from Stripe webhook events.
const (
	SubscriptionNone     = "none"
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// User represents a listener account
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"` // Never serialize password material
	Phone              string     `json:"phone,omitempty"`
	IsVerified         bool       `json:"is_verified"`
	PhoneVerified      bool       `json:"phone_verified"`
	Role               string     `json:"role"`
	IsActive           bool       `json:"is_active"`
	StripeCustomerID   string     `json:"-"`
	SubscriptionStatus string     `json:"subscription_status"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Subscribed reports whether the user currently holds streaming access via
// a recurring subscription.
func (u *User) Subscribed() bool {
	return u.SubscriptionStatus == SubscriptionActive || u.SubscriptionStatus == SubscriptionTrialing
}

// RegisterRequest represents the registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
	// Honeypot - must stay empty; bots that fill every field reveal themselves
	Website string `json:"website"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// PhoneVerifyRequest starts an SMS verification for the given phone number
type PhoneVerifyRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// PhoneCheckRequest checks an SMS verification code
type PhoneCheckRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}
