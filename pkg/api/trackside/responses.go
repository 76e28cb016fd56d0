package trackside

import (
	"time"

	"github.com/tracksidelive/trackside/pkg/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// AuthResponse is returned on successful login
type AuthResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// SessionResponse is the lightweight auth probe consumed on screen focus
type SessionResponse struct {
	LoggedIn   bool   `json:"logged_in"`
	Subscribed bool   `json:"subscribed"`
	HasDayPass bool   `json:"has_day_pass"`
	UserID     string `json:"user_id,omitempty"`
}

// UserInfoResponse wraps the full account record
type UserInfoResponse struct {
	User models.User `json:"user"`
}

// DayPassesResponse lists a user's currently valid day passes
type DayPassesResponse struct {
	Passes []models.DayPass `json:"passes"`
}

// CheckoutResponse returns the hosted checkout URL for a payment
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// LiveResponse reports the current live window state
type LiveResponse struct {
	Live          bool      `json:"live"`
	EventLabel    string    `json:"event_label,omitempty"`
	ActiveClasses []string  `json:"active_classes,omitempty"`
	ActiveRaceID  string    `json:"active_race_id,omitempty"`
	ActiveClass   string    `json:"active_class,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// DriverInfo is the JSON projection of a parsed driver directory entry
type DriverInfo struct {
	Number       string   `json:"number"`
	Name         string   `json:"name"`
	ClassType    string   `json:"class_type"`
	Classes      []string `json:"classes"`
	PlainMount   string   `json:"plain_mount"`
	IcecastMount string   `json:"icecast_mount"`
	Logo         string   `json:"logo,omitempty"`
	Frequency    string   `json:"frequency,omitempty"`
	Active       bool     `json:"active"`
}

// DriversResponse lists the parsed driver directory
type DriversResponse struct {
	Drivers []DriverInfo `json:"drivers"`
	Source  string       `json:"source"` // "feed" or "fallback"
}

// ResolveResponse is the gated mount resolution result: the resolved mount,
// how confident the resolution is, and the ordered candidate URL list the
// player should walk.
type ResolveResponse struct {
	Mount      string   `json:"mount"`
	Active     bool     `json:"active"`
	Evidence   string   `json:"evidence"` // confirmed, heuristic, optimistic
	Candidates []string `json:"candidates"`
	SessionID  string   `json:"session_id"`
}
