package models

import (
	"time"
)

// DayPass represents a single-event access grant, distinct from a
// recurring subscription.
type DayPass struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	RaceID          string    `json:"race_id"`
	Source          string    `json:"source"`
	StripeSessionID string    `json:"-"`
	PurchasedAt     time.Time `json:"purchased_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// ValidFor reports whether the pass grants access to the given race at the
// given instant.
func (p *DayPass) ValidFor(raceID string, now time.Time) bool {
	return p.RaceID == raceID && now.Before(p.ExpiresAt)
}
