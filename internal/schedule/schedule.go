package schedule

import (
	"time"

	"github.com/tracksidelive/trackside/internal/feeds"
)

// Policy bounds the window around an event's scheduled start during which it
// counts as live. PreRoll covers warm-up and early tune-in; PostRoll covers
// the race itself plus delays, since the feed carries no end times.
type Policy struct {
	PreRoll  time.Duration
	PostRoll time.Duration
}

// DefaultPolicy opens the window 30 minutes before the scheduled start and
// holds it for 6 hours after.
func DefaultPolicy() Policy {
	return Policy{
		PreRoll:  30 * time.Minute,
		PostRoll: 6 * time.Hour,
	}
}

// LiveInfo is the result of evaluating the schedule at an instant.
type LiveInfo struct {
	Live  bool
	Event *feeds.EventRecord
	// Next is the soonest upcoming event when nothing is live, for
	// countdown display. Nil when the schedule is exhausted.
	Next *feeds.EventRecord
}

// InWindow reports whether the event counts as live at now under the policy.
func (p Policy) InWindow(event feeds.EventRecord, now time.Time) bool {
	opens := event.Start.Add(-p.PreRoll)
	closes := event.Start.Add(p.PostRoll)
	return !now.Before(opens) && !now.After(closes)
}

// Compute evaluates the event list at now. When several windows overlap the
// first event in feed order wins, so a delayed earlier session is not
// shadowed by the next one opening its pre-roll.
func Compute(events []feeds.EventRecord, now time.Time, policy Policy) LiveInfo {
	var live *feeds.EventRecord
	var next *feeds.EventRecord

	for i := range events {
		e := &events[i]
		if policy.InWindow(*e, now) {
			if live == nil {
				live = e
			}
			continue
		}
		if e.Start.After(now) {
			if next == nil || e.Start.Before(next.Start) {
				next = e
			}
		}
	}

	if live != nil {
		return LiveInfo{Live: true, Event: live}
	}
	return LiveInfo{Next: next}
}
