package mounts

import (
	"strings"

	"github.com/tracksidelive/trackside/internal/feeds"
	"github.com/tracksidelive/trackside/internal/icecast"
)

// Evidence grades how a mount resolution was reached, so a player (or a log
// line) can tell a confirmed-live mount from an optimistic guess against a
// server that reported nothing.
type Evidence string

const (
	// EvidenceConfirmed: the resolved path appears in the active-mount set.
	EvidenceConfirmed Evidence = "confirmed"
	// EvidenceHeuristic: matched an active path by class-number hint only.
	EvidenceHeuristic Evidence = "heuristic"
	// EvidenceOptimistic: no status evidence; the computed mount is
	// attempted anyway under AssumeLiveWhenStatusUnknown.
	EvidenceOptimistic Evidence = "optimistic"
)

// AssumeLiveWhenStatusUnknown is the policy applied when the status fetch
// failed or reported no sources: every driver is treated as potentially
// live rather than uniformly dead.
const AssumeLiveWhenStatusUnknown = true

// Resolution is the outcome of reconciling a driver's computed mount paths
// against the active-mount set.
type Resolution struct {
	Mount    string
	Active   bool
	Evidence Evidence
}

// Resolve reconciles the driver's static mounts with the reported set.
// Preference order: exact icecastMount, exact plainMount, class-number
// substring match, then the plain mount optimistically.
func Resolve(driver feeds.DriverRecord, active icecast.ActiveMountSet) Resolution {
	if len(active) == 0 {
		return Resolution{
			Mount:    driver.PlainMount,
			Active:   AssumeLiveWhenStatusUnknown,
			Evidence: EvidenceOptimistic,
		}
	}

	if active.Contains(driver.IcecastMount) {
		return Resolution{Mount: driver.IcecastMount, Active: true, Evidence: EvidenceConfirmed}
	}
	if active.Contains(driver.PlainMount) {
		return Resolution{Mount: driver.PlainMount, Active: true, Evidence: EvidenceConfirmed}
	}

	// The feed and the encoder occasionally disagree on the name slug, but
	// class and car number are stable. Match on that hint.
	hint := feeds.Slugify(driver.ClassType) + "-" + feeds.Slugify(driver.Number)
	for _, path := range active.Paths() {
		if strings.Contains(path, hint) {
			return Resolution{Mount: path, Active: true, Evidence: EvidenceHeuristic}
		}
	}

	return Resolution{Mount: driver.PlainMount, Active: false, Evidence: EvidenceOptimistic}
}
