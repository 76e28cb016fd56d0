package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksidelive/trackside/internal/feeds"
)

func event(raceID, class string, start time.Time) feeds.EventRecord {
	return feeds.EventRecord{RaceID: raceID, ClassType: class, Track: "Test Track", Start: start}
}

func TestInWindowEdges(t *testing.T) {
	p := DefaultPolicy()
	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	e := event("r1", "LMSC", start)

	assert.False(t, p.InWindow(e, start.Add(-31*time.Minute)))
	assert.True(t, p.InWindow(e, start.Add(-30*time.Minute)))
	assert.True(t, p.InWindow(e, start.Add(-20*time.Minute)))
	assert.True(t, p.InWindow(e, start))
	assert.True(t, p.InWindow(e, start.Add(6*time.Hour)))
	assert.False(t, p.InWindow(e, start.Add(6*time.Hour+time.Second)))
}

func TestInWindowRespectsPolicy(t *testing.T) {
	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	e := event("r1", "LMSC", start)
	now := start.Add(-20 * time.Minute)

	assert.True(t, Policy{PreRoll: 30 * time.Minute, PostRoll: 6 * time.Hour}.InWindow(e, now))
	assert.False(t, Policy{PreRoll: 10 * time.Minute, PostRoll: 6 * time.Hour}.InWindow(e, now))
}

func TestComputeNothingLive(t *testing.T) {
	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	info := Compute([]feeds.EventRecord{event("r1", "LMSC", start)}, start.Add(-2*time.Hour), DefaultPolicy())

	assert.False(t, info.Live)
	assert.Nil(t, info.Event)
	require.NotNil(t, info.Next)
	assert.Equal(t, "r1", info.Next.RaceID)
}

func TestComputeOverlapFirstInFeedOrderWins(t *testing.T) {
	start := time.Date(2026, 4, 11, 13, 0, 0, 0, time.UTC)
	events := []feeds.EventRecord{
		event("r2", "PLM", start),
		event("r2", "LMSC", start.Add(2*time.Hour)),
	}

	// 1h45 in: PLM is still inside its post-roll and LMSC has opened its
	// pre-roll. The earlier session wins.
	info := Compute(events, start.Add(105*time.Minute), DefaultPolicy())
	require.True(t, info.Live)
	assert.Equal(t, "PLM", info.Event.ClassType)

	// Well past the split: only LMSC is in window.
	info = Compute(events, start.Add(7*time.Hour), DefaultPolicy())
	require.True(t, info.Live)
	assert.Equal(t, "LMSC", info.Event.ClassType)
}

func TestComputeEmptySchedule(t *testing.T) {
	info := Compute(nil, time.Now(), DefaultPolicy())
	assert.False(t, info.Live)
	assert.Nil(t, info.Event)
	assert.Nil(t, info.Next)
}
