package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/tracksidelive/trackside/internal/feeds"
	"github.com/tracksidelive/trackside/internal/playback"
	"github.com/tracksidelive/trackside/pkg/logging"
)

// JobManager handles the service's background jobs: keeping the feed cache
// warm, purging expired day passes, and sweeping stale playback sessions.
type JobManager struct {
	db           *sql.DB
	logger       logging.Logger
	feedStore    *feeds.Store
	sessionStore *playback.MemoryStore // nil when sessions live in Redis
	stopCh       chan struct{}
}

// NewJobManager creates a new job manager
func NewJobManager(database *sql.DB, log logging.Logger, store *feeds.Store, sessionStore *playback.MemoryStore) *JobManager {
	return &JobManager{
		db:           database,
		logger:       log,
		feedStore:    store,
		sessionStore: sessionStore,
		stopCh:       make(chan struct{}),
	}
}

// Start begins all background jobs
func (jm *JobManager) Start(ctx context.Context) {
	jm.logger.Info("Starting job manager")

	go jm.runFeedWarm(ctx)
	go jm.runDayPassCleanup(ctx)
	if jm.sessionStore != nil {
		go jm.runSessionSweep(ctx)
	}
}

// Stop stops all background jobs
func (jm *JobManager) Stop() {
	jm.logger.Info("Stopping job manager")
	close(jm.stopCh)
}

// runFeedWarm refreshes the feed cache ahead of its TTL so interactive
// requests rarely wait on the upstream fetch.
func (jm *JobManager) runFeedWarm(ctx context.Context) {
	jm.feedStore.Refresh(ctx)

	ticker := time.NewTicker(feeds.DirectoryTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jm.feedStore.Refresh(ctx)
		case <-jm.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runDayPassCleanup deletes day passes that expired more than a week ago.
// Recent expired passes are kept so support can answer purchase questions.
func (jm *JobManager) runDayPassCleanup(ctx context.Context) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := jm.db.Exec(`DELETE FROM day_passes WHERE expires_at < NOW() - INTERVAL '7 days'`)
			if err != nil {
				jm.logger.WithError(err).Error("Failed to purge expired day passes")
				continue
			}
			if rows, _ := res.RowsAffected(); rows > 0 {
				jm.logger.WithField("removed", rows).Info("Purged expired day passes")
			}
		case <-jm.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runSessionSweep evicts expired in-memory playback sessions.
func (jm *JobManager) runSessionSweep(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := jm.sessionStore.Sweep(); removed > 0 {
				jm.logger.WithField("removed", removed).Debug("Swept stale playback sessions")
			}
		case <-jm.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
