package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tracksidelive/trackside/internal/mounts"
	"github.com/tracksidelive/trackside/internal/schedule"
	api "github.com/tracksidelive/trackside/pkg/api/trackside"
	"github.com/tracksidelive/trackside/pkg/auth"
	"github.com/tracksidelive/trackside/pkg/logging"
)

// GetLive reports whether a race is inside its live window right now.
// Recomputed per request; nothing is persisted.
func GetLive(c *gin.Context) {
	events := feedStore.Events(c.Request.Context())
	info := schedule.Compute(events, time.Now(), cfg.Window)

	resp := api.LiveResponse{Live: info.Live, CheckedAt: time.Now()}
	if info.Live {
		e := info.Event
		resp.ActiveRaceID = e.RaceID
		resp.ActiveClass = e.ClassType
		resp.EventLabel = fmt.Sprintf("%s - %s", e.Track, e.ClassType)
		// All sessions of the live race are shown on the Live screen; a
		// shared race id spans the class split.
		for _, ev := range events {
			if ev.RaceID == e.RaceID {
				resp.ActiveClasses = append(resp.ActiveClasses, ev.ClassType)
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ResolveStream is the access-gated resolution endpoint: given a driver
// number, it reconciles the computed mount against the Icecast status and
// returns the ordered candidate URL list plus a playback session id. A 402
// tells the client to offer subscribe/day-pass actions instead of playing.
func ResolveStream(c *gin.Context) {
	userID := c.GetString(auth.CtxUserID)
	number := c.Query("number")
	if number == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Missing driver number"})
		return
	}

	ctx := c.Request.Context()
	events := feedStore.Events(ctx)
	live := schedule.Compute(events, time.Now(), cfg.Window)

	raceID := ""
	if live.Live {
		raceID = live.Event.RaceID
	}

	allowed, err := userHasAccess(userID, raceID)
	if err != nil {
		logger.WithError(err).Error("Failed to check stream access")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Access check failed"})
		return
	}
	if !allowed {
		c.JSON(http.StatusPaymentRequired, api.ErrorResponse{
			Error: "A subscription or day pass is required to listen",
			Code:  "payment_required",
		})
		return
	}

	drivers, _ := feedStore.Drivers(ctx)
	driverIdx := -1
	for i := range drivers {
		if drivers[i].Number == number {
			driverIdx = i
			break
		}
	}
	if driverIdx < 0 {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Unknown driver number"})
		return
	}

	active, err := icecastClient.ActiveMounts(ctx)
	if err != nil {
		logger.WithError(err).Debug("No mount status; resolving optimistically")
		active = nil
	}

	res := mounts.Resolve(drivers[driverIdx], active)
	if metrics != nil {
		metrics.Resolutions.WithLabelValues(string(res.Evidence)).Inc()
	}

	session, err := sessions.Begin(ctx, userID, res.Mount)
	if err != nil {
		logger.WithError(err).Error("Failed to start playback session")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Could not start playback"})
		return
	}

	candidates := mounts.Candidates(cfg.Candidates, res.Mount, session.ID)

	logger.WithFields(logging.Fields{
		"user_id":  userID,
		"mount":    res.Mount,
		"evidence": res.Evidence,
	}).Info("Resolved stream")

	c.JSON(http.StatusOK, api.ResolveResponse{
		Mount:      res.Mount,
		Active:     res.Active,
		Evidence:   string(res.Evidence),
		Candidates: candidates,
		SessionID:  session.ID,
	})
}

// ReportPlayback lets the client report the outcome of a candidate attempt,
// driving the playback state machine server-side.
func ReportPlayback(c *gin.Context) {
	userID := c.GetString(auth.CtxUserID)

	var req struct {
		SessionID string `json:"session_id" binding:"required"`
		Outcome   string `json:"outcome" binding:"required"` // playing, advance, error, stop
		Message   string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid playback report"})
		return
	}

	ctx := c.Request.Context()
	s, ok := sessions.Validate(ctx, req.SessionID)
	if !ok || s.UserID != userID {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Unknown playback session"})
		return
	}

	var err error
	switch req.Outcome {
	case "playing":
		_, err = sessions.MarkPlaying(ctx, req.SessionID)
	case "advance":
		_, err = sessions.AdvanceCandidate(ctx, req.SessionID)
	case "error":
		_, err = sessions.MarkError(ctx, req.SessionID, req.Message)
	case "stop":
		err = sessions.Stop(ctx, req.SessionID, userID)
	default:
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Unknown outcome"})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Playback state update rejected"})
		return
	}

	c.JSON(http.StatusOK, api.SuccessResponse{Success: true})
}
