package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tracksidelive/trackside/internal/schedule"
	api "github.com/tracksidelive/trackside/pkg/api/trackside"
	"github.com/tracksidelive/trackside/pkg/auth"
	"github.com/tracksidelive/trackside/pkg/logging"
)

// relayClient has a dial/header timeout but no overall deadline: a healthy
// live stream is an endless response body.
var relayClient = &http.Client{
	Transport: &http.Transport{
		ResponseHeaderTimeout: 10 * time.Second,
		MaxIdleConnsPerHost:   4,
	},
}

// icy headers worth passing through to the player.
var relayHeaders = []string{"Content-Type", "icy-name", "icy-description", "icy-genre", "icy-br", "icy-metaint"}

// RelayStream proxies mount audio from the Icecast origins. Access is a
// playback session token (sid) scoped to the mount, or an authenticated
// listener who passes the same subscription/day-pass check as /api/resolve;
// the sid path exists because audio elements cannot attach headers or
// cookies cross-origin.
func RelayStream(c *gin.Context) {
	mount := c.Param("mount")
	if !strings.HasPrefix(mount, "/") {
		mount = "/" + mount
	}

	if !relayAuthorized(c, mount) {
		if c.GetString(auth.CtxUserID) != "" {
			c.JSON(http.StatusPaymentRequired, api.ErrorResponse{
				Error: "A subscription or day pass is required to listen",
				Code:  "payment_required",
			})
		} else {
			c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Authentication required"})
		}
		return
	}

	for i, origin := range cfg.RelayOrigins {
		if relayFrom(c, strings.TrimSuffix(origin, "/")+mount) {
			return
		}
		if i < len(cfg.RelayOrigins)-1 {
			logger.WithFields(logging.Fields{
				"origin": origin,
				"mount":  mount,
			}).Debug("Origin failed; trying next")
		}
	}

	if metrics != nil {
		metrics.RelayRequests.WithLabelValues("failed").Inc()
	}
	c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Stream unavailable"})
}

func relayAuthorized(c *gin.Context, mount string) bool {
	// Sessions are minted by /api/resolve after the access check, so a valid
	// sid authorizes the relay, but only for the mount it was resolved for.
	if sid := c.Query("sid"); sid != "" {
		if s, ok := sessions.Validate(c.Request.Context(), sid); ok && sameMount(s.Mount, mount) {
			return true
		}
	}

	userID := c.GetString(auth.CtxUserID)
	if userID == "" {
		return false
	}

	live := schedule.Compute(feedStore.Events(c.Request.Context()), time.Now(), cfg.Window)
	raceID := ""
	if live.Live {
		raceID = live.Event.RaceID
	}
	allowed, err := userHasAccess(userID, raceID)
	if err != nil {
		logger.WithError(err).Error("Failed to check relay access")
		return false
	}
	return allowed
}

// sameMount compares mount paths across the candidate variants: the
// /icecast prefix and the .mp3 extension are both optional.
func sameMount(a, b string) bool {
	return canonicalMount(a) == canonicalMount(b)
}

func canonicalMount(m string) string {
	m = strings.TrimPrefix(m, "/icecast")
	return strings.TrimSuffix(m, ".mp3")
}

// relayFrom streams one origin URL to the client. Returns false when the
// origin could not serve the mount and the next one should be tried; once
// bytes have flowed, failures terminate the response instead.
func relayFrom(c *gin.Context, url string) bool {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	if v := c.GetHeader("Icy-MetaData"); v != "" {
		req.Header.Set("Icy-MetaData", v)
	}

	resp, err := relayClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	for _, h := range relayHeaders {
		if v := resp.Header.Get(h); v != "" {
			c.Header(h, v)
		}
	}
	c.Header("Cache-Control", "no-cache, no-store")
	c.Status(http.StatusOK)

	if metrics != nil {
		metrics.RelayRequests.WithLabelValues("ok").Inc()
	}

	written, err := io.Copy(c.Writer, resp.Body)
	if metrics != nil {
		metrics.RelayBytes.Add(float64(written))
	}
	if err != nil {
		// Client hung up or the origin dropped mid-stream. Either way the
		// response is committed; log and end.
		logger.WithError(err).WithFields(logging.Fields{
			"url":   url,
			"bytes": written,
		}).Debug("Relay stream ended")
	}
	return true
}
