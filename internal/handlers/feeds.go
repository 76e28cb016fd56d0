package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tracksidelive/trackside/internal/mounts"
	api "github.com/tracksidelive/trackside/pkg/api/trackside"
)

// GetDriversCSV serves the upstream driver feed verbatim. The mobile client
// parses it itself; the X-Feed-Source header reveals fallback substitution.
func GetDriversCSV(c *gin.Context) {
	body, source := feedStore.RawDrivers(c.Request.Context())
	c.Header("X-Feed-Source", source)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(body))
}

// GetEventsCSV serves the upstream event feed verbatim.
func GetEventsCSV(c *gin.Context) {
	body, source := feedStore.RawEvents(c.Request.Context())
	c.Header("X-Feed-Source", source)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(body))
}

// GetIcecastStatus proxies the Icecast status document so browser clients
// avoid cross-origin fetches against the stream host. A fetch failure maps
// to an empty document rather than an error, matching the optimistic
// resolution policy.
func GetIcecastStatus(c *gin.Context) {
	body, err := icecastClient.RawStatus(c.Request.Context())
	if err != nil {
		logger.WithError(err).Warn("Icecast status unavailable")
		c.Data(http.StatusOK, "application/json", []byte(`{"icestats":{}}`))
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

// GetDrivers returns the parsed driver directory as JSON, with each entry's
// computed mounts and an active flag derived from the Icecast status.
func GetDrivers(c *gin.Context) {
	ctx := c.Request.Context()
	drivers, source := feedStore.Drivers(ctx)

	active, err := icecastClient.ActiveMounts(ctx)
	if err != nil {
		logger.WithError(err).Debug("No mount status; marking all drivers active")
		active = nil
	}

	out := make([]api.DriverInfo, 0, len(drivers))
	for _, d := range drivers {
		res := mounts.Resolve(d, active)
		out = append(out, api.DriverInfo{
			Number:       d.Number,
			Name:         d.Name,
			ClassType:    d.ClassType,
			Classes:      d.Classes,
			PlainMount:   d.PlainMount,
			IcecastMount: d.IcecastMount,
			Logo:         d.Logo,
			Frequency:    d.Frequency,
			Active:       res.Active,
		})
	}

	c.JSON(http.StatusOK, api.DriversResponse{Drivers: out, Source: source})
}
