package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksidelive/trackside/internal/feeds"
	"github.com/tracksidelive/trackside/internal/icecast"
	"github.com/tracksidelive/trackside/internal/mounts"
	api "github.com/tracksidelive/trackside/pkg/api/trackside"
	"github.com/tracksidelive/trackside/pkg/auth"
	"github.com/tracksidelive/trackside/pkg/cache"
	"github.com/tracksidelive/trackside/pkg/logging"
)

// setupLiveTest wires fake feed and Icecast upstreams behind the handler
// package vars. The events feed carries one race currently inside its window.
func setupLiveTest(t *testing.T, icecastBody string) sqlmock.Sqlmock {
	t.Helper()
	mock := setupHandlerTest(t)

	log := logging.NewLogger()
	log.SetOutput(io.Discard)

	start := time.Now().In(feeds.Eastern()).Add(-time.Hour)
	eventsCSV := fmt.Sprintf("race id,class,track,location,start\nrace-1,LMSC,Daytona,Daytona Beach,%s\n",
		start.Format("2006-01-02 15:04"))
	driversCSV := "number,name,class\n18,J Carter,LMSC\n5,M Reyes,PLM\n"

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/drivers"):
			w.Write([]byte(driversCSV))
		case strings.HasPrefix(r.URL.Path, "/events"):
			w.Write([]byte(eventsCSV))
		case strings.HasPrefix(r.URL.Path, "/status-json.xsl"):
			w.Write([]byte(icecastBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	feedStore = feeds.NewStore(feeds.StoreConfig{
		DriversURL: upstream.URL + "/drivers.csv",
		EventsURL:  upstream.URL + "/events.csv",
	}, log, cache.MetricsHooks{})
	icecastClient = icecast.NewClient(upstream.URL+"/status-json.xsl", 2*time.Second, log)
	cfg.Candidates = mounts.CandidateConfig{
		RelayBase: "https://app.example/api/stream",
		Origins:   []string{upstream.URL},
	}
	return mock
}

func TestGetLiveReportsWindow(t *testing.T) {
	setupLiveTest(t, `{"icestats":{}}`)

	w := performJSON(GetLive, http.MethodGet, "/api/live", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.LiveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Live)
	assert.Equal(t, "race-1", resp.ActiveRaceID)
	assert.Equal(t, "LMSC", resp.ActiveClass)
	assert.Equal(t, "Daytona - LMSC", resp.EventLabel)
}

func TestGetDriversMarksActiveMounts(t *testing.T) {
	setupLiveTest(t, `{"icestats":{"source":{"listenurl":"http://radio.example:8000/lmsc-18-j-carter.mp3"}}}`)

	w := performJSON(GetDrivers, http.MethodGet, "/api/drivers", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.DriversResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Drivers, 2)
	assert.Equal(t, "feed", resp.Source)

	byNumber := map[string]api.DriverInfo{}
	for _, d := range resp.Drivers {
		byNumber[d.Number] = d
	}
	assert.True(t, byNumber["18"].Active)
	assert.False(t, byNumber["5"].Active)
}

func TestResolveStreamRequiresPayment(t *testing.T) {
	mock := setupLiveTest(t, `{"icestats":{}}`)

	mock.ExpectQuery(`SELECT subscription_status FROM users`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_status"}).AddRow("none"))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM day_passes`).
		WithArgs("user-1", "race-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	w := performJSON(ResolveStream, http.MethodGet, "/api/resolve?number=18", nil, map[string]string{
		auth.CtxUserID: "user-1",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestResolveStreamForSubscriber(t *testing.T) {
	mock := setupLiveTest(t, `{"icestats":{}}`)

	mock.ExpectQuery(`SELECT subscription_status FROM users`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_status"}).AddRow("active"))

	w := performJSON(ResolveStream, http.MethodGet, "/api/resolve?number=18", nil, map[string]string{
		auth.CtxUserID: "user-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.ResolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// Empty status document: optimistic resolution against the plain mount.
	assert.Equal(t, "/lmsc-18-j-carter.mp3", resp.Mount)
	assert.True(t, resp.Active)
	assert.Equal(t, "optimistic", resp.Evidence)
	assert.NotEmpty(t, resp.SessionID)

	require.NotEmpty(t, resp.Candidates)
	assert.Equal(t, "https://app.example/api/stream/lmsc-18-j-carter.mp3?sid="+resp.SessionID, resp.Candidates[0])
}

func TestResolveStreamUnknownDriver(t *testing.T) {
	mock := setupLiveTest(t, `{"icestats":{}}`)

	mock.ExpectQuery(`SELECT subscription_status FROM users`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_status"}).AddRow("active"))

	w := performJSON(ResolveStream, http.MethodGet, "/api/resolve?number=99", nil, map[string]string{
		auth.CtxUserID: "user-1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDriversCSVPassthrough(t *testing.T) {
	setupLiveTest(t, `{"icestats":{}}`)

	w := performJSON(GetDriversCSV, http.MethodGet, "/api/feeds/drivers.csv", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "feed", w.Header().Get("X-Feed-Source"))
	assert.Contains(t, w.Body.String(), "J Carter")
}

func TestGetIcecastStatusDegradesToEmpty(t *testing.T) {
	setupLiveTest(t, `{"icestats":{}}`)

	// Point the client at a dead endpoint.
	log := logging.NewLogger()
	log.SetOutput(io.Discard)
	icecastClient = icecast.NewClient("http://127.0.0.1:1/status-json.xsl", 500*time.Millisecond, log)

	w := performJSON(GetIcecastStatus, http.MethodGet, "/api/icecast/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"icestats":{}}`, w.Body.String())
}
