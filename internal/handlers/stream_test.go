package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksidelive/trackside/pkg/auth"
)

// setupRelayTest builds on the live fixtures (one race in its window) and
// adds a fake Icecast origin serving audio bytes for every mount.
func setupRelayTest(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mock := setupLiveTest(t, `{"icestats":{}}`)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("AUDIO-BYTES"))
	}))
	t.Cleanup(origin.Close)

	cfg.RelayOrigins = []string{origin.URL}
	return mock
}

func performRelay(target, mount string, ctxValues map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Params = gin.Params{{Key: "mount", Value: mount}}
	for k, v := range ctxValues {
		c.Set(k, v)
	}
	RelayStream(c)
	return w
}

func TestRelayStreamAnonymous(t *testing.T) {
	setupRelayTest(t)

	w := performRelay("/api/stream/lmsc-18-j-carter.mp3", "/lmsc-18-j-carter.mp3", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRelayStreamUnsubscribedUserRejected(t *testing.T) {
	mock := setupRelayTest(t)

	// Logged in is not enough: the relay runs the same access check as
	// /api/resolve against the live race.
	mock.ExpectQuery(`SELECT subscription_status FROM users`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_status"}).AddRow("none"))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM day_passes`).
		WithArgs("user-1", "race-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	w := performRelay("/api/stream/lmsc-18-j-carter.mp3", "/lmsc-18-j-carter.mp3", map[string]string{
		auth.CtxUserID: "user-1",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.NotContains(t, w.Body.String(), "AUDIO-BYTES")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayStreamSubscriber(t *testing.T) {
	mock := setupRelayTest(t)

	mock.ExpectQuery(`SELECT subscription_status FROM users`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_status"}).AddRow("active"))

	w := performRelay("/api/stream/lmsc-18-j-carter.mp3", "/lmsc-18-j-carter.mp3", map[string]string{
		auth.CtxUserID: "user-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AUDIO-BYTES", w.Body.String())
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
}

func TestRelayStreamSessionScopedToMount(t *testing.T) {
	setupRelayTest(t)

	session, err := sessions.Begin(context.Background(), "user-1", "/lmsc-18-j-carter.mp3")
	require.NoError(t, err)

	// The sid only covers the mount its session was resolved for.
	w := performRelay("/api/stream/plm-5-m-reyes.mp3?sid="+session.ID, "/plm-5-m-reyes.mp3", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Prefix and extension variants of the same mount stay covered.
	w = performRelay("/api/stream/icecast/lmsc-18-j-carter?sid="+session.ID, "/icecast/lmsc-18-j-carter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AUDIO-BYTES", w.Body.String())
}

func TestRelayStreamBogusSession(t *testing.T) {
	setupRelayTest(t)

	w := performRelay("/api/stream/lmsc-18-j-carter.mp3?sid=not-a-session", "/lmsc-18-j-carter.mp3", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
