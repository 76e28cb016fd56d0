package icecast

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksidelive/trackside/pkg/logging"
)

func testLogger() logging.Logger {
	logger := logging.NewLogger()
	logger.SetOutput(io.Discard)
	return logger
}

const statusSingle = `{"icestats":{"source":{"listenurl":"http://radio.example:8000/lmsc-18-j-carter.mp3","server_name":"J Carter","listeners":12}}}`

const statusMulti = `{"icestats":{"source":[
	{"listenurl":"http://radio.example:8000/lmsc-18-j-carter.mp3","listeners":12},
	{"listenurl":"http://radio.example:8000/plm-5-m-reyes.mp3","listeners":3}
]}}`

const statusEmpty = `{"icestats":{"admin":"icemaster@localhost"}}`

func TestParseSourcesSingleObject(t *testing.T) {
	sources, err := parseSources([]byte(statusSingle))
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, 12, sources[0].Listeners)
}

func TestParseSourcesArray(t *testing.T) {
	sources, err := parseSources([]byte(statusMulti))
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestParseSourcesAbsent(t *testing.T) {
	sources, err := parseSources([]byte(statusEmpty))
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestMountPath(t *testing.T) {
	assert.Equal(t, "/lmsc-18-j-carter.mp3",
		mountPath("http://radio.example:8000/lmsc-18-j-carter.mp3"))
	// Garbage before the path still yields the mount via the regex fallback.
	assert.Equal(t, "/plm-5-m-reyes.mp3",
		mountPath("http://bad host:8000/plm-5-m-reyes.mp3"))
	assert.Empty(t, mountPath("http://radio.example:8000/"))
}

func TestActiveMounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statusMulti))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/status-json.xsl", 2*time.Second, testLogger())
	mounts, err := client.ActiveMounts(context.Background())
	require.NoError(t, err)

	assert.True(t, mounts.Contains("/lmsc-18-j-carter.mp3"))
	assert.True(t, mounts.Contains("/plm-5-m-reyes.mp3"))
	assert.False(t, mounts.Contains("/lmsc-88-t-nakamura.mp3"))
	assert.Len(t, mounts.Paths(), 2)
}

func TestActiveMountsServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second, testLogger())
	_, err := client.ActiveMounts(context.Background())
	assert.Error(t, err)
}
