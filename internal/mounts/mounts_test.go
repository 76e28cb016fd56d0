package mounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksidelive/trackside/internal/feeds"
	"github.com/tracksidelive/trackside/internal/icecast"
)

var carter = feeds.NewDriverRecord("18", "J Carter", "LMSC", "", "454.000")

func activeSet(paths ...string) icecast.ActiveMountSet {
	set := make(icecast.ActiveMountSet, len(paths))
	for _, p := range paths {
		set[p] = icecast.Source{ListenURL: "http://radio.example:8000" + p}
	}
	return set
}

func TestResolveEmptySetIsOptimistic(t *testing.T) {
	res := Resolve(carter, nil)
	assert.True(t, res.Active)
	assert.Equal(t, carter.PlainMount, res.Mount)
	assert.Equal(t, EvidenceOptimistic, res.Evidence)
}

func TestResolvePrefersIcecastMount(t *testing.T) {
	res := Resolve(carter, activeSet(carter.IcecastMount))
	assert.True(t, res.Active)
	assert.Equal(t, carter.IcecastMount, res.Mount)
	assert.Equal(t, EvidenceConfirmed, res.Evidence)
}

func TestResolveExactPlainMount(t *testing.T) {
	res := Resolve(carter, activeSet(carter.PlainMount, "/plm-5-m-reyes.mp3"))
	assert.True(t, res.Active)
	assert.Equal(t, carter.PlainMount, res.Mount)
	assert.Equal(t, EvidenceConfirmed, res.Evidence)
}

func TestResolveHeuristicMatch(t *testing.T) {
	// Encoder used a different name slug; class-number hint still matches.
	res := Resolve(carter, activeSet("/lmsc-18-james-carter.mp3"))
	assert.True(t, res.Active)
	assert.Equal(t, "/lmsc-18-james-carter.mp3", res.Mount)
	assert.Equal(t, EvidenceHeuristic, res.Evidence)
}

func TestResolveNoMatchIsInactive(t *testing.T) {
	res := Resolve(carter, activeSet("/plm-5-m-reyes.mp3"))
	assert.False(t, res.Active)
	assert.Equal(t, carter.PlainMount, res.Mount)
	assert.Equal(t, EvidenceOptimistic, res.Evidence)
}

func TestCandidatesOrderAndDedup(t *testing.T) {
	cfg := CandidateConfig{
		RelayBase: "https://app.example/api/stream",
		Origins:   []string{"http://radio.example:8000"},
	}

	urls := Candidates(cfg, "/lmsc-18-j-carter.mp3", "sess-1")
	require.NotEmpty(t, urls)

	assert.Equal(t, "https://app.example/api/stream/lmsc-18-j-carter.mp3?sid=sess-1", urls[0])
	assert.Equal(t, "https://app.example/api/stream/lmsc-18-j-carter.mp3", urls[1])
	assert.Contains(t, urls, "http://radio.example:8000/icecast/lmsc-18-j-carter.mp3")
	assert.Contains(t, urls, "http://radio.example:8000/lmsc-18-j-carter.mp3")
	assert.Contains(t, urls, "http://radio.example:8000/lmsc-18-j-carter")

	seen := make(map[string]struct{})
	for _, u := range urls {
		_, dup := seen[u]
		assert.False(t, dup, "duplicate candidate %s", u)
		seen[u] = struct{}{}
	}
}

func TestCandidatesIcecastMountInput(t *testing.T) {
	cfg := CandidateConfig{Origins: []string{"http://radio.example:8000"}}

	// Prefixed and plain inputs produce the same variant set.
	fromIcecast := Candidates(cfg, "/icecast/lmsc-18-j-carter.mp3", "")
	fromPlain := Candidates(cfg, "/lmsc-18-j-carter.mp3", "")
	assert.Equal(t, fromPlain, fromIcecast)
}

func TestCandidatesNoSession(t *testing.T) {
	cfg := CandidateConfig{RelayBase: "https://app.example/api/stream"}
	urls := Candidates(cfg, "/lmsc-18-j-carter.mp3", "")
	require.Len(t, urls, 1)
	assert.NotContains(t, urls[0], "sid=")
}
