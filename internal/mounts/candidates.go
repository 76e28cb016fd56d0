package mounts

import (
	"strings"

	"github.com/tracksidelive/trackside/internal/feeds"
)

// CandidateConfig names the URL bases candidate lists are built from.
// RelayBase is this service's own stream relay; Origins are the Icecast
// servers (and any CDN fronts) a client may reach directly.
type CandidateConfig struct {
	RelayBase string
	Origins   []string
}

// plainPath strips the icecast prefix so variants can be rebuilt from a
// single canonical form.
func plainPath(mount string) string {
	return strings.TrimPrefix(mount, feeds.IcecastPrefix)
}

// Candidates builds the ordered, de-duplicated URL list for a resolved
// mount. The relay (with the session token when present) always leads, since
// it is the only candidate that works behind restrictive proxies; direct
// origin URLs follow in icecast-prefixed, plain, and extensionless variants.
func Candidates(cfg CandidateConfig, mount, sessionID string) []string {
	plain := plainPath(mount)
	bare := strings.TrimSuffix(plain, ".mp3")

	var urls []string
	if cfg.RelayBase != "" {
		relay := strings.TrimSuffix(cfg.RelayBase, "/") + plain
		if sessionID != "" {
			urls = append(urls, relay+"?sid="+sessionID)
		}
		urls = append(urls, relay)
	}

	for _, origin := range cfg.Origins {
		origin = strings.TrimSuffix(origin, "/")
		urls = append(urls,
			origin+feeds.IcecastPrefix+plain,
			origin+plain,
			origin+feeds.IcecastPrefix+bare,
			origin+bare,
		)
	}

	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
