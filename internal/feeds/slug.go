package feeds

import (
	"strings"
)

// slugFallback is used when slugging an empty or fully non-alphanumeric
// string, so mount paths never contain empty segments.
const slugFallback = "unknown"

// Slugify derives a lower-case, hyphen-delimited, URL-safe token from a
// human-readable string. Idempotent: slugging a slug returns it unchanged.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphens
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return slugFallback
	}
	return out
}
