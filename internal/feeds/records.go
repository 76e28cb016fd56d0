package feeds

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// IcecastPrefix is prepended to a mount path when the stream is addressed
// through the Icecast-prefixed route rather than the bare mount.
const IcecastPrefix = "/icecast"

// DriverRecord is one entry of the driver directory, derived
// deterministically from a CSV row and immutable once parsed.
type DriverRecord struct {
	Number    string
	Name      string
	ClassType string   // primary class label
	Classes   []string // ordered, de-duplicated, upper-cased
	Logo      string
	Frequency string

	// PlainMount and IcecastMount are pure functions of class, number and
	// name; they are precomputed at parse time.
	PlainMount   string
	IcecastMount string
}

// EventRecord is one scheduled race session.
type EventRecord struct {
	RaceID    string
	ClassType string
	Track     string
	Location  string
	Start     time.Time
}

// MountPath derives the canonical mount path for a driver:
// /<class-slug>-<number-slug>-<name-slug>.mp3
func MountPath(class, number, name string) string {
	return fmt.Sprintf("/%s-%s-%s.mp3", Slugify(class), Slugify(number), Slugify(name))
}

// NewDriverRecord builds a DriverRecord from raw CSV field values.
func NewDriverRecord(number, name, classField, logo, frequency string) DriverRecord {
	classes := NormalizeClasses(classField)
	classType := ""
	if len(classes) > 0 {
		classType = classes[0]
	}

	plain := MountPath(classType, number, name)
	return DriverRecord{
		Number:       strings.TrimSpace(number),
		Name:         strings.TrimSpace(name),
		ClassType:    classType,
		Classes:      classes,
		Logo:         strings.TrimSpace(logo),
		Frequency:    strings.TrimSpace(frequency),
		PlainMount:   plain,
		IcecastMount: IcecastPrefix + plain,
	}
}

var classTokenRe = regexp.MustCompile(`[A-Za-z0-9]+`)

// NormalizeClasses accepts the loose class field syntaxes seen in the feeds:
// a delimited string (comma, slash, pipe or semicolon), a bracketed list,
// or free text from which alphanumeric tokens are extracted as a last
// resort. Results are upper-cased and de-duplicated preserving order.
func NormalizeClasses(field string) []string {
	field = strings.TrimSpace(field)
	field = strings.TrimPrefix(field, "[")
	field = strings.TrimSuffix(field, "]")
	if field == "" {
		return nil
	}

	var parts []string
	if idx := strings.IndexAny(field, ",/|;"); idx >= 0 {
		parts = strings.FieldsFunc(field, func(r rune) bool {
			return r == ',' || r == '/' || r == '|' || r == ';'
		})
	} else {
		parts = classTokenRe.FindAllString(field, -1)
	}

	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		p = strings.Trim(p, `"' `)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

var (
	easternOnce sync.Once
	easternLoc  *time.Location
)

// Eastern returns the US Eastern location the event feed timestamps are
// assumed to be in. Falls back to a fixed EST offset when the tz database
// is unavailable.
func Eastern() *time.Location {
	easternOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("EST", -5*60*60)
		}
		easternLoc = loc
	})
	return easternLoc
}
