package feeds

import (
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/tracksidelive/trackside/pkg/logging"
)

// csvTable is a parsed CSV body with case-insensitive header lookup and
// positional fallback for feeds whose header row drifts over time.
type csvTable struct {
	header map[string]int
	rows   [][]string
}

// parseCSVTable parses loosely-escaped CSV text: quoted fields with embedded
// commas are honored, ragged rows are kept, and blank lines are skipped.
func parseCSVTable(text string) (*csvTable, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: empty body")
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, exists := header[key]; !exists {
			header[key] = i
		}
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		blank := true
		for _, f := range rec {
			if strings.TrimSpace(f) != "" {
				blank = false
				break
			}
		}
		if !blank {
			rows = append(rows, rec)
		}
	}

	return &csvTable{header: header, rows: rows}, nil
}

// field returns the value for any of the given header names, falling back
// to the positional index when no name matches. Rows shorter than the
// resolved index yield an empty string rather than failing.
func (t *csvTable) field(row []string, pos int, names ...string) string {
	idx := -1
	for _, name := range names {
		if i, ok := t.header[strings.ToLower(name)]; ok {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = pos
	}
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// hasColumn reports whether any of the names appears in the header row.
func (t *csvTable) hasColumn(names ...string) bool {
	for _, name := range names {
		if _, ok := t.header[strings.ToLower(name)]; ok {
			return true
		}
	}
	return false
}

// ParseDrivers maps driver feed text to DriverRecords. Slug collisions are
// logged and the first record wins; the loser is kept in the directory but
// resolves to the same mount (no uniqueness is enforceable from the feed).
func ParseDrivers(text string, logger logging.Logger) ([]DriverRecord, error) {
	t, err := parseCSVTable(text)
	if err != nil {
		return nil, err
	}

	drivers := make([]DriverRecord, 0, len(t.rows))
	byMount := make(map[string]string, len(t.rows))
	for _, row := range t.rows {
		d := NewDriverRecord(
			t.field(row, 0, "number", "car", "car number"),
			t.field(row, 1, "name", "driver", "driver name"),
			t.field(row, 2, "class", "classes", "class type"),
			t.field(row, 3, "logo", "image"),
			t.field(row, 4, "frequency", "freq"),
		)
		if d.Number == "" && d.Name == "" {
			continue
		}
		if prev, collides := byMount[d.PlainMount]; collides && logger != nil {
			logger.WithFields(logging.Fields{
				"mount":  d.PlainMount,
				"first":  prev,
				"second": d.Name,
			}).Warn("Driver mount slug collision; streams will overlap")
		} else {
			byMount[d.PlainMount] = d.Name
		}
		drivers = append(drivers, d)
	}
	return drivers, nil
}

// eventTimeLayouts are the timestamp shapes the event feed has been seen
// to use. All are interpreted in US Eastern time.
var eventTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"2006-01-02",
}

func parseEventTime(value string) (time.Time, bool) {
	for _, layout := range eventTimeLayouts {
		if ts, err := time.ParseInLocation(layout, value, Eastern()); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// splitClassOffset is the fixed gap between the two sessions of an event
// row that does not carry a class column: PLM runs first, LMSC follows.
const splitClassOffset = 2 * time.Hour

// ParseEvents maps event feed text to EventRecords. A row without a class
// column is split into a PLM record at the scheduled start and an LMSC
// record two hours later, sharing the race id.
func ParseEvents(text string, logger logging.Logger) ([]EventRecord, error) {
	t, err := parseCSVTable(text)
	if err != nil {
		return nil, err
	}

	hasClass := t.hasColumn("class", "class type", "classes")
	events := make([]EventRecord, 0, len(t.rows))
	for _, row := range t.rows {
		raceID := t.field(row, 0, "race id", "raceid", "race_id", "id")
		class := ""
		if hasClass {
			class = t.field(row, 1, "class", "class type", "classes")
		}
		track := t.field(row, 2, "track")
		location := t.field(row, 3, "location", "city")
		startRaw := t.field(row, 4, "start", "date", "start time", "datetime")

		start, ok := parseEventTime(startRaw)
		if !ok {
			if logger != nil {
				logger.WithFields(logging.Fields{
					"race_id": raceID,
					"start":   startRaw,
				}).Warn("Skipping event row with unparseable start time")
			}
			continue
		}

		if raceID == "" {
			raceID = Slugify(track) + "-" + start.Format("20060102")
		}

		if class != "" {
			classes := NormalizeClasses(class)
			classType := ""
			if len(classes) > 0 {
				classType = classes[0]
			}
			events = append(events, EventRecord{
				RaceID:    raceID,
				ClassType: classType,
				Track:     track,
				Location:  location,
				Start:     start,
			})
			continue
		}

		// No class column: the row covers both series back to back.
		events = append(events,
			EventRecord{RaceID: raceID, ClassType: "PLM", Track: track, Location: location, Start: start},
			EventRecord{RaceID: raceID, ClassType: "LMSC", Track: track, Location: location, Start: start.Add(splitClassOffset)},
		)
	}
	return events, nil
}
