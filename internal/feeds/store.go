package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tracksidelive/trackside/pkg/cache"
	"github.com/tracksidelive/trackside/pkg/logging"
)

// Source labels reported alongside directory data so callers can tell a
// live feed from the hardcoded fallback.
const (
	SourceFeed     = "feed"
	SourceFallback = "fallback"
)

const (
	cacheKeyDrivers = "drivers"
	cacheKeyEvents  = "events"

	// DirectoryTTL is how long a fetched feed is served before refetching.
	DirectoryTTL = 60 * time.Second
)

// StoreConfig configures the feed store.
type StoreConfig struct {
	DriversURL string
	EventsURL  string
	Timeout    time.Duration
	// StaleWhileRevalidate extends how long an expired copy may be served
	// while a background refresh runs.
	StaleWhileRevalidate time.Duration
}

type driverFeed struct {
	raw     string
	drivers []DriverRecord
}

type eventFeed struct {
	raw    string
	events []EventRecord
}

// Store fetches, parses and caches the driver and event feeds. All getters
// follow the feed failure policy: they degrade to the fallback dataset and
// never return an error to the caller.
type Store struct {
	client *resty.Client
	cache  *cache.Cache
	logger logging.Logger
	cfg    StoreConfig
}

// NewStore creates a feed store with a 60 second directory cache.
func NewStore(cfg StoreConfig, logger logging.Logger, hooks cache.MetricsHooks) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Store{
		client: resty.New().SetTimeout(timeout),
		cache: cache.New(cache.Options{
			TTL:                  DirectoryTTL,
			StaleWhileRevalidate: cfg.StaleWhileRevalidate,
			MaxEntries:           8,
		}, hooks),
		logger: logger,
		cfg:    cfg,
	}
}

// fetch retrieves a feed body with a cache-busting query parameter, the
// same way the original clients defeated intermediary caches.
func (s *Store) fetch(ctx context.Context, url string) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("t", fmt.Sprintf("%d", time.Now().Unix())).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() >= 400 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}
	return string(resp.Body()), nil
}

func (s *Store) loadDrivers(ctx context.Context, _ string) (interface{}, bool, error) {
	raw, err := s.fetch(ctx, s.cfg.DriversURL)
	if err != nil {
		return nil, false, err
	}
	drivers, err := ParseDrivers(raw, s.logger)
	if err != nil {
		return nil, false, err
	}
	return driverFeed{raw: raw, drivers: drivers}, true, nil
}

func (s *Store) loadEvents(ctx context.Context, _ string) (interface{}, bool, error) {
	raw, err := s.fetch(ctx, s.cfg.EventsURL)
	if err != nil {
		return nil, false, err
	}
	events, err := ParseEvents(raw, s.logger)
	if err != nil {
		return nil, false, err
	}
	return eventFeed{raw: raw, events: events}, true, nil
}

// Drivers returns the parsed driver directory and its source label.
func (s *Store) Drivers(ctx context.Context) ([]DriverRecord, string) {
	val, ok, err := s.cache.Get(ctx, cacheKeyDrivers, s.loadDrivers)
	if !ok {
		s.logger.WithError(err).Warn("Driver feed unavailable; serving fallback directory")
		return FallbackDrivers(), SourceFallback
	}
	return val.(driverFeed).drivers, SourceFeed
}

// Events returns the parsed event schedule, empty on feed failure.
func (s *Store) Events(ctx context.Context) []EventRecord {
	val, ok, err := s.cache.Get(ctx, cacheKeyEvents, s.loadEvents)
	if !ok {
		s.logger.WithError(err).Warn("Event feed unavailable; serving empty schedule")
		return FallbackEvents()
	}
	return val.(eventFeed).events
}

// RawDrivers returns the last-fetched driver CSV body for passthrough
// serving, or a rendering of the fallback directory when the feed is down.
func (s *Store) RawDrivers(ctx context.Context) (string, string) {
	val, ok, _ := s.cache.Get(ctx, cacheKeyDrivers, s.loadDrivers)
	if !ok {
		return renderDriversCSV(FallbackDrivers()), SourceFallback
	}
	return val.(driverFeed).raw, SourceFeed
}

// RawEvents returns the last-fetched event CSV body, or a bare header row
// when the feed is down.
func (s *Store) RawEvents(ctx context.Context) (string, string) {
	val, ok, _ := s.cache.Get(ctx, cacheKeyEvents, s.loadEvents)
	if !ok {
		return "race id,class,track,location,start\n", SourceFallback
	}
	return val.(eventFeed).raw, SourceFeed
}

// Refresh warms both cache entries. Used by the background feed job so
// interactive requests rarely pay the upstream fetch.
func (s *Store) Refresh(ctx context.Context) {
	s.Drivers(ctx)
	s.Events(ctx)
}

func renderDriversCSV(drivers []DriverRecord) string {
	var b strings.Builder
	b.WriteString("number,name,class,logo,frequency\n")
	for _, d := range drivers {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s\n",
			d.Number, csvQuote(d.Name), strings.Join(d.Classes, "/"), d.Logo, d.Frequency)
	}
	return b.String()
}

func csvQuote(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
