package handlers

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tracksidelive/trackside/internal/feeds"
	"github.com/tracksidelive/trackside/internal/icecast"
	"github.com/tracksidelive/trackside/internal/mounts"
	"github.com/tracksidelive/trackside/internal/playback"
	"github.com/tracksidelive/trackside/internal/schedule"
	stripeclient "github.com/tracksidelive/trackside/internal/stripe"
	"github.com/tracksidelive/trackside/internal/twilio"
	"github.com/tracksidelive/trackside/pkg/email"
	"github.com/tracksidelive/trackside/pkg/logging"
)

var (
	db            *sql.DB
	logger        logging.Logger
	stripeClient  *stripeclient.Client
	twilioClient  *twilio.Client
	emailSender   *email.Sender
	feedStore     *feeds.Store
	icecastClient *icecast.Client
	sessions      *playback.Registry
	metrics       *TracksideMetrics
	cfg           Config
)

// Config carries the handler-level settings resolved from the environment.
type Config struct {
	JWTSecret    []byte
	AppBaseURL   string // public base URL, used in checkout redirects and emails
	SubPriceID   string // Stripe price for the monthly subscription
	PassPriceID  string // Stripe price for a single-race day pass
	TrialDays    int64
	DayPassTTL   time.Duration // how long a purchased pass stays valid
	Window       schedule.Policy
	Candidates   mounts.CandidateConfig
	RelayOrigins []string // origin base URLs the relay pulls from, in order
}

// TracksideMetrics holds the domain Prometheus metrics.
type TracksideMetrics struct {
	Registrations *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	Checkouts     *prometheus.CounterVec
	WebhookEvents *prometheus.CounterVec
	Resolutions   *prometheus.CounterVec
	RelayRequests *prometheus.CounterVec
	RelayBytes    prometheus.Counter
	FeedCacheOps  *prometheus.CounterVec
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections *prometheus.GaugeVec
}

// Deps bundles the collaborators the handlers need.
type Deps struct {
	Stripe   *stripeclient.Client
	Twilio   *twilio.Client
	Email    *email.Sender
	Feeds    *feeds.Store
	Icecast  *icecast.Client
	Sessions *playback.Registry
	Metrics  *TracksideMetrics
	Config   Config
}

// Init initializes the handlers with the database, logger and collaborators
func Init(database *sql.DB, log logging.Logger, deps Deps) {
	db = database
	logger = log
	stripeClient = deps.Stripe
	twilioClient = deps.Twilio
	emailSender = deps.Email
	feedStore = deps.Feeds
	icecastClient = deps.Icecast
	sessions = deps.Sessions
	metrics = deps.Metrics
	cfg = deps.Config
}
