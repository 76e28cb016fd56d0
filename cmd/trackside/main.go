package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tracksidelive/trackside/internal/feeds"
	"github.com/tracksidelive/trackside/internal/handlers"
	"github.com/tracksidelive/trackside/internal/icecast"
	"github.com/tracksidelive/trackside/internal/mounts"
	"github.com/tracksidelive/trackside/internal/playback"
	"github.com/tracksidelive/trackside/internal/schedule"
	stripeclient "github.com/tracksidelive/trackside/internal/stripe"
	"github.com/tracksidelive/trackside/internal/twilio"
	"github.com/tracksidelive/trackside/pkg/auth"
	"github.com/tracksidelive/trackside/pkg/cache"
	"github.com/tracksidelive/trackside/pkg/config"
	"github.com/tracksidelive/trackside/pkg/database"
	"github.com/tracksidelive/trackside/pkg/email"
	"github.com/tracksidelive/trackside/pkg/logging"
	"github.com/tracksidelive/trackside/pkg/monitoring"
	"github.com/tracksidelive/trackside/pkg/redis"
	"github.com/tracksidelive/trackside/pkg/server"
	"github.com/tracksidelive/trackside/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("trackside")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Trackside (Live Audio API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")
	stripeKey := config.RequireEnv("STRIPE_SECRET_KEY")
	stripeWebhookSecret := config.RequireEnv("STRIPE_WEBHOOK_SECRET")

	driversURL := config.GetEnv("DRIVERS_FEED_URL", "https://feeds.tracksidelive.app/drivers.csv")
	eventsURL := config.GetEnv("EVENTS_FEED_URL", "https://feeds.tracksidelive.app/events.csv")
	icecastStatusURL := config.GetEnv("ICECAST_STATUS_URL", "http://localhost:8000/status-json.xsl")
	streamOrigins := config.GetEnvSlice("STREAM_ORIGINS", []string{"http://localhost:8000"})
	appBaseURL := config.GetEnv("APP_BASE_URL", "http://localhost:18010")

	// Connect to database and apply the embedded schema
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if err := database.ApplySchema(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("trackside", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("trackside", version.Version, version.GitCommit)

	// Add health checks. Feed and Icecast failures degrade rather than fail:
	// both have explicit fallbacks in the serving path.
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("icecast", monitoring.HTTPServiceHealthCheck("icecast", icecastStatusURL))
	healthChecker.AddCheck("driver_feed", monitoring.HTTPServiceHealthCheck("driver_feed", driversURL))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":      dbURL,
		"JWT_SECRET":        jwtSecret,
		"STRIPE_SECRET_KEY": stripeKey,
	}))

	// Create domain metrics
	feedCacheOps := metricsCollector.NewCounter("feed_cache_ops_total", "Feed cache operations", []string{"key", "op"})
	relayBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trackside_relay_bytes_total",
		Help: "Audio bytes relayed to listeners",
	})
	metricsCollector.RegisterCustomMetric("relay_bytes_total", relayBytes)

	metrics := &handlers.TracksideMetrics{
		Registrations: metricsCollector.NewCounter("registrations_total", "Account registrations", []string{"status"}),
		Logins:        metricsCollector.NewCounter("logins_total", "Login attempts", []string{"status"}),
		Checkouts:     metricsCollector.NewCounter("checkouts_total", "Stripe checkout sessions created", []string{"purpose"}),
		WebhookEvents: metricsCollector.NewCounter("webhook_events_total", "Stripe webhook events received", []string{"type"}),
		Resolutions:   metricsCollector.NewCounter("stream_resolutions_total", "Mount resolutions", []string{"evidence"}),
		RelayRequests: metricsCollector.NewCounter("relay_requests_total", "Stream relay requests", []string{"status"}),
		RelayBytes:    relayBytes,
		FeedCacheOps:  feedCacheOps,
	}
	metrics.DBQueries, metrics.DBDuration, metrics.DBConnections = metricsCollector.CreateDatabaseMetrics()

	// Feed store with cache metrics wired through
	cacheHooks := cache.MetricsHooks{
		OnHit:   func(key string) { feedCacheOps.WithLabelValues(key, "hit").Inc() },
		OnMiss:  func(key string) { feedCacheOps.WithLabelValues(key, "miss").Inc() },
		OnStale: func(key string) { feedCacheOps.WithLabelValues(key, "stale").Inc() },
		OnStore: func(key string) { feedCacheOps.WithLabelValues(key, "store").Inc() },
		OnError: func(key string) { feedCacheOps.WithLabelValues(key, "error").Inc() },
	}
	feedStore := feeds.NewStore(feeds.StoreConfig{
		DriversURL:           driversURL,
		EventsURL:            eventsURL,
		StaleWhileRevalidate: config.GetEnvDuration("FEED_STALE_WINDOW", 5*time.Minute),
	}, logger, cacheHooks)

	icecastClient := icecast.NewClient(icecastStatusURL, 5*time.Second, logger)

	// Playback sessions: Redis when configured, in-process otherwise
	var sessionStore playback.Store
	var memStore *playback.MemoryStore
	sessionTTL := config.GetEnvDuration("PLAYBACK_SESSION_TTL", 12*time.Hour)
	if redisURL := config.GetEnv("REDIS_URL", ""); redisURL != "" {
		client, err := redis.NewClientFromURL(context.Background(), redisURL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer client.Close()
		sessionStore = playback.NewRedisStore(client, sessionTTL)
		logger.Info("Playback sessions stored in Redis")
	} else {
		memStore = playback.NewMemoryStore(sessionTTL)
		sessionStore = memStore
	}
	registry := playback.NewRegistry(sessionStore, logger)

	stripeClient := stripeclient.NewClient(stripeclient.Config{
		SecretKey:     stripeKey,
		WebhookSecret: stripeWebhookSecret,
		Logger:        logger,
	})

	// Twilio Verify is optional; without it the SMS endpoints report 503.
	var twilioClient *twilio.Client
	if sid := config.GetEnv("TWILIO_ACCOUNT_SID", ""); sid != "" {
		twilioClient = twilio.NewClient(twilio.Config{
			AccountSID: sid,
			AuthToken:  config.RequireEnv("TWILIO_AUTH_TOKEN"),
			ServiceSID: config.RequireEnv("TWILIO_VERIFY_SERVICE_SID"),
			Logger:     logger,
		})
	}

	// SMTP is optional as well; registration still works without the email.
	var emailSender *email.Sender
	if host := config.GetEnv("SMTP_HOST", ""); host != "" {
		emailSender = email.NewSender(email.Config{
			Host:     host,
			Port:     config.GetEnv("SMTP_PORT", "587"),
			User:     config.GetEnv("SMTP_USER", ""),
			Password: config.GetEnv("SMTP_PASSWORD", ""),
			From:     config.GetEnv("SMTP_FROM", "no-reply@tracksidelive.app"),
			FromName: "Trackside Live",
		})
	}

	// Initialize handlers
	handlers.Init(db, logger, handlers.Deps{
		Stripe:   stripeClient,
		Twilio:   twilioClient,
		Email:    emailSender,
		Feeds:    feedStore,
		Icecast:  icecastClient,
		Sessions: registry,
		Metrics:  metrics,
		Config: handlers.Config{
			JWTSecret:   []byte(jwtSecret),
			AppBaseURL:  appBaseURL,
			SubPriceID:  config.RequireEnv("STRIPE_SUBSCRIPTION_PRICE_ID"),
			PassPriceID: config.RequireEnv("STRIPE_DAY_PASS_PRICE_ID"),
			TrialDays:   int64(config.GetEnvInt("SUBSCRIPTION_TRIAL_DAYS", 0)),
			DayPassTTL:  config.GetEnvDuration("DAY_PASS_TTL", 24*time.Hour),
			Window: schedule.Policy{
				PreRoll:  config.GetEnvDuration("LIVE_PRE_ROLL", schedule.DefaultPolicy().PreRoll),
				PostRoll: config.GetEnvDuration("LIVE_POST_ROLL", schedule.DefaultPolicy().PostRoll),
			},
			Candidates: mounts.CandidateConfig{
				RelayBase: appBaseURL + "/api/stream",
				Origins:   streamOrigins,
			},
			RelayOrigins: streamOrigins,
		},
	})

	// Start background jobs
	jobManager := handlers.NewJobManager(db, logger, feedStore, memStore)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobManager.Start(ctx)
	defer jobManager.Stop()

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "trackside", healthChecker, metricsCollector)

	secret := []byte(jwtSecret)
	{
		// Public endpoints
		router.POST("/api/auth/register", handlers.Register)
		router.GET("/api/auth/verify", handlers.VerifyEmail)
		router.POST("/api/auth/login", handlers.Login)
		router.POST("/api/auth/logout", handlers.Logout)

		// Feed passthrough and live status are public; the player gates
		// playback, not discovery.
		router.GET("/api/feeds/drivers.csv", handlers.GetDriversCSV)
		router.GET("/api/feeds/events.csv", handlers.GetEventsCSV)
		router.GET("/api/icecast/status", handlers.GetIcecastStatus)
		router.GET("/api/drivers", handlers.GetDrivers)
		router.GET("/api/live", handlers.GetLive)

		// Session probe works logged-out; identity is optional.
		probe := router.Group("")
		probe.Use(auth.OptionalJWTMiddleware(secret))
		{
			probe.GET("/api/auth/session", handlers.GetSession)
			// Relay accepts a sid token instead of a session for audio
			// elements that cannot send credentials.
			probe.GET("/api/stream/*mount", handlers.RelayStream)
		}

		// Authentication required endpoints
		protected := router.Group("")
		protected.Use(auth.JWTAuthMiddleware(secret))
		{
			protected.GET("/api/auth/me", handlers.GetUserInfo)
			protected.POST("/api/verify/phone/start", handlers.StartPhoneVerification)
			protected.POST("/api/verify/phone/check", handlers.CheckPhoneVerification)
			protected.POST("/api/billing/subscribe", handlers.CreateSubscriptionCheckout)
			protected.POST("/api/billing/day-pass", handlers.CreateDayPassCheckout)
			protected.POST("/api/billing/portal", handlers.CreateBillingPortal)
			protected.GET("/api/billing/day-passes", handlers.GetUserDayPasses)
			protected.GET("/api/resolve", handlers.ResolveStream)
			protected.POST("/api/playback", handlers.ReportPlayback)
		}

		// Webhook endpoints (signature-verified, no session auth)
		router.POST("/webhooks/stripe", handlers.HandleStripeWebhook)
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("trackside", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
