package main

import (
	"context"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telecare-calling/internal/config"
	"telecare-calling/internal/database"
	callsHandler "telecare-calling/internal/handler/http/calls"
	pushHandler "telecare-calling/internal/handler/http/push"
	wsHandler "telecare-calling/internal/handler/ws"
	"telecare-calling/internal/media"
	"telecare-calling/internal/middleware"
	"telecare-calling/internal/repository"
	"telecare-calling/internal/repository/cassandra"
	"telecare-calling/internal/repository/cockroach"
	redisRepo "telecare-calling/internal/repository/redis"
	"telecare-calling/internal/service/call"
	"telecare-calling/internal/service/history"
	"telecare-calling/internal/signalstore"
	fsstore "telecare-calling/internal/signalstore/firestore"
	"telecare-calling/internal/signalstore/memory"
	"telecare-calling/pkg/constants"
	"telecare-calling/pkg/logger"
	"telecare-calling/pkg/push"
)

func main() {
	ctx := context.Background()

	// 1. Configuration and logging
	cfg := config.LoadConfig()
	if err := logger.Init(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		logger.InitDefault()
	}
	defer logger.Log.Sync()

	// 2. Signaling document store
	store, closeStore := openSignalStore(ctx, cfg)
	defer closeStore()

	sessionRepo := repository.NewSessionRepository(store)
	registryRepo := repository.NewRegistryRepository(store)
	candidateRepo := repository.NewCandidateRepository(store)
	conversationNotifier := repository.NewConversationNotifier(store)
	pushTokenRepo := repository.NewPushTokenRepository(store)

	// 3. Presence via Redis. Optional: without it peers just show as
	// offline and rate limiting is skipped.
	var presence call.PresenceChecker
	var rateLimiter *middleware.RateLimiter
	redisDB, err := database.NewRedisDB(ctx, &database.RedisConfig{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Warn("running without presence: redis unavailable", zap.Error(err))
	} else {
		defer redisDB.Close()
		redisDB.StartHealthCheck(ctx, 10*time.Second)
		presence = redisRepo.NewPresenceRepository(redisDB.Client)
		rateLimiter = middleware.NewRateLimiter(redisDB.Client, 30, time.Minute)
		logger.Info("connected to redis", zap.String("addr", cfg.GetRedisAddr()))
	}

	// 4. Call-history archive via CockroachDB. Optional; archived with
	// retry since the database may come up after the gateway.
	var historyRepo *cockroach.HistoryRepository
	if db := connectCockroach(ctx, cfg); db != nil {
		defer db.Close()
		historyRepo = cockroach.NewHistoryRepository(db.Pool)
	}

	// 5. Transcript archive via Cassandra. Optional.
	var transcriptRepo *cassandra.TranscriptRepository
	if hosts := cfg.GetCassandraHosts(); len(hosts) > 0 {
		cassandraDB, err := database.NewCassandraDB(&database.CassandraConfig{
			Hosts:    hosts,
			Keyspace: cfg.CassandraKeyspace,
		})
		if err != nil {
			logger.Warn("running without transcript archive: cassandra unavailable", zap.Error(err))
		} else {
			defer cassandraDB.Close()
			transcriptRepo = cassandra.NewTranscriptRepository(cassandraDB.Session)
			logger.Info("connected to cassandra", zap.Strings("hosts", hosts))
		}
	}

	// history.Service tolerates nil stores, so one wiring covers all
	// deployment shapes.
	var archiver call.Archiver
	var historyStore callsHandler.HistoryStore
	var transcriptStore callsHandler.TranscriptStore
	if historyRepo != nil {
		historyStore = historyRepo
		archiver = history.NewService(historyRepo, transcriptRepo)
	}
	if transcriptRepo != nil {
		transcriptStore = transcriptRepo
	}

	// 6. Push providers for waking closed apps on incoming calls
	providers, err := push.NewProvidersFromEnv()
	if err != nil {
		logger.Fatal("failed to initialize push providers", zap.Error(err))
	}
	if cfg.IsProduction() {
		if _, mock := providers[push.PlatformFCM].(*push.MockProvider); mock {
			logger.Fatal("mock push provider not allowed in production")
		}
	}
	pushSvc := push.NewService(pushTokenRepo, providers)

	// 7. Media pipeline factory
	mediaFactory := &media.PionFactory{
		Sources:     &media.StaticSourceFactory{},
		STUNServers: cfg.GetSTUNServers(),
	}

	// 8. WebSocket calling bridge
	hub := wsHandler.NewHub(wsHandler.HubConfig{
		Sessions:       sessionRepo,
		Registry:       registryRepo,
		Candidates:     candidateRepo,
		Media:          mediaFactory,
		Conversations:  conversationNotifier,
		Presence:       presence,
		Push:           pushSvc,
		History:        archiver,
		RingTimeout:    cfg.RingTimeout,
		AllowedOrigins: cfg.GetAllowedOrigins(),
	})
	defer hub.Shutdown()

	// 9. Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(cfg.GetAllowedOrigins()))
	router.Use(middleware.PrometheusMiddleware())

	healthz := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "calling-gateway",
			"time":    time.Now().UTC(),
		})
	}
	router.GET("/health", healthz)
	router.GET("/healthz", healthz)
	router.GET("/metrics", middleware.MetricsHandler())

	callsHdlr := callsHandler.NewHandler(historyStore, transcriptStore)
	pushHdlr := pushHandler.NewHandler(pushTokenRepo)

	v1 := router.Group("/v1")
	if rateLimiter != nil {
		v1.Use(rateLimiter.Middleware())
	}
	{
		v1.GET("/ws/calling", hub.ServeWS)
		v1.POST("/push/tokens", pushHdlr.RegisterToken)
		if historyStore != nil {
			v1.GET("/calls/history", callsHdlr.ListHistory)
			v1.GET("/calls/:id", callsHdlr.GetCall)
			v1.GET("/calls/:id/transcript", callsHdlr.GetTranscript)
		}
	}

	// 10. Serve with graceful shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("calling gateway starting",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	hub.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

// openSignalStore selects the signaling backend. The in-memory store only
// coordinates clients connected to this one process; anything multi-node
// needs Firestore.
func openSignalStore(ctx context.Context, cfg *config.Config) (signalstore.Store, func()) {
	switch cfg.StoreBackend {
	case "firestore":
		var creds []byte
		if cfg.FirestoreCredsPath != "" {
			content, err := os.ReadFile(cfg.FirestoreCredsPath)
			if err != nil {
				logger.Fatal("failed to read firestore credentials", zap.Error(err))
			}
			creds = content
		}
		store, err := fsstore.New(ctx, &fsstore.Config{
			ProjectID:       cfg.FirestoreProjectID,
			CredentialsJSON: creds,
		})
		if err != nil {
			logger.Fatal("failed to open firestore store", zap.Error(err))
		}
		return store, func() { store.Close() }
	case "memory", "":
		if cfg.IsProduction() {
			logger.Fatal("memory store not allowed in production; set STORE_BACKEND=firestore")
		}
		logger.Info("using in-memory signaling store")
		return memory.New(), func() {}
	default:
		logger.Fatal("unknown store backend", zap.String("backend", cfg.StoreBackend))
		return nil, func() {}
	}
}

// connectCockroach dials the history database with exponential backoff.
// Returns nil when it stays unreachable; the gateway then runs without the
// history endpoints.
func connectCockroach(ctx context.Context, cfg *config.Config) *database.CockroachDB {
	const maxRetries = 5
	baseDelay := 1 * time.Second
	maxDelay := 30 * time.Second

	var db *database.CockroachDB
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = database.NewCockroachDB(ctx, cfg.GetDBConnectionString(), nil)
		if err == nil {
			logger.Info("connected to cockroachdb", zap.Int("attempt", attempt))
			return db
		}
		if attempt == maxRetries {
			break
		}
		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}
		logger.Warn("cockroachdb connection failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		time.Sleep(delay)
	}

	logger.Warn("running without call-history persistence", zap.Error(err))
	return nil
}
