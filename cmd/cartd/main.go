package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-cart/config"
	"storefront-cart/internal/delivery/http/middleware"
	v1 "storefront-cart/internal/delivery/http/v1"
	"storefront-cart/internal/domain"
	"storefront-cart/internal/infrastructure/cache"
	"storefront-cart/internal/infrastructure/credentials"
	"storefront-cart/internal/infrastructure/record"
	"storefront-cart/internal/infrastructure/remotecart"
	"storefront-cart/internal/localcart"
	"storefront-cart/internal/notify"
	"storefront-cart/internal/usecase"
	"storefront-cart/pkg/logger"

	"github.com/NYTimes/gziphandler"
	"github.com/jackc/pgx/v5/pgxpool"
)

const serviceName = "cartd"

var version = "dev"

func main() {
	cfg := config.LoadConfig()

	// Initialize Logger
	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	// Record store backing the local cart and the session
	records, pool, err := openRecordStore(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.LocalStore).Msg("Failed to open record store")
	}
	if pool != nil {
		defer pool.Close()
	}
	log.Info().Str("store", cfg.LocalStore).Msg("Record store ready")

	// --- Modules Initialization ---

	broker := notify.NewBroker()
	localStore := localcart.New(records, cfg.LocalCartKey, broker)
	creds := credentials.New(records, cfg.CredentialsKey, credentials.WithSecret(cfg.JWTSecret))
	remote := remotecart.NewClient(
		cfg.RemoteAPIURL,
		cfg.RemoteCartPath,
		creds,
		cfg.RemoteTimeout,
		remotecart.WithRateLimit(cfg.RemoteRPS, cfg.RemoteBurst),
	)
	snapshots := cache.NewSnapshotCache(cfg.CacheCartTTL)

	engine := usecase.NewCartEngine(localStore, remote, creds, snapshots, broker,
		usecase.WithCooldown(cfg.UpdateCooldown),
	)

	// A session persisted by a previous run may predate a merge that never happened
	if report, err := engine.SyncIdentity(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Startup identity sync failed")
	} else if report != nil {
		log.Info().Int("attempted", report.Attempted).Int("failed", report.Failed).Msg("Startup cart merge")
	}

	cartHandler := v1.NewCartHandler(engine, cfg.MaxCartQuantity)
	sessionHandler := v1.NewSessionHandler(engine)
	eventsHandler := v1.NewEventsHandler(broker, 25*time.Second)

	// Set up Router
	mux := http.NewServeMux()

	// Cart
	mux.HandleFunc("GET /api/v1/cart", cartHandler.GetCart)
	mux.HandleFunc("POST /api/v1/cart/items", cartHandler.AddToCart)
	mux.HandleFunc("PUT /api/v1/cart/items/{productId}", cartHandler.UpdateCartItem)
	mux.HandleFunc("DELETE /api/v1/cart/items/{productId}", cartHandler.RemoveFromCart)
	mux.HandleFunc("DELETE /api/v1/cart", cartHandler.ClearCart)
	mux.HandleFunc("GET /api/v1/cart/events", eventsHandler.Stream)

	// Session (identity signal from the storefront)
	mux.HandleFunc("POST /api/v1/session", sessionHandler.SignIn)
	mux.HandleFunc("DELETE /api/v1/session", sessionHandler.SignOut)

	// Health Check
	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","store":%q}`, cfg.LocalStore)
	}
	mux.HandleFunc("GET /api/v1/health", healthHandler)
	mux.HandleFunc("GET /health", healthHandler)

	addr := fmt.Sprintf(":%s", cfg.Port)

	// 50 req/s, burst 100, cleanup every minute, TTL 3 minutes
	rateLimiter := middleware.NewRateLimiter(
		context.Background(),
		50,
		100,
		time.Minute,
		3*time.Minute,
	)

	// Apply CORS, Request Logger, Rate Limit, and Gzip
	handler := middleware.NewCORSMiddleware(cfg)(mux)
	handler = middleware.RequestLogger(creds)(handler)
	handler = rateLimiter.Middleware()(handler)
	handler = gziphandler.GzipHandler(handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.ServiceStart(serviceName, version, cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	rateLimiter.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.ServiceStop(serviceName)
}

// openRecordStore selects the RecordStore backend named by LOCAL_STORE. The pool is
// non-nil only for postgres and must be closed by the caller.
func openRecordStore(ctx context.Context, cfg *config.Config) (domain.RecordStore, *pgxpool.Pool, error) {
	switch cfg.LocalStore {
	case domain.StoreMemory:
		return record.NewMemoryStore(), nil, nil
	case domain.StoreFile:
		s, err := record.NewFileStore(cfg.LocalStoreDir)
		return s, nil, err
	case domain.StorePostgres:
		pool, err := record.NewPgxPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		s := record.NewPostgresStore(pool, cfg.RecordNamespace)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return s, pool, nil
	default:
		return nil, nil, fmt.Errorf("unknown record store %q", cfg.LocalStore)
	}
}
