package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/motorlot/apiserver/config"
	"github.com/motorlot/apiserver/internal/cache"
	"github.com/motorlot/apiserver/internal/db"
	"github.com/motorlot/apiserver/internal/handlers"
	"github.com/motorlot/apiserver/internal/logger"
	"github.com/motorlot/apiserver/internal/mail"
	"github.com/motorlot/apiserver/internal/metrics"
	"github.com/motorlot/apiserver/internal/mq"
	"github.com/motorlot/apiserver/internal/services"
	"github.com/motorlot/apiserver/internal/session"
	"github.com/motorlot/apiserver/internal/storage"
	"github.com/motorlot/apiserver/internal/store"
	"github.com/motorlot/apiserver/pkg/query"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	bus        *mq.MQ
	hub        *session.Hub
	log        *zap.Logger
}

// Services groups the use-case services the router exposes.
type Services struct {
	Listings *services.ListingService
	Users    *services.UserService
	Identity *services.IdentityService
	Hub      *session.Hub
}

// New connects every backend selected by cfg and builds the router.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	s := &Server{log: log}
	m := metrics.New(cfg.Log.ServiceName)

	var (
		listingRepo services.ListingRepository
		userRepo    services.UserRepository
	)
	switch cfg.Database.Backend {
	case "memory":
		log.Warn("using in-memory document store; data is lost on exit")
		listingRepo = store.NewMemoryListingRepository()
		userRepo = store.NewMemoryUserRepository()
	default:
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.db = dbConn
		listingRepo = store.NewListingRepository(dbConn)
		userRepo = store.NewUserRepository(dbConn)
	}

	var kv cache.Store
	if cfg.Redis.Addr == "" {
		log.Warn("REDIS_ADDR not set; using in-process key-value store")
		kv = cache.NewMemory()
	} else {
		client, err := db.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			s.closeAll()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		s.redis = client
		kv = cache.NewRedis(client)
	}

	images, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := images.EnsureBucket(ctx); err != nil {
		s.closeAll()
		return nil, fmt.Errorf("ensure bucket %s: %w", images.Bucket(), err)
	}

	bus, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	s.bus = bus
	s.hub = session.NewHub(bus, log.Named("session"), m)

	engine := query.NewEngine(query.WithObserver(m))
	listingService := services.NewListingService(listingRepo, images, engine, m, log.Named("listings"), cfg.Listings)
	userService := services.NewUserService(userRepo, listingRepo, kv, s.hub, log.Named("users"))
	identityService, err := services.NewIdentityService(userRepo, kv, mail.New(cfg.SMTP, log), s.hub, log.Named("identity"), cfg.Auth)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	s.router = NewRouter(cfg, Services{
		Listings: listingService,
		Users:    userService,
		Identity: identityService,
		Hub:      s.hub,
	}, m, log)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// NewRouter registers every route on a fresh chi router.
func NewRouter(cfg config.Config, svc Services, m *metrics.Metrics, log *zap.Logger) *chi.Mux {
	auth := handlers.NewAuthHandler(svc.Identity, svc.Hub, log.Named("auth"), cfg.AllowedOrigins)
	listings := handlers.NewListingHandler(svc.Listings, log.Named("listings"))
	me := handlers.NewMeHandler(svc.Listings, svc.Users)
	users := handlers.NewUserHandler(svc.Users)
	admin := handlers.NewAdminHandler(svc.Listings, svc.Users, log.Named("admin"))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logger.Middleware(log),
	)
	if m != nil {
		router.Use(m.Middleware)
		router.Method(http.MethodGet, "/metrics", m.Handler())
	}
	router.Get("/healthz", handlers.Healthz)
	router.Get("/taxonomy", handlers.Taxonomy)

	// The session stream is long-lived and must not inherit the timeout.
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, auth)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Route("/listings", func(r chi.Router) {
			handlers.ListingRouter(r, listings, auth)
		})
		r.Route("/me", func(r chi.Router) {
			handlers.MeRouter(r, me, auth)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, users, auth)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, admin, auth)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the session hub and the HTTP server until ctx is done, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go func() {
		if err := s.hub.Run(hubCtx); err != nil {
			s.log.Error("session hub stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// every backend connection.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeAll()
	return err
}

func (s *Server) closeAll() {
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.log.Warn("close mq", zap.Error(err))
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
