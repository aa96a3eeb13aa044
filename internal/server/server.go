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
	"github.com/redis/go-redis/v9"

	"github.com/icard-hq/apiserver/config"
	"github.com/icard-hq/apiserver/internal/auth"
	"github.com/icard-hq/apiserver/internal/db"
	"github.com/icard-hq/apiserver/internal/handlers"
	"github.com/icard-hq/apiserver/internal/idcard"
	"github.com/icard-hq/apiserver/internal/mailer"
	"github.com/icard-hq/apiserver/internal/mq"
	"github.com/icard-hq/apiserver/internal/services"
	"github.com/icard-hq/apiserver/internal/session"
	"github.com/icard-hq/apiserver/internal/storage"
	"github.com/icard-hq/apiserver/internal/store"
)

// Server wraps the HTTP server and its backing connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	events     *mq.Publisher
}

// New constructs a Server with all dependencies wired from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	sender, err := mailer.NewSMTPSender(cfg.SMTP)
	if err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, err
	}

	objectStore, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, err
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("ensure bucket failed: %w", err)
	}

	events, err := mq.FromConfig(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, err
	}

	if cfg.Cards.DownloadSecret == "" {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, errors.New("CARD_DOWNLOAD_SECRET is required")
	}

	userRepo := store.NewUserRepository(dbConn)
	addressRepo := store.NewAddressRepository(dbConn)
	employeeRepo := store.NewEmployeeRepository(dbConn)

	sessionStore := session.NewStore(redisClient, cfg.Session.TTL)
	sessions := handlers.NewSessionManager(sessionStore, cfg.Session.CookieName)

	renderer := idcard.NewRenderer(cfg.Cards.CompanyName)

	accountService := services.NewAccountService(
		userRepo, addressRepo, auth.NewBcryptHasher(), sender, cfg.Session.OTPTTL)
	employeeService := services.NewEmployeeService(employeeRepo, addressRepo)
	cardService := services.NewCardService(
		employeeRepo, renderer, objectStore, sender, events,
		cfg.BaseURL, cfg.Cards.DownloadSecret, cfg.Cards.DownloadTTL)
	dashboardService := services.NewDashboardService(employeeRepo)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(sessions.WithSession)

	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, accountService, sessions)
	})
	router.Route("/employees", func(r chi.Router) {
		r.Use(sessions.RequireAuth)
		handlers.EmployeeRouter(r, employeeService, objectStore)
	})
	router.Route("/cards", func(r chi.Router) {
		handlers.CardRouter(r, cardService, sessions.RequireAuth)
	})
	router.Route("/dashboard", func(r chi.Router) {
		r.Use(sessions.RequireAuth)
		handlers.DashboardRouter(r, dashboardService)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		redis:      redisClient,
		events:     events,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
	return s.httpServer.Close()
}
