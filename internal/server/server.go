package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/portfolio-cms/apiserver/config"
	"github.com/portfolio-cms/apiserver/internal/auth"
	"github.com/portfolio-cms/apiserver/internal/db"
	"github.com/portfolio-cms/apiserver/internal/handlers"
	"github.com/portfolio-cms/apiserver/internal/logutil"
	"github.com/portfolio-cms/apiserver/internal/mq"
	"github.com/portfolio-cms/apiserver/internal/services"
	"github.com/portfolio-cms/apiserver/internal/storage"
	"github.com/portfolio-cms/apiserver/internal/store"
	"github.com/rs/zerolog"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	broker     *mq.Events
	logger     zerolog.Logger
}

// PhotoService is served both through the photo API and the uploads route.
type PhotoService interface {
	handlers.PhotoService
	handlers.ImageOpener
}

// Dependencies are the services the router dispatches to.
type Dependencies struct {
	Users    handlers.UserService
	Verifier handlers.TokenVerifier
	Blogs    handlers.BlogService
	Photos   PhotoService
}

// New connects the database, object storage and optional broker described
// by cfg and builds the HTTP server on top of them.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init mq: %w", err)
	}
	var notifier *services.Notifier
	if broker != nil {
		notifier = services.NewNotifier(broker)
	}

	userRepo := store.NewUserRepository(dbConn, cfg.Database.QueryTimeout)
	blogRepo := store.NewBlogRepository(dbConn, cfg.Database.QueryTimeout)
	photoRepo := store.NewPhotoRepository(dbConn, cfg.Database.QueryTimeout)

	deps := Dependencies{
		Users:    services.NewUserService(userRepo, auth.NewHasher(cfg.Auth.BcryptCost), issuer),
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret),
		Blogs:    services.NewBlogService(blogRepo, notifier),
		Photos:   services.NewPhotoService(photoRepo, objects, notifier),
	}
	router := NewRouter(logger, cfg.CORSOrigins, deps)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info().
		Str("storage", cfg.Storage.Backend).
		Str("mq", cfg.MQ.Backend).
		Strs("cors_origins", cfg.CORSOrigins).
		Msg("server configured")

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		broker:     broker,
		logger:     logger,
	}, nil
}

// NewRouter builds the chi router with middleware and every API route.
func NewRouter(logger zerolog.Logger, corsOrigins []string, deps Dependencies) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logutil.RequestLogger(logger),
		handlers.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Total-Count"},
			MaxAge:         300,
		}),
		middleware.Timeout(requestTimeout),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	router.Get("/healthz", handlers.Healthz)
	router.Get("/uploads/*", handlers.ServeUploads(deps.Photos))
	router.Route("/api", func(r chi.Router) {
		r.Get("/", handlers.APIStatus)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.Users, deps.Verifier)
		})
		r.Route("/blogs", func(r chi.Router) {
			handlers.BlogRouter(r, deps.Blogs)
		})
		r.Route("/photos", func(r chi.Router) {
			handlers.PhotoRouter(r, deps.Photos)
		})
	})

	return router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx is
// done, then releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.broker != nil {
		closeQuietly(s.logger, "mq", s.broker)
	}
	if s.db != nil {
		closeQuietly(s.logger, "database", s.db)
	}
	return err
}

func closeQuietly(logger zerolog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Str("resource", name).Msg("close failed")
	}
}
