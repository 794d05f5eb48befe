package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/config"
	"github.com/WKowalczykDev/EntranceControl/internal/database"
	"github.com/WKowalczykDev/EntranceControl/internal/embeddings"
	"github.com/WKowalczykDev/EntranceControl/internal/encoder"
	"github.com/WKowalczykDev/EntranceControl/internal/web/handlers"
	"github.com/WKowalczykDev/EntranceControl/internal/web/middleware"
)

// Services are the components exposed over HTTP.
type Services struct {
	Engine       handlers.Verifier
	Persons      database.PersonReader
	Gates        database.GateReader
	Attempts     database.AttemptReader
	Images       handlers.ReferenceImageStore
	ImageRecords database.ReferenceImageWriter // optional
	Embeddings   *embeddings.Store
	Encoder      encoder.Encoder
}

// Server represents the web server
type Server struct {
	config     *config.Config
	services   Services
	logger     *zap.Logger
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, services Services, port int, host string, logger *zap.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   r,
	}

	// Request timeout leaves room for the biometric phase plus upload time.
	requestTimeout := cfg.Verification.Timeout + 30*time.Second

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(requestTimeout))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
