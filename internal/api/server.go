package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/httputil"
	"github.com/CondeArmand/gamemate-backend/internal/version"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Routes are the per-domain routers mounted under /api/v1.
type Routes struct {
	Users http.Handler
	Games http.Handler
}

type Server struct {
	db     Pinger
	wsHub  *WSHub
	router chi.Router
	http   *http.Server
	logger *zap.Logger
}

func NewServer(port int, db Pinger, routes Routes, hub *WSHub, logger *zap.Logger) *Server {
	s := &Server{
		db:     db,
		wsHub:  hub,
		router: chi.NewRouter(),
		logger: logger.Named("http"),
	}
	s.setupRoutes(routes)
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(routes Routes) {
	r := s.router
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)
	r.Use(securityHeadersMiddleware, corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/ws", s.handleWebSocket)
	if routes.Users != nil {
		r.Mount("/api/v1/users", routes.Users)
	}
	if routes.Games != nil {
		r.Mount("/api/v1/games", routes.Games)
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]interface{}{
		"version":    version.Get().Version,
		"database":   "ok",
		"ws_clients": s.wsHub.ClientCount(),
	}
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("health check: database unreachable", zap.Error(err))
		body["database"] = "unreachable"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// securityHeadersMiddleware adds standard security headers to all responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS preflight and response headers globally.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
