// Package httpapi exposes the session and subscription commands over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"devhelper/internal/domain"
	"devhelper/internal/service"
)

type SessionCommands interface {
	Start(ctx context.Context, in service.StartSessionInput) (*domain.Session, error)
	TakeBreak(ctx context.Context, ownerID, scopeID string) (*domain.Session, error)
	Cancel(ctx context.Context, ownerID, scopeID string) (*domain.Session, error)
	Status(ctx context.Context, ownerID, scopeID string) (*service.SessionStatus, error)
}

type SubscriptionCommands interface {
	Subscribe(ctx context.Context, in service.SubscribeInput) (*domain.Subscription, error)
	Unsubscribe(ctx context.Context, ownerID, scopeID string) (bool, error)
	Get(ctx context.Context, ownerID, scopeID string) (*domain.Subscription, error)
}

// Server routes HTTP requests to the command services.
type Server struct {
	sessions      SessionCommands
	subscriptions SubscriptionCommands
	validator     *validator.Validate
	logger        *slog.Logger
	now           func() time.Time
}

func New(sessions SessionCommands, subscriptions SubscriptionCommands, logger *slog.Logger) *Server {
	return &Server{
		sessions:      sessions,
		subscriptions: subscriptions,
		validator:     validator.New(),
		logger:        logger.With("component", "http"),
		now:           time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", s.startSession)
		r.Route("/sessions/{owner}/{scope}", func(r chi.Router) {
			r.Get("/", s.sessionStatus)
			r.Post("/break", s.takeBreak)
			r.Post("/cancel", s.cancelSession)
		})
		r.Route("/subscriptions/{owner}/{scope}", func(r chi.Router) {
			r.Get("/", s.getSubscription)
			r.Put("/", s.subscribe)
			r.Delete("/", s.unsubscribe)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
