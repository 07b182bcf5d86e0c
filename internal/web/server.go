// Package web serves the JSON API used by the booking UI.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/example/machine-booker/internal/attempts"
	"github.com/example/machine-booker/internal/auth"
	"github.com/example/machine-booker/internal/booking"
	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/credentials"
	"github.com/example/machine-booker/internal/jobs"
	"github.com/example/machine-booker/internal/logging"
	"github.com/example/machine-booker/internal/metrics"
)

type Credentials interface {
	Login(ctx context.Context, creds credentials.Credentials) error
	Logout(ctx context.Context)
	Authenticated() bool
	Username() string
}

// Breaker reports the state of the upstream circuit breaker.
type Breaker interface {
	State() gobreaker.State
}

type Availability interface {
	AvailabilityFor(ctx context.Context, date civil.Date) (booking.MachineAvailability, error)
}

type Booker interface {
	Book(ctx context.Context, req booking.Request) (*booking.Response, error)
}

type Bookings interface {
	Pending(ctx context.Context) ([]booking.PendingBooking, error)
	Cancel(ctx context.Context, id int64) error
}

type Jobs interface {
	List(ctx context.Context) []jobs.Job
	Create(ctx context.Context, req jobs.CreateRequest) (jobs.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status jobs.Status) (jobs.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Server struct {
	Credentials  Credentials
	Breaker      Breaker
	Sessions     *auth.Sessions
	Operator     auth.Operator
	Availability Availability
	Booker       Booker
	Bookings     Bookings
	Jobs         Jobs
	Attempts     *attempts.Log
	Logger       *slog.Logger

	validate *validator.Validate
}

func (s *Server) Routes() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.validate = validator.New(validator.WithRequiredStructEnabled())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.Operator.Require)
		r.Use(operatorLogger)

		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/status", s.handleAuthStatus)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/machines/availability", s.handleAvailability)
		r.Post("/machines/bookings", s.handleBook)

		r.Get("/bookings/pending", s.handlePending)
		r.Post("/bookings/cancel/{id}", s.handleCancel)

		r.Get("/automation/jobs", s.handleListJobs)
		r.Post("/automation/jobs", s.handleCreateJob)
		r.Patch("/automation/jobs/{id}", s.handleUpdateJob)
		r.Delete("/automation/jobs/{id}", s.handleDeleteJob)
		r.Get("/automation/attempts", s.handleAttempts)
	})

	return r
}

// requestLogger puts a request scoped logger into the context and logs
// every request once it is served.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.Logger.With(slog.String("request_id", chimw.GetReqID(r.Context())))
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logging.ContextWithLogger(r.Context(), logger)))

		logger.Debug("request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}

// handleHealthz answers 200 whatever the upstream breaker says.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
	if s.Breaker != nil {
		_, _ = fmt.Fprintf(w, "upstream: %s\n", s.Breaker.State())
	}
}

// operatorLogger tags the request logger with the operator that passed the
// basic-auth guard.
func operatorLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.OperatorFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		logger := logging.FromContext(ctx, nil).With(slog.String("operator", user))
		next.ServeHTTP(w, r.WithContext(logging.ContextWithLogger(ctx, logger)))
	})
}

// Start serves h on addr until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
