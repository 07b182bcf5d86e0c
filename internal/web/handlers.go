package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/machine-booker/internal/attempts"
	"github.com/example/machine-booker/internal/booking"
	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/credentials"
	"github.com/example/machine-booker/internal/jobs"
	"github.com/example/machine-booker/internal/logging"
	"github.com/example/machine-booker/internal/upstream"
)

const maxBody = 1 << 20

type message struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	ClientID string `json:"clientId"`
	TOTP     string `json:"totp"`
}

type statusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

type updateJobRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE PAUSED"`
}

type pendingResponse struct {
	Bookings []booking.PendingBooking `json:"bookings"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Invalid request body."})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Username and password are required."})
		return
	}

	err := s.Credentials.Login(r.Context(), credentials.Credentials{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		ClientID: req.ClientID,
		TOTP:     req.TOTP,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Sessions.SetSession(w, r, strings.TrimSpace(req.Username)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Success: true, Message: "Logged in."})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Sessions.GetSession(r)
	if !ok || !s.Credentials.Authenticated() {
		writeJSON(w, http.StatusOK, statusResponse{})
		return
	}
	// bookings run as whoever last logged in, which may not be this session's user
	username := s.Credentials.Username()
	if username == "" {
		username = sess.Username
	}
	writeJSON(w, http.StatusOK, statusResponse{Authenticated: true, Username: username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Credentials.Logout(r.Context())
	s.Sessions.ClearSession(w)
	writeJSON(w, http.StatusOK, message{Success: true, Message: "Logged out."})
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date, err := civil.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Query parameter date must be yyyy-MM-dd."})
		return
	}
	res, err := s.Availability.AvailabilityFor(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Invalid request body."})
		return
	}
	res, err := s.Booker.Book(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.Bookings.Pending(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{Bookings: pending})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Invalid booking id."})
		return
	}
	if err := s.Bookings.Cancel(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Success: true, Message: "Booking cancelled successfully."})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Jobs.List(r.Context()))
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.CreateRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Request body is required."})
		return
	}
	j, err := s.Jobs.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	var req updateJobRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Invalid request body."})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Status must be ACTIVE or PAUSED."})
		return
	}
	j, err := s.Jobs.UpdateStatus(r.Context(), id, jobs.Status(req.Status))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	if err := s.Jobs.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	limit := attempts.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, message{Message: "Query parameter limit must be a number."})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.Attempts.List(s.Attempts.ClampLimit(limit)))
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Invalid job id."})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps domain and upstream errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		loginErr *credentials.LoginError
		dateErr  *booking.DateError
		jobErr   *jobs.ValidationError
	)
	switch {
	case errors.Is(err, credentials.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, message{Message: "Credentials are missing."})
	case errors.As(err, &loginErr):
		writeJSON(w, loginErr.Status, message{Message: loginErr.Message})
	case errors.As(err, &dateErr):
		writeJSON(w, http.StatusBadRequest, message{Message: dateErr.Message})
	case errors.As(err, &jobErr):
		writeJSON(w, http.StatusBadRequest, message{Message: jobErr.Message})
	case errors.Is(err, jobs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, message{Message: "Job not found."})
	case errors.Is(err, upstream.ErrCircuitOpen):
		writeJSON(w, http.StatusServiceUnavailable, message{Message: "Booking platform is unavailable, try again later."})
	case upstream.IsUnauthorized(err):
		writeJSON(w, http.StatusUnauthorized, message{Message: "Authentication failed."})
	default:
		if he, ok := upstream.AsHTTPError(err); ok {
			writeJSON(w, http.StatusBadGateway, message{Message: strings.TrimSpace(string(he.Body))})
			return
		}
		logging.FromContext(r.Context(), s.Logger).ErrorContext(r.Context(), "request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, message{Message: "Internal error."})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
