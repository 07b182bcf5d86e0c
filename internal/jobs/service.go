package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/machine-booker/internal/booking"
	"github.com/example/machine-booker/internal/civil"
)

var ErrNotFound = errors.New("job not found")

// ValidationError is a rejected job request. Message is shown to users as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CreateRequest is the payload for a new job.
type CreateRequest struct {
	StartDate *civil.Date      `json:"startDate"`
	StartTime *civil.TimeOfDay `json:"startTime"`
	EndTime   *civil.TimeOfDay `json:"endTime"`
	Status    Status           `json:"status"`
}

// Service manages jobs on top of a Store.
type Service struct {
	store    Store
	schedule booking.WorkSchedule
	logger   *slog.Logger

	Now func() time.Time
}

func NewService(store Store, schedule booking.WorkSchedule, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, schedule: schedule, logger: logger, Now: time.Now}
}

func (s *Service) List(ctx context.Context) []Job {
	return s.store.List(ctx)
}

func (s *Service) Find(ctx context.Context, id uuid.UUID) (Job, error) {
	j, ok := s.store.Find(ctx, id)
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Job, error) {
	if err := s.validate(req); err != nil {
		return Job{}, err
	}
	j := s.store.Add(ctx, New(*req.StartDate, *req.StartTime, *req.EndTime, req.Status, s.Now().UTC()))
	s.logger.InfoContext(ctx, "job created",
		slog.String("job_id", j.ID.String()),
		slog.String("day", j.DayOfWeek.String()),
		slog.String("start", j.StartTime.String()),
		slog.String("end", j.EndTime.String()))
	return j, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Job, error) {
	j, ok := s.store.Find(ctx, id)
	if !ok {
		return Job{}, ErrNotFound
	}
	updated, ok := s.store.Update(ctx, j.WithStatus(status, s.Now().UTC()))
	if !ok {
		return Job{}, ErrNotFound
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if !s.store.Delete(ctx, id) {
		return ErrNotFound
	}
	s.logger.InfoContext(ctx, "job deleted", slog.String("job_id", id.String()))
	return nil
}

// UpdateAfterAttempt records an attempt at `at`, and the booked date when
// the attempt succeeded.
func (s *Service) UpdateAfterAttempt(ctx context.Context, id uuid.UUID, at time.Time, booked *civil.Date) error {
	j, ok := s.store.Find(ctx, id)
	if !ok {
		return ErrNotFound
	}
	j = j.WithLastAttemptAt(at)
	if booked != nil {
		j = j.WithLastBookedDate(*booked, at)
	}
	s.store.Update(ctx, j)
	return nil
}

func (s *Service) validate(req CreateRequest) error {
	if req.StartDate == nil {
		return invalid("Start date is required.")
	}
	if req.StartTime == nil || req.EndTime == nil {
		return invalid("Start and end time are required.")
	}
	start, end := *req.StartTime, *req.EndTime
	if start >= end {
		return invalid("End time must be after start time.")
	}

	day := req.StartDate.Weekday()
	w := s.schedule.WindowFor(day)
	if w.Closed() {
		return invalid("Bookings are not available on %ss.", day)
	}
	if !w.Covers(start, end) {
		return invalid("Time must be within %s and %s.", w.Start, w.End)
	}

	d := start.Minutes(end)
	if d > booking.MaxDurationMinutes {
		return invalid("Maximum booking duration is 4 hours.")
	}
	if d%booking.DefaultIntervalMinutes != 0 {
		return invalid("Times must align to 30-minute slots.")
	}
	return nil
}
