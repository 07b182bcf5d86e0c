// Package scheduler attempts auto-booking jobs on a fixed delay.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/machine-booker/internal/attempts"
	"github.com/example/machine-booker/internal/booking"
	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/credentials"
	"github.com/example/machine-booker/internal/jobs"
	"github.com/example/machine-booker/internal/metrics"
)

const (
	DefaultDelay           = time.Minute
	DefaultAttemptInterval = 5 * time.Minute
)

type Booker interface {
	BookScheduled(ctx context.Context, req booking.Request) (*booking.Response, error)
}

type JobService interface {
	List(ctx context.Context) []jobs.Job
	UpdateAfterAttempt(ctx context.Context, id uuid.UUID, at time.Time, booked *civil.Date) error
}

// Scheduler walks the job list once per Delay and books what is due.
type Scheduler struct {
	Jobs     JobService
	Booker   Booker
	Attempts *attempts.Log
	Calendar booking.Calendar
	Logger   *slog.Logger

	// Delay is the pause between the end of one pass and the start of the next.
	Delay           time.Duration
	AttemptInterval time.Duration
}

func (s *Scheduler) Run(ctx context.Context) error {
	delay := s.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	s.Tick(ctx)

	t := time.NewTimer(delay)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Tick(ctx)
			t.Reset(delay)
		}
	}
}

// Tick runs one pass over all jobs, sequentially.
func (s *Scheduler) Tick(ctx context.Context) {
	js := s.Jobs.List(ctx)
	if len(js) == 0 {
		return
	}

	now := s.Calendar.CurrentTime()
	today := civil.DateTimeOf(now)
	for _, j := range js {
		target := ResolveTargetDate(j, today)
		start := s.Calendar.Instant(target.At(j.StartTime))
		if !ShouldAttempt(j, target, now, start, s.attemptInterval()) {
			continue
		}
		_ = credentials.RunWithFallback(ctx, func(ctx context.Context) error {
			s.attempt(ctx, j, target, now)
			return nil
		})
	}
}

// ResolveTargetDate is the next date j should book: the first j.DayOfWeek
// on or after today (or the start date, if later), a week out when today is
// that day and the start time has passed.
func ResolveTargetDate(j jobs.Job, now civil.DateTime) civil.Date {
	base, at := now.Date, now.Time
	if j.StartDate.After(base) {
		base, at = j.StartDate, 0
	}

	diff := int(j.DayOfWeek) - int(base.Weekday())
	if diff < 0 {
		diff += 7
	}
	candidate := base.AddDays(diff)
	if diff == 0 && at >= j.StartTime {
		candidate = base.AddDays(7)
	}
	if candidate.Before(j.StartDate) {
		candidate = j.StartDate
	}
	return candidate
}

// ShouldAttempt reports whether j is due: active, not yet booked for target,
// starting within the booking horizon and not attempted within interval.
func ShouldAttempt(j jobs.Job, target civil.Date, now, start time.Time, interval time.Duration) bool {
	if !j.Active() || j.BookedOn(target) {
		return false
	}
	if start.Before(now) || start.After(now.Add(booking.Horizon)) {
		return false
	}
	if j.LastAttemptAt != nil && now.Sub(*j.LastAttemptAt) < interval {
		return false
	}
	return true
}

func (s *Scheduler) attempt(ctx context.Context, j jobs.Job, target civil.Date, now time.Time) {
	logger := s.logger().With(slog.String("job_id", j.ID.String()), slog.String("target", target.String()))

	start := j.StartTime
	res, err := s.book(ctx, booking.Request{Date: &target, StartTime: &start, DurationMinutes: j.DurationMinutes()})

	var (
		success bool
		message string
		outcome string
	)
	switch {
	case err != nil:
		message, outcome = err.Error(), metrics.OutcomeError
		logger.WarnContext(ctx, "auto-booking failed", slog.Any("err", err))
	default:
		success, message = res.Success, res.Message
		outcome = metrics.OutcomeRejected
		if success {
			outcome = metrics.OutcomeSuccess
		}
		if strings.TrimSpace(message) == "" {
			message = "Booking failed."
			if success {
				message = "Booking succeeded."
			}
		}
		logger.InfoContext(ctx, "auto-booking attempted", slog.Bool("success", success), slog.String("message", message))
	}
	metrics.SchedulerAttempts.WithLabelValues(outcome).Inc()

	if s.Attempts != nil {
		s.Attempts.Add(attempts.Attempt{
			JobID:      j.ID,
			TargetDate: target,
			StartTime:  j.StartTime,
			EndTime:    j.EndTime,
			Success:    success,
			Message:    message,
			OccurredAt: now.UTC(),
		})
	}

	var booked *civil.Date
	if success {
		booked = &target
	}
	if err := s.Jobs.UpdateAfterAttempt(ctx, j.ID, now.UTC(), booked); err != nil {
		logger.WarnContext(ctx, "update job after attempt failed", slog.Any("err", err))
	}
}

func (s *Scheduler) book(ctx context.Context, req booking.Request) (res *booking.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("booking panicked: %v", r)
		}
	}()
	res, err = s.Booker.BookScheduled(ctx, req)
	if err == nil && res == nil {
		err = fmt.Errorf("booking returned no response")
	}
	return res, err
}

func (s *Scheduler) attemptInterval() time.Duration {
	if s.AttemptInterval <= 0 {
		return DefaultAttemptInterval
	}
	return s.AttemptInterval
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
