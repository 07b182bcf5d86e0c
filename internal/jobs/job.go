// Package jobs stores recurring auto-booking jobs.
package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/machine-booker/internal/civil"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
)

// ParseStatus accepts ACTIVE or PAUSED in any case.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusPaused:
		return st, nil
	default:
		return "", fmt.Errorf("invalid status %q (want ACTIVE or PAUSED)", s)
	}
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Job books StartTime-EndTime every week on DayOfWeek, from StartDate on.
// Jobs are values; the With methods return modified copies.
type Job struct {
	ID             uuid.UUID       `json:"id"`
	StartDate      civil.Date      `json:"startDate"`
	DayOfWeek      civil.Weekday   `json:"dayOfWeek"`
	StartTime      civil.TimeOfDay `json:"startTime"`
	EndTime        civil.TimeOfDay `json:"endTime"`
	Status         Status          `json:"status"`
	LastAttemptAt  *time.Time      `json:"lastAttemptAt"`
	LastBookedDate *civil.Date     `json:"lastBookedDate"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// New returns an ACTIVE job (unless status says otherwise) starting on startDate.
func New(startDate civil.Date, start, end civil.TimeOfDay, status Status, now time.Time) Job {
	if status == "" {
		status = StatusActive
	}
	return Job{
		ID:        uuid.New(),
		StartDate: startDate,
		DayOfWeek: civil.Weekday(startDate.Weekday()),
		StartTime: start,
		EndTime:   end,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j Job) DurationMinutes() int {
	return j.StartTime.Minutes(j.EndTime)
}

func (j Job) Active() bool { return j.Status == StatusActive }

func (j Job) WithStatus(s Status, now time.Time) Job {
	j.Status = s
	j.UpdatedAt = now
	return j
}

func (j Job) WithLastAttemptAt(at time.Time) Job {
	j.LastAttemptAt = &at
	j.UpdatedAt = at
	return j
}

func (j Job) WithLastBookedDate(d civil.Date, now time.Time) Job {
	j.LastBookedDate = &d
	j.UpdatedAt = now
	return j
}

// BookedOn reports whether the job already booked date.
func (j Job) BookedOn(d civil.Date) bool {
	return j.LastBookedDate != nil && *j.LastBookedDate == d
}
