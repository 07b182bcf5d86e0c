// Package booking validates, previews and submits machine bookings against
// the upstream reservation platform.
package booking

import (
	"time"

	"github.com/example/machine-booker/internal/civil"
)

const (
	MaxDurationMinutes     = 240
	DefaultIntervalMinutes = 30
	DefaultResourceName    = "Embroidery Machine"
	HorizonHours           = 360

	// Horizon is how far ahead a booking may start.
	Horizon = HorizonHours * time.Hour
)

// Resource identifies the bookable machine and the account booking it.
type Resource struct {
	ID         int64
	GUID       string
	Name       string
	CoworkerID int64
}

// Request is a booking as entered by a user or derived from a job.
type Request struct {
	Date            *civil.Date      `json:"date"`
	StartTime       *civil.TimeOfDay `json:"startTime"`
	DurationMinutes int              `json:"durationMinutes"`
}

// Response is the outcome reported to callers. Rejections are data, not errors.
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func failure(message string, details ...string) *Response {
	if details == nil {
		details = []string{}
	}
	return &Response{Success: false, Message: message, Errors: details}
}

func confirmed() *Response {
	return &Response{Success: true, Message: "Booking confirmed.", Errors: []string{}}
}

// Timing is a validated request resolved to wall-clock values and instants.
type Timing struct {
	Date            civil.Date
	StartTime       civil.TimeOfDay
	DurationMinutes int
	StartDateTime   civil.DateTime
	EndDateTime     civil.DateTime
	Start           time.Time
	End             time.Time
}

// Calendar answers "what time is it" questions in the booking time zone.
type Calendar struct {
	Location *time.Location
	Schedule WorkSchedule
	Now      func() time.Time
}

// NewCalendar returns a calendar on the wall clock. A nil location means UTC.
func NewCalendar(loc *time.Location, schedule WorkSchedule) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Location: loc, Schedule: schedule, Now: time.Now}
}

// CurrentTime is now in the booking time zone.
func (c Calendar) CurrentTime() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().In(c.location())
}

func (c Calendar) Today() civil.Date {
	return civil.DateOf(c.CurrentTime())
}

// MaxStart is the latest instant a booking may start at.
func (c Calendar) MaxStart() time.Time {
	return c.CurrentTime().Add(Horizon)
}

// MaxDate is the calendar date of MaxStart.
func (c Calendar) MaxDate() civil.Date {
	return civil.DateOf(c.MaxStart())
}

// Instant resolves a wall-clock value in the booking time zone.
func (c Calendar) Instant(dt civil.DateTime) time.Time {
	return dt.In(c.location())
}

// CheckDate rejects dates in the past or beyond the horizon.
func (c Calendar) CheckDate(d civil.Date) error {
	if d.Before(c.Today()) {
		return &DateError{Message: "Date must be today or later."}
	}
	if d.After(c.MaxDate()) {
		return &DateError{Message: "Date is more than 360 hours in the future."}
	}
	return nil
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// DateError is a date outside the bookable range.
type DateError struct {
	Message string
}

func (e *DateError) Error() string { return e.Message }
