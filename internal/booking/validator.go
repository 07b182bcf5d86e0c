package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/machine-booker/internal/civil"
)

// Validator applies local booking policy before anything is sent upstream.
type Validator struct {
	gateway  *Gateway
	calendar Calendar
}

func NewValidator(gateway *Gateway, calendar Calendar) *Validator {
	return &Validator{gateway: gateway, calendar: calendar}
}

// Validate checks req in a fixed order and stops at the first failure.
// Policy failures come back as a *Response; errors are reserved for upstream
// trouble while loading availability.
func (v *Validator) Validate(ctx context.Context, req Request) (Timing, *Response, error) {
	if rejection := checkRequest(req); rejection != nil {
		return Timing{}, rejection, nil
	}

	if err := v.calendar.CheckDate(*req.Date); err != nil {
		var de *DateError
		if errors.As(err, &de) {
			return Timing{}, failure(de.Message), nil
		}
		return Timing{}, nil, err
	}
	timing := v.resolveTiming(req)

	if rejection := v.checkWindow(timing); rejection != nil {
		return Timing{}, rejection, nil
	}
	if timing.Start.After(v.calendar.MaxStart()) {
		return Timing{}, failure("Booking is too far in the future.", fmt.Sprintf("Maximum is %d hours ahead.", HorizonHours)), nil
	}

	grid, err := v.gateway.AvailabilityContext(ctx, timing.Date)
	if err != nil {
		return Timing{}, nil, err
	}
	interval := grid.IntervalMinutes
	if timing.DurationMinutes < interval || timing.DurationMinutes%interval != 0 {
		return Timing{}, failure("Duration must align with slot intervals.", fmt.Sprintf("Use increments of %d minutes.", interval)), nil
	}
	if !rangeAvailable(grid, timing.StartTime, timing.DurationMinutes) {
		return Timing{}, failure("Selected time is not available.", "Pick a different start time."), nil
	}
	return timing, nil, nil
}

func checkRequest(req Request) *Response {
	if req.Date == nil || req.StartTime == nil {
		return failure("Missing booking details.", "Date and start time are required.")
	}
	if req.DurationMinutes <= 0 {
		return failure("Invalid booking duration.", "Duration must be positive.")
	}
	if req.DurationMinutes > MaxDurationMinutes {
		return failure("Booking is too long.", "Maximum booking duration is 4 hours.")
	}
	return nil
}

func (v *Validator) resolveTiming(req Request) Timing {
	start := req.Date.At(*req.StartTime)
	end := start.AddMinutes(req.DurationMinutes)
	return Timing{
		Date:            *req.Date,
		StartTime:       *req.StartTime,
		DurationMinutes: req.DurationMinutes,
		StartDateTime:   start,
		EndDateTime:     end,
		Start:           v.calendar.Instant(start),
		End:             v.calendar.Instant(end),
	}
}

func (v *Validator) checkWindow(t Timing) *Response {
	if t.StartDateTime.Date != t.EndDateTime.Date {
		return failure("Booking must stay within a single day.", "Choose a shorter duration.")
	}
	day := t.Date.Weekday()
	window := v.calendar.Schedule.WindowFor(day)
	if window.Closed() {
		if day == time.Sunday {
			return failure("Bookings are not available on Sundays.", "Pick a weekday or Saturday.")
		}
		return failure(fmt.Sprintf("Bookings are not available on %ss.", day), "Pick another day.")
	}
	if !window.Covers(t.StartDateTime.Time, t.EndDateTime.Time) {
		return failure("Booking is outside working hours.", fmt.Sprintf("Working hours are %s.", v.calendar.Schedule.Describe()))
	}
	return nil
}

// rangeAvailable reports whether every slot in [start, start+duration) exists
// and is free.
func rangeAvailable(grid AvailabilityContext, start civil.TimeOfDay, duration int) bool {
	byTime := make(map[civil.TimeOfDay]bool, len(grid.Slots))
	for _, s := range grid.Slots {
		byTime[s.DateTime.Time] = s.Free()
	}
	for offset := 0; offset < duration; offset += grid.IntervalMinutes {
		if free, ok := byTime[start+civil.TimeOfDay(offset)]; !ok || !free {
			return false
		}
	}
	return true
}
