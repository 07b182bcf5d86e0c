package booking

import (
	"context"
	"sort"
	"strings"

	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/upstream"
)

// AvailabilitySource loads the upstream slot grid.
type AvailabilitySource interface {
	CheckAvailability(ctx context.Context, days int, guid, startTime string, interval int) (*upstream.AvailabilityResponse, error)
}

// Slot is one bookable cell as shown to users.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Booked    bool   `json:"booked"`
}

type MachineAvailability struct {
	ResourceName string     `json:"resourceName"`
	Date         civil.Date `json:"date"`
	Slots        []Slot     `json:"slots"`
}

// AvailabilityContext is the raw grid of one date, sorted by time, with the
// interval between consecutive slots.
type AvailabilityContext struct {
	Slots           []upstream.AvailableSlot
	IntervalMinutes int
}

// Gateway reads availability for the configured resource.
type Gateway struct {
	source   AvailabilitySource
	resource Resource
	calendar Calendar
}

func NewGateway(source AvailabilitySource, resource Resource, calendar Calendar) *Gateway {
	return &Gateway{source: source, resource: resource, calendar: calendar}
}

// AvailabilityFor lists the slots of date that fall inside the working window.
// Dates outside [today, horizon] fail with *DateError.
func (g *Gateway) AvailabilityFor(ctx context.Context, date civil.Date) (MachineAvailability, error) {
	if err := g.calendar.CheckDate(date); err != nil {
		return MachineAvailability{}, err
	}
	grid, err := g.load(ctx, date)
	if err != nil {
		return MachineAvailability{}, err
	}

	window := g.calendar.Schedule.WindowFor(date.Weekday())
	slots := []Slot{}
	for _, s := range slotsForDate(grid, date) {
		if !window.Contains(s.DateTime.Time) {
			continue
		}
		label := strings.TrimSpace(s.Time)
		if label == "" {
			label = s.DateTime.Time.String()
		}
		slots = append(slots, Slot{Time: label, Available: s.Free(), Booked: s.Booked})
	}

	name := DefaultResourceName
	if grid.Resource != nil && strings.TrimSpace(grid.Resource.Name) != "" {
		name = grid.Resource.Name
	}
	return MachineAvailability{ResourceName: name, Date: date, Slots: slots}, nil
}

// AvailabilityContext returns the unfiltered grid of date with its interval.
func (g *Gateway) AvailabilityContext(ctx context.Context, date civil.Date) (AvailabilityContext, error) {
	grid, err := g.load(ctx, date)
	if err != nil {
		return AvailabilityContext{}, err
	}
	slots := slotsForDate(grid, date)
	return AvailabilityContext{Slots: slots, IntervalMinutes: inferInterval(slots)}, nil
}

func (g *Gateway) load(ctx context.Context, date civil.Date) (*upstream.AvailabilityResponse, error) {
	startTime := date.At(0).String()
	return g.source.CheckAvailability(ctx, 1, g.resource.GUID, startTime, DefaultIntervalMinutes)
}

func slotsForDate(grid *upstream.AvailabilityResponse, date civil.Date) []upstream.AvailableSlot {
	if grid == nil {
		return nil
	}
	var out []upstream.AvailableSlot
	for _, s := range grid.AvailableSlots {
		if s.DateTime != nil && s.DateTime.Date == date {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateTime.Before(*out[j].DateTime)
	})
	return out
}

func inferInterval(slots []upstream.AvailableSlot) int {
	if len(slots) < 2 {
		return DefaultIntervalMinutes
	}
	delta := int(slots[1].DateTime.AsUTC().Sub(slots[0].DateTime.AsUTC()).Minutes())
	if delta <= 0 {
		return DefaultIntervalMinutes
	}
	return delta
}
