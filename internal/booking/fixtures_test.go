package booking

import (
	"context"
	"sync"
	"time"

	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/logging"
	"github.com/example/machine-booker/internal/upstream"
)

// Monday 2026-10-19 09:00 UTC.
var monday = time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)

var testResource = Resource{ID: 11, GUID: "machine-guid", Name: "Embroidery", CoworkerID: 22}

func date(y int, m time.Month, d int) *civil.Date {
	out := civil.Date{Year: y, Month: m, Day: d}
	return &out
}

func at(h, m int) *civil.TimeOfDay {
	out := civil.NewTimeOfDay(h, m)
	return &out
}

func calendarAt(now time.Time) Calendar {
	return Calendar{Location: time.UTC, Schedule: DefaultSchedule(), Now: func() time.Time { return now }}
}

// gridFor builds a 30 minute grid on d from 07:00 to 18:00 with the given
// times marked booked.
func gridFor(d civil.Date, booked ...string) *upstream.AvailabilityResponse {
	taken := map[string]bool{}
	for _, b := range booked {
		taken[b] = true
	}
	res := &upstream.AvailabilityResponse{Resource: &upstream.Resource{ID: 11, Name: "Embroidery Machine X"}}
	for t := civil.NewTimeOfDay(7, 0); t < civil.NewTimeOfDay(18, 0); t += 30 {
		dt := d.At(t)
		res.AvailableSlots = append(res.AvailableSlots, upstream.AvailableSlot{
			DateTime:  &dt,
			Time:      t.String(),
			Available: true,
			Booked:    taken[t.String()],
		})
	}
	return res
}

type fakePlatform struct {
	mu sync.Mutex

	grid      *upstream.AvailabilityResponse
	gridErr   error
	gridCalls int
	lastStart string

	previews  []upstream.PreviewItem
	previewFn func(n int) (*upstream.InvoicePreview, error)

	baskets   []upstream.Basket
	submitErr error

	myBookings *upstream.MyBookingsResponse
	cancelled  []int64
}

func (f *fakePlatform) CheckAvailability(_ context.Context, days int, guid, startTime string, interval int) (*upstream.AvailabilityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gridCalls++
	f.lastStart = startTime
	if f.gridErr != nil {
		return nil, f.gridErr
	}
	return f.grid, nil
}

func (f *fakePlatform) PreviewInvoice(_ context.Context, items []upstream.PreviewItem) (*upstream.InvoicePreview, error) {
	f.mu.Lock()
	f.previews = append(f.previews, items...)
	n := len(f.previews)
	f.mu.Unlock()
	if f.previewFn != nil {
		return f.previewFn(n)
	}
	ok := true
	return &upstream.InvoicePreview{WasSuccessful: &ok}, nil
}

func (f *fakePlatform) CreateInvoice(_ context.Context, basket upstream.Basket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.baskets = append(f.baskets, basket)
	return nil
}

func (f *fakePlatform) MyBookings(context.Context, int) (*upstream.MyBookingsResponse, error) {
	return f.myBookings, nil
}

func (f *fakePlatform) CancelBooking(_ context.Context, id int64) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

type fakeTokens struct {
	calls []string
}

func (f *fakeTokens) ForceFallbackNext()              { f.calls = append(f.calls, "force") }
func (f *fakeTokens) InvalidateToken(context.Context) { f.calls = append(f.calls, "invalidate") }

type harness struct {
	platform *fakePlatform
	tokens   *fakeTokens
	calendar Calendar
	gateway  *Gateway
	booker   *Booker
}

func newHarness(now time.Time, grid *upstream.AvailabilityResponse) *harness {
	h := &harness{
		platform: &fakePlatform{grid: grid},
		tokens:   &fakeTokens{},
		calendar: calendarAt(now),
	}
	h.gateway = NewGateway(h.platform, testResource, h.calendar)
	h.booker = NewBooker(
		NewValidator(h.gateway, h.calendar),
		NewPreviewer(h.platform, testResource),
		NewSubmitter(h.platform, testResource),
		h.tokens,
		logging.Discard(),
	)
	h.booker.newID = func() string { return "unique-1" }
	return h
}
