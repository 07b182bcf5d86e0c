package booking

import (
	"context"
	"sort"

	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/upstream"
)

const myBookingsDepth = 3

type BookingsClient interface {
	MyBookings(ctx context.Context, depth int) (*upstream.MyBookingsResponse, error)
	CancelBooking(ctx context.Context, id int64) error
}

// PendingBooking is an upcoming, not cancelled booking.
type PendingBooking struct {
	ID            int64           `json:"id"`
	BookingNumber *int64          `json:"bookingNumber"`
	FromTime      *civil.DateTime `json:"fromTime"`
	ToTime        *civil.DateTime `json:"toTime"`
	CreatedOn     *civil.DateTime `json:"createdOn"`
}

// Bookings lists and cancels bookings of the signed in account.
type Bookings struct {
	client   BookingsClient
	calendar Calendar
}

func NewBookings(client BookingsClient, calendar Calendar) *Bookings {
	return &Bookings{client: client, calendar: calendar}
}

// Pending returns bookings that are neither cancelled nor over, earliest first.
func (b *Bookings) Pending(ctx context.Context) ([]PendingBooking, error) {
	res, err := b.client.MyBookings(ctx, myBookingsDepth)
	if err != nil {
		return nil, err
	}
	out := []PendingBooking{}
	if res == nil {
		return out, nil
	}
	now := civil.DateTimeOf(b.calendar.CurrentTime())
	for _, mb := range res.MyBookings {
		if mb.IsCancelled != nil && *mb.IsCancelled {
			continue
		}
		if mb.ToTime != nil && !now.Before(*mb.ToTime) {
			continue
		}
		out = append(out, PendingBooking{
			ID:            mb.ID,
			BookingNumber: mb.BookingNumber,
			FromTime:      mb.FromTime,
			ToTime:        mb.ToTime,
			CreatedOn:     mb.CreatedOn,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, c := out[i].FromTime, out[j].FromTime
		if a == nil || c == nil {
			return a != nil
		}
		return a.Before(*c)
	})
	return out, nil
}

// Cancel cancels booking id.
func (b *Bookings) Cancel(ctx context.Context, id int64) error {
	return b.client.CancelBooking(ctx, id)
}
