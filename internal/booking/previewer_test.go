package booking

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/upstream"
)

func testTiming(loc *time.Location) Timing {
	d := civil.Date{Year: 2026, Month: time.October, Day: 20}
	start := d.At(civil.NewTimeOfDay(10, 0))
	end := start.AddMinutes(60)
	return Timing{
		Date: d, StartTime: start.Time, DurationMinutes: 60,
		StartDateTime: start, EndDateTime: end,
		Start: start.In(loc), End: end.In(loc),
	}
}

func TestPreviewOutcomes(t *testing.T) {
	no := false
	yes := true
	tests := []struct {
		name    string
		preview *upstream.InvoicePreview
		err     error
		want    *Response
	}{
		{
			name:    "clean",
			preview: &upstream.InvoicePreview{WasSuccessful: &yes},
			want:    nil,
		},
		{
			name:    "errors with message",
			preview: &upstream.InvoicePreview{Message: "Clash", Errors: []upstream.PreviewError{{Message: "Overlaps"}, {PropertyName: "FromTime"}, {}}},
			want:    failure("Clash", "Overlaps", "FromTime"),
		},
		{
			name:    "errors without message",
			preview: &upstream.InvoicePreview{Errors: []upstream.PreviewError{{Message: "Overlaps"}}},
			want:    failure("Booking is not available.", "Overlaps"),
		},
		{
			name:    "not successful",
			preview: &upstream.InvoicePreview{WasSuccessful: &no},
			want:    failure("Booking preview failed."),
		},
		{
			name:    "not successful with message",
			preview: &upstream.InvoicePreview{WasSuccessful: &no, Message: "No credit"},
			want:    failure("No credit"),
		},
		{
			name: "rejection body is a preview",
			err:  &upstream.HTTPError{Status: http.StatusBadRequest, Body: []byte(`{"Errors":[{"Message":"Resource closed"}],"WasSuccessful":false}`)},
			want: failure("Booking is not available.", "Resource closed"),
		},
		{
			name: "rejection without body",
			err:  &upstream.HTTPError{Status: http.StatusBadRequest},
			want: failure("Booking preview failed.", "Unable to validate the booking."),
		},
		{
			name: "rejection with garbage body",
			err:  &upstream.HTTPError{Status: http.StatusInternalServerError, Body: []byte("<html>")},
			want: failure("Booking preview failed.", "Unable to validate the booking."),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakePlatform{previewFn: func(int) (*upstream.InvoicePreview, error) { return tt.preview, tt.err }}
			got, err := NewPreviewer(f, testResource).Preview(context.Background(), testTiming(time.UTC), "u-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreviewPropagatesUnauthorized(t *testing.T) {
	unauthorized := &upstream.HTTPError{Status: http.StatusUnauthorized, Body: []byte(`{"Errors":[]}`)}
	f := &fakePlatform{previewFn: func(int) (*upstream.InvoicePreview, error) { return nil, unauthorized }}

	got, err := NewPreviewer(f, testResource).Preview(context.Background(), testTiming(time.UTC), "u-1")
	assert.Nil(t, got)
	assert.True(t, upstream.IsUnauthorized(err))
}

func TestPreviewItemUsesInstants(t *testing.T) {
	f := &fakePlatform{}
	loc := time.FixedZone("CEST", 2*3600)
	_, err := NewPreviewer(f, testResource).Preview(context.Background(), testTiming(loc), "u-1")
	require.NoError(t, err)

	require.Len(t, f.previews, 1)
	assert.Equal(t, upstream.PreviewItem{
		Type: "booking",
		Booking: upstream.PreviewBooking{
			ResourceID: 11,
			FromTime:   "2026-10-20T08:00:00Z",
			ToTime:     "2026-10-20T09:00:00Z",
			CoworkerID: 22,
			ChargeNow:  true,
			UniqueID:   "u-1",
		},
	}, f.previews[0])
}

func TestSubmitLabelsWallClockAsUTC(t *testing.T) {
	f := &fakePlatform{}
	loc := time.FixedZone("CEST", 2*3600)
	require.NoError(t, NewSubmitter(f, testResource).Submit(context.Background(), testTiming(loc), "u-1"))

	require.Len(t, f.baskets, 1)
	b := f.baskets[0]
	assert.Nil(t, b.DiscountCode)
	require.Len(t, b.Basket, 1)
	assert.Equal(t, "booking", b.Basket[0].Type)
	assert.Equal(t, upstream.BasketBooking{
		UniqueID:   "u-1",
		FromTime:   "2026-10-20T10:00:00Z",
		ToTime:     "2026-10-20T11:00:00Z",
		ResourceID: 11,
		CoworkerID: 22,
	}, b.Basket[0].Booking)
}
