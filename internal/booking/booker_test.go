package booking

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/machine-booker/internal/civil"
	"github.com/example/machine-booker/internal/upstream"
)

var tuesday = civil.Date{Year: 2026, Month: time.October, Day: 20}

func tuesdayRequest() Request {
	d := tuesday
	return Request{Date: &d, StartTime: at(10, 0), DurationMinutes: 60}
}

func TestBookConfirmsFreeSlot(t *testing.T) {
	h := newHarness(monday, gridFor(tuesday))

	res, err := h.booker.Book(context.Background(), tuesdayRequest())
	require.NoError(t, err)
	assert.Equal(t, &Response{Success: true, Message: "Booking confirmed.", Errors: []string{}}, res)

	require.Len(t, h.platform.previews, 1)
	require.Len(t, h.platform.baskets, 1)
	assert.Equal(t, "unique-1", h.platform.previews[0].Booking.UniqueID)
	assert.Equal(t, "unique-1", h.platform.baskets[0].Basket[0].Booking.UniqueID)
	assert.Empty(t, h.tokens.calls)
}

func TestBookStopsAtValidation(t *testing.T) {
	h := newHarness(monday, gridFor(tuesday))
	req := tuesdayRequest()
	req.DurationMinutes = 241

	res, err := h.booker.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Booking is too long.", res.Message)
	assert.Zero(t, h.platform.gridCalls)
	assert.Empty(t, h.platform.previews)
	assert.Empty(t, h.platform.baskets)
}

func TestBookStopsAtPreviewRejection(t *testing.T) {
	h := newHarness(monday, gridFor(tuesday))
	no := false
	h.platform.previewFn = func(int) (*upstream.InvoicePreview, error) {
		return &upstream.InvoicePreview{WasSuccessful: &no, Message: "No credit left"}, nil
	}

	res, err := h.booker.Book(context.Background(), tuesdayRequest())
	require.NoError(t, err)
	assert.Equal(t, "No credit left", res.Message)
	assert.Empty(t, h.platform.baskets)
}

func TestBookTurnsUpstreamErrorsIntoFailures(t *testing.T) {
	t.Run("body becomes the message", func(t *testing.T) {
		h := newHarness(monday, gridFor(tuesday))
		h.platform.submitErr = &upstream.HTTPError{Status: http.StatusConflict, Body: []byte("Slot already taken")}

		res, err := h.booker.Book(context.Background(), tuesdayRequest())
		require.NoError(t, err)
		assert.Equal(t, &Response{Success: false, Message: "Slot already taken", Errors: []string{}}, res)
	})

	t.Run("blank body", func(t *testing.T) {
		h := newHarness(monday, gridFor(tuesday))
		h.platform.submitErr = &upstream.HTTPError{Status: http.StatusUnauthorized}

		res, err := h.booker.Book(context.Background(), tuesdayRequest())
		require.NoError(t, err)
		assert.Equal(t, "Booking failed.", res.Message)
		assert.Empty(t, h.tokens.calls)
	})

	t.Run("non-http errors propagate", func(t *testing.T) {
		h := newHarness(monday, gridFor(tuesday))
		boom := errors.New("dial tcp: refused")
		h.platform.gridErr = boom

		res, err := h.booker.Book(context.Background(), tuesdayRequest())
		assert.Nil(t, res)
		assert.ErrorIs(t, err, boom)
	})
}

func TestBookScheduledRetriesOnceAfterUnauthorized(t *testing.T) {
	h := newHarness(monday, gridFor(tuesday))
	yes := true
	h.platform.previewFn = func(n int) (*upstream.InvoicePreview, error) {
		if n == 1 {
			return nil, &upstream.HTTPError{Status: http.StatusUnauthorized}
		}
		return &upstream.InvoicePreview{WasSuccessful: &yes}, nil
	}

	res, err := h.booker.BookScheduled(context.Background(), tuesdayRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"force", "invalidate"}, h.tokens.calls)
	assert.Len(t, h.platform.previews, 2)
	assert.Equal(t, 2, h.platform.gridCalls)
	assert.Len(t, h.platform.baskets, 1)
}

func TestBookScheduledGivesUpAfterSecondUnauthorized(t *testing.T) {
	h := newHarness(monday, gridFor(tuesday))
	h.platform.previewFn = func(int) (*upstream.InvoicePreview, error) {
		return nil, &upstream.HTTPError{Status: http.StatusUnauthorized}
	}

	res, err := h.booker.BookScheduled(context.Background(), tuesdayRequest())
	assert.Nil(t, res)
	assert.True(t, upstream.IsUnauthorized(err))
	assert.Len(t, h.platform.previews, 2)
	assert.Equal(t, []string{"force", "invalidate"}, h.tokens.calls)
}

func TestBookScheduledDoesNotRetryOtherErrors(t *testing.T) {
	h := newHarness(monday, gridFor(tuesday))
	h.platform.submitErr = &upstream.HTTPError{Status: http.StatusConflict, Body: []byte("taken")}

	res, err := h.booker.BookScheduled(context.Background(), tuesdayRequest())
	assert.Nil(t, res)
	he, ok := upstream.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, he.Status)
	assert.Len(t, h.platform.previews, 1)
	assert.Empty(t, h.tokens.calls)
}
